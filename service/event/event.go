package event

import "time"

// Context identifies where an event originated
type Context struct {
	BootID    string `json:"bootID"`
	EventType string `json:"eventType"`
	PID       int    `json:"pid"`
	CPU       int    `json:"cpu"`
	Tick      int64  `json:"tick"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
