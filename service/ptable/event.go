package ptable

import (
	"context"
	"errors"
	"log"

	"github.com/viant/kcore/runtime/proc"
	"github.com/viant/kcore/service/event"
	"github.com/viant/kcore/service/messaging"
)

// Lifecycle event types
const (
	EventFork  = "fork"
	EventExit  = "exit"
	EventReap  = "reap"
	EventKill  = "kill"
	EventQueue = "queue"
)

// Transition is the payload of a process lifecycle event
type Transition struct {
	PID    int    `json:"pid"`
	Name   string `json:"name"`
	State  string `json:"state"`
	Queue  string `json:"queue"`
	Reason string `json:"reason,omitempty"`
}

// publish must not block: it runs under the table lock.
func (s *Service) publish(eventType string, p *proc.Process, reason string) {
	if s.publisher == nil {
		return
	}
	data := Transition{PID: p.PID, Name: p.Name, State: p.State.String(), Queue: p.Queue.String(), Reason: reason}
	evt := event.NewEvent(s.events.NewContext(eventType, p.PID, p.CPU, s.ticks.Now()), data)
	if err := s.publisher.Publish(context.Background(), evt); err != nil && !errors.Is(err, messaging.ErrQueueFull) {
		log.Printf("failed to publish %v event for %d: %v", eventType, p.PID, err)
	}
}
