package event

import (
	"github.com/viant/kcore/service/messaging/memory"
)

type Option func(s *Service)

// WithNewMemoryQueueConfig sets the new memory queue configuration
func WithNewMemoryQueueConfig(newQueue func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memNewQueueConfig = newQueue
	}
}

// WithBootID stamps every event context created by the service
func WithBootID(id string) Option {
	return func(s *Service) {
		s.bootID = id
	}
}
