package ptable

import (
	"github.com/viant/kcore/internal/clock"
	"github.com/viant/kcore/runtime/proc"
	"github.com/viant/kcore/runtime/swtch"
	"github.com/viant/kcore/service/event"
)

// HaltFunc stops the machine on an invariant violation. It must not return.
type HaltFunc func(format string, args ...interface{})

// ReleaseHook runs when a process drops its address space (exit or exec),
// before the table lock is taken.
type ReleaseHook func(p *proc.Process)

type Option func(s *Service)

// WithConfig sets table configuration
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithTicks shares the kernel tick counter
func WithTicks(ticks *clock.Ticks) Option {
	return func(s *Service) {
		s.ticks = ticks
	}
}

// WithSwitcher sets the context switch implementation
func WithSwitcher(switcher swtch.Switcher) Option {
	return func(s *Service) {
		s.switcher = switcher
	}
}

// WithHalt overrides the fatal handler
func WithHalt(halt HaltFunc) Option {
	return func(s *Service) {
		s.halt = halt
	}
}

// WithReleaseHook registers a hook run on exit and exec
func WithReleaseHook(hook ReleaseHook) Option {
	return func(s *Service) {
		s.releaseHooks = append(s.releaseHooks, hook)
	}
}

// WithEvents publishes lifecycle transitions to the event service
func WithEvents(events *event.Service) Option {
	return func(s *Service) {
		s.events = events
	}
}
