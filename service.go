package kcore

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/viant/kcore/internal/idgen"
	"github.com/viant/kcore/runtime/swtch"
	"github.com/viant/kcore/service/event"
	"github.com/viant/kcore/service/messaging"
	mmemory "github.com/viant/kcore/service/messaging/memory"
	"github.com/viant/kcore/service/prioritylock"
	"github.com/viant/kcore/service/ptable"
	"github.com/viant/kcore/service/scheduler"
	"github.com/viant/kcore/service/shm"
	"github.com/viant/kcore/service/syscount"
	"github.com/viant/kcore/service/vm"
	"github.com/viant/kcore/service/vm/memory"
	"github.com/viant/kcore/tracing"
)

// Version is reported on trace resources
const Version = "0.1.0"

// PriorityLockName names the kernel wide priority lock
const PriorityLockName = "prioritylock"

// Service represents the kernel
type Service struct {
	config    *Config
	bootID    string
	console   *console
	halt      ptable.HaltFunc
	tracing   bool
	vm        *memory.Service
	switcher  *swtch.Channel
	events    *event.Service
	table     *ptable.Service
	scheduler *scheduler.Service
	lock      *prioritylock.Lock
	shm       *shm.Service
	syscalls  *syscount.Counter
	runtime   *Runtime
}

// New creates a kernel from config
func New(config *Config, opts ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ret := &Service{config: config, halt: log.Panicf}
	for _, opt := range opts {
		opt(ret)
	}
	if err := ret.init(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) init() error {
	if s.console == nil {
		s.console = newConsole(os.Stdout)
	}
	if s.bootID == "" {
		s.bootID = idgen.New()
	}
	if s.config.Tracing.Enabled {
		if err := tracing.Init("kcore", Version, s.config.Tracing.Output); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		s.tracing = true
	}
	s.vm = memory.New(s.config.Memory)
	s.switcher = swtch.NewChannel()
	s.shm = shm.New(s.vm)

	tableConfig := s.config.Table
	tableConfig.Permissive = tableConfig.Permissive || s.config.Permissive()
	options := []ptable.Option{
		ptable.WithConfig(tableConfig),
		ptable.WithSwitcher(s.switcher),
		ptable.WithHalt(s.halt),
		ptable.WithReleaseHook(s.shm.Detach),
	}
	if s.config.Events.Enabled {
		events, err := event.New(messaging.VendorMemory,
			event.WithBootID(s.bootID),
			event.WithNewMemoryQueueConfig(s.eventQueueConfig))
		if err != nil {
			return err
		}
		s.events = events
		options = append(options, ptable.WithEvents(events))
	}
	table, err := ptable.New(s.vm, options...)
	if err != nil {
		return err
	}
	s.table = table
	if s.scheduler, err = scheduler.New(table, s.vm, s.switcher, s.config.Scheduler); err != nil {
		return err
	}
	s.lock = prioritylock.New(PriorityLockName, table, prioritylock.WithConsole(s.console))
	s.syscalls = syscount.New(s.config.Scheduler.CPUs)
	s.runtime = &Runtime{service: s}
	return nil
}

func (s *Service) eventQueueConfig(string) mmemory.Config {
	config := mmemory.DefaultConfig()
	if s.config.Events.Buffer > 0 {
		config.QueueBuffer = s.config.Events.Buffer
	}
	config.MaxRetries = s.config.Events.MaxRetries
	config.RetryDelay = s.config.Events.RetryDelay
	return config
}

// Config returns kernel configuration
func (s *Service) Config() *Config {
	return s.config
}

// BootID returns the identifier of this kernel instance
func (s *Service) BootID() string {
	return s.bootID
}

// Runtime returns the kernel runtime
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Table returns the process table
func (s *Service) Table() *ptable.Service {
	return s.table
}

// Scheduler returns the scheduler
func (s *Service) Scheduler() *scheduler.Service {
	return s.scheduler
}

// PriorityLock returns the kernel priority lock
func (s *Service) PriorityLock() *prioritylock.Lock {
	return s.lock
}

// SharedMemory returns the shared page pool
func (s *Service) SharedMemory() *shm.Service {
	return s.shm
}

// Syscalls returns system call counters
func (s *Service) Syscalls() *syscount.Counter {
	return s.syscalls
}

// VM returns the memory service
func (s *Service) VM() vm.Service {
	return s.vm
}

// FreeFrames returns the number of unallocated physical frames
func (s *Service) FreeFrames() int {
	return s.vm.FreeFrames()
}

// Events returns the lifecycle event bus, nil when disabled
func (s *Service) Events() *event.Service {
	return s.events
}

// Console returns the kernel console writer
func (s *Service) Console() io.Writer {
	return s.console
}
