package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/viant/kcore/internal/clock"
	"github.com/viant/kcore/runtime/proc"
	"github.com/viant/kcore/runtime/swtch"
	"github.com/viant/kcore/service/ptable"
	"github.com/viant/kcore/service/vm"
	"golang.org/x/sync/errgroup"
)

// CPU holds per-processor scheduler state
type CPU struct {
	ID         int
	context    *swtch.Context
	current    *proc.Process
	policies   []Policy
	preempt    atomic.Bool
	dispatches atomic.Int64
}

// Dispatches returns number of context switches into a process
func (c *CPU) Dispatches() int64 {
	return c.dispatches.Load()
}

func (c *CPU) pick(procs []*proc.Process) *proc.Process {
	for _, policy := range c.policies {
		if p := policy.Next(procs); p != nil {
			return p
		}
	}
	return nil
}

// Service represents the scheduler
type Service struct {
	config      Config
	table       *ptable.Service
	vm          vm.Service
	switcher    swtch.Switcher
	ticks       *clock.Ticks
	cpus        []*CPU
	interactive map[string]bool
}

// New creates a scheduler over table
func New(table *ptable.Service, vmService vm.Service, switcher swtch.Switcher, config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ret := &Service{
		config:      config,
		table:       table,
		vm:          vmService,
		switcher:    switcher,
		ticks:       table.Ticks(),
		interactive: map[string]bool{},
	}
	for _, name := range config.Interactive {
		ret.interactive[name] = true
	}
	for i := 0; i < config.CPUs; i++ {
		ret.cpus = append(ret.cpus, &CPU{ID: i, context: swtch.NewContext(nil), policies: NewPolicies()})
	}
	return ret, nil
}

// CPUs returns processors
func (s *Service) CPUs() []*CPU {
	return s.cpus
}

// Run starts every CPU loop and the clock; it returns when ctx is done.
func (s *Service) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, cpu := range s.cpus {
		cpu := cpu
		group.Go(func() error {
			return s.loop(ctx, cpu)
		})
	}
	group.Go(func() error {
		ticker := time.NewTicker(s.config.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s.Tick()
			}
		}
	})
	return group.Wait()
}

func (s *Service) loop(ctx context.Context, cpu *CPU) error {
	for ctx.Err() == nil {
		s.table.PromoteInteractive(s.interactive)
		s.table.Lock()
		p := cpu.pick(s.table.Procs())
		if p == nil {
			s.table.Unlock()
			select {
			case <-ctx.Done():
			case <-time.After(s.config.IdleDelay):
			}
			continue
		}
		if err := s.dispatch(cpu, p); err != nil {
			// an abandoned process owns the table lock
			if !errors.Is(err, swtch.ErrAbandoned) {
				s.table.Unlock()
			}
			if errors.Is(err, swtch.ErrStopped) {
				return nil
			}
			return fmt.Errorf("cpu %d: %w", cpu.ID, err)
		}
		s.table.Unlock()
	}
	return nil
}

// dispatch runs p on cpu until it leaves the Running state; the table lock is held.
func (s *Service) dispatch(cpu *CPU, p *proc.Process) error {
	cpu.current = p
	s.vm.Activate(cpu.ID, p.Space)
	p.State = proc.Running
	p.CPU = cpu.ID
	p.Host = cpu.context
	p.LastRun = s.ticks.Now()
	p.Rank.ExecutedCycle += s.config.CycleQuantum
	cpu.dispatches.Add(1)
	if err := s.switcher.Switch(cpu.context, p.Context); err != nil {
		return err
	}
	s.vm.Activate(cpu.ID, nil)
	p.CPU = proc.NoCPU
	cpu.current = nil
	return nil
}

// Tick handles one timer interrupt
func (s *Service) Tick() int64 {
	s.ticks.Lock()
	now := s.ticks.Advance()
	s.table.Wakeup(s.ticks)
	s.ticks.Unlock()
	s.table.Age(now)
	for _, cpu := range s.cpus {
		cpu.preempt.Store(true)
	}
	return now
}

// TakePreempt reports and clears a pending preemption request of cpu
func (s *Service) TakePreempt(cpu int) bool {
	if cpu < 0 || cpu >= len(s.cpus) {
		return false
	}
	return s.cpus[cpu].preempt.Swap(false)
}
