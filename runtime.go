package kcore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/viant/kcore/runtime/proc"
	"github.com/viant/kcore/service/ptable"
)

// ErrStarted is returned when the runtime is started twice
var ErrStarted = errors.New("kcore: runtime already started")

// Runtime boots the root process and drives the scheduler
type Runtime struct {
	service *Service
	mux     sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	stdio   *consoleFile
	cwd     *rootDir
}

// Start boots the root process named name running program and starts every
// CPU. The root process never exits: once program returns it keeps reaping
// orphans until shutdown.
func (r *Runtime) Start(ctx context.Context, name string, program Program) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.done != nil {
		return ErrStarted
	}
	s := r.service
	runCtx, cancel := context.WithCancel(ctx)
	r.stdio = newConsoleFile(s.console)
	r.cwd = &rootDir{refs: &atomic.Int64{}}
	files := []proc.File{r.stdio.Dup(), r.stdio.Dup(), r.stdio.Dup()}
	_, err := s.table.Boot(name, func(p *proc.Process) {
		s.runInit(runCtx, p, program)
	}, r.cwd.Dup(), files...)
	if err != nil {
		cancel()
		return err
	}
	r.cancel = cancel
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		r.err = s.scheduler.Run(runCtx)
	}()
	return nil
}

// Done is closed once every CPU has stopped
func (r *Runtime) Done() <-chan struct{} {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.done
}

// Shutdown stops every CPU and abandons suspended processes.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mux.Lock()
	cancel, done := r.cancel, r.done
	r.mux.Unlock()
	if done == nil {
		return nil
	}
	cancel()
	r.service.switcher.Stop()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if r.service.events != nil {
		r.service.events.Close()
	}
	return r.err
}

// runInit runs the root program, then reaps orphans forever
func (s *Service) runInit(ctx context.Context, p *proc.Process, program Program) {
	if program != nil {
		program(s.newSys(ctx, p))
	}
	for {
		_, err := s.table.Wait(p)
		if errors.Is(err, ptable.ErrKilled) {
			s.table.Exit(p, -1)
		}
		if err != nil {
			_ = s.sleepTicks(p, 1)
		}
	}
}
