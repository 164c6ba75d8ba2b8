package kcore

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/kcore/runtime/proc"
	"github.com/viant/kcore/service/ptable"
	"github.com/viant/kcore/service/vm"
	"github.com/viant/kcore/tracing"
)

// Program is the code of a user process
type Program func(sys *Sys)

// Sys is the system call interface of one process. It must only be used
// from the goroutine running that process.
type Sys struct {
	ctx    context.Context
	kernel *Service
	proc   *proc.Process
}

func (s *Service) newSys(ctx context.Context, p *proc.Process) *Sys {
	return &Sys{ctx: ctx, kernel: s, proc: p}
}

// Context returns the runtime context
func (s *Sys) Context() context.Context {
	return s.ctx
}

// Name returns the process name
func (s *Sys) Name() string {
	return s.proc.Name
}

// PID returns the process id
func (s *Sys) PID() int {
	defer s.leave(s.enter("getpid"), nil)
	return s.proc.PID
}

// Fork creates a child process running program and returns its pid.
func (s *Sys) Fork(program Program) (pid int, err error) {
	span := s.enter("fork")
	defer func() { s.leave(span, err) }()
	return s.kernel.table.Fork(s.proc, func(child *proc.Process) {
		if program != nil {
			program(s.kernel.newSys(s.ctx, child))
		}
	})
}

// Exec replaces the process image with program; on success it does not return.
func (s *Sys) Exec(name string, program Program) error {
	span := s.enter("exec")
	err := s.kernel.table.Exec(s.proc, name)
	s.leave(span, err)
	if err != nil {
		return err
	}
	if program != nil {
		program(s)
	}
	s.Exit(0)
	return nil
}

// Exit terminates the process; it never returns.
func (s *Sys) Exit(status int) {
	span := s.enter("exit")
	span.WithAttributes(map[string]string{"status": fmt.Sprint(status)})
	tracing.EndSpan(span, nil)
	s.kernel.table.Exit(s.proc, status)
}

// Wait blocks until a child exits and returns its pid.
func (s *Sys) Wait() (pid int, err error) {
	span := s.enter("wait")
	defer func() { s.leave(span, err) }()
	return s.kernel.table.Wait(s.proc)
}

// Kill marks pid killed; it exits at its next return from the kernel.
func (s *Sys) Kill(pid int) (err error) {
	span := s.enter("kill")
	defer func() { s.leave(span, err) }()
	return s.kernel.table.Kill(pid)
}

// Yield gives up the CPU
func (s *Sys) Yield() {
	defer s.leave(s.enter("yield"), nil)
	s.kernel.table.Yield(s.proc)
}

// Sleep suspends the process for n clock ticks.
func (s *Sys) Sleep(n int64) (err error) {
	span := s.enter("sleep")
	defer func() { s.leave(span, err) }()
	return s.kernel.sleepTicks(s.proc, n)
}

// Uptime returns clock ticks since boot
func (s *Sys) Uptime() int64 {
	defer s.leave(s.enter("uptime"), nil)
	return s.kernel.table.Ticks().Now()
}

// Sbrk grows (or shrinks) the process memory by n bytes and returns the previous break.
func (s *Sys) Sbrk(n int) (addr vm.Addr, err error) {
	span := s.enter("sbrk")
	defer func() { s.leave(span, err) }()
	old, err := s.kernel.table.Grow(s.proc, n)
	return vm.Addr(old), err
}

// ReadMemory copies len(buf) bytes from the process address space at addr.
func (s *Sys) ReadMemory(addr vm.Addr, buf []byte) error {
	return s.kernel.vm.Copyin(s.proc.Space, addr, buf)
}

// WriteMemory copies data into the process address space at addr.
func (s *Sys) WriteMemory(addr vm.Addr, data []byte) error {
	return s.kernel.vm.Copyout(s.proc.Space, addr, data)
}

// ChangeQueue moves pid to queue q and returns the previous queue.
func (s *Sys) ChangeQueue(pid int, q proc.Queue) (prev proc.Queue, err error) {
	span := s.enter("change_queue")
	defer func() { s.leave(span, err) }()
	return s.kernel.table.ChangeQueue(pid, q)
}

// SetRankPriority sets the BJF priority of pid
func (s *Sys) SetRankPriority(pid, priority int) (err error) {
	span := s.enter("set_bjf_priority")
	defer func() { s.leave(span, err) }()
	return s.kernel.table.SetRankPriority(pid, priority)
}

// SetProcessRankRatios sets the BJF weights of pid
func (s *Sys) SetProcessRankRatios(pid int, ratios proc.Ratios) (err error) {
	span := s.enter("set_bjf_params_process")
	defer func() { s.leave(span, err) }()
	return s.kernel.table.SetRankRatios(pid, ratios)
}

// SetSystemRankRatios sets the BJF weights of every process
func (s *Sys) SetSystemRankRatios(ratios proc.Ratios) (err error) {
	span := s.enter("set_bjf_params_system")
	defer func() { s.leave(span, err) }()
	return s.kernel.table.SetSystemRankRatios(ratios)
}

// PrintProcessTable writes the process table to the console
func (s *Sys) PrintProcessTable() (err error) {
	span := s.enter("print_process_info")
	defer func() { s.leave(span, err) }()
	return s.kernel.table.WriteTable(s.kernel.console)
}

// ProcessLifetime returns the number of seconds since pid was created
func (s *Sys) ProcessLifetime(pid int) (seconds int, err error) {
	span := s.enter("get_process_lifetime")
	defer func() { s.leave(span, err) }()
	lifetime, err := s.kernel.table.Lifetime(pid)
	if err != nil {
		return 0, err
	}
	return int(lifetime / time.Second), nil
}

// UncleCount returns the number of siblings of the parent of pid
func (s *Sys) UncleCount(pid int) (count int, err error) {
	span := s.enter("get_uncle_count")
	defer func() { s.leave(span, err) }()
	return s.kernel.table.UncleCount(pid)
}

// PrintSyscallCount writes per-CPU system call counts to the console
func (s *Sys) PrintSyscallCount() (err error) {
	span := s.enter("print_syscall_count")
	defer func() { s.leave(span, err) }()
	return s.kernel.syscalls.Print(s.kernel.console)
}

// ResetSyscallCount zeroes every system call counter
func (s *Sys) ResetSyscallCount() {
	defer s.leave(s.enter("reset_syscall_count"), nil)
	s.kernel.syscalls.Reset()
}

// InitPriorityLock resets the kernel priority lock
func (s *Sys) InitPriorityLock() (err error) {
	span := s.enter("init_prioritylock")
	defer func() { s.leave(span, err) }()
	return s.kernel.lock.Init()
}

// AcquirePriorityLock blocks until the process owns the priority lock
func (s *Sys) AcquirePriorityLock() (err error) {
	span := s.enter("acquire_prioritylock")
	defer func() { s.leave(span, err) }()
	return s.kernel.lock.Acquire(s.proc)
}

// ReleasePriorityLock hands the priority lock to the highest pid waiter
func (s *Sys) ReleasePriorityLock() (err error) {
	span := s.enter("release_prioritylock")
	defer func() { s.leave(span, err) }()
	return s.kernel.lock.Release(s.proc)
}

// OpenSharedMemory maps shared page id and returns its address
func (s *Sys) OpenSharedMemory(id int) (addr vm.Addr, err error) {
	span := s.enter("open_sharedmem")
	defer func() { s.leave(span, err) }()
	if addr, err = s.kernel.shm.Open(s.proc, id); err != nil {
		fmt.Fprint(s.kernel.console, "Failed to open shared memory region!\n")
	}
	return addr, err
}

// CloseSharedMemory unmaps shared page id
func (s *Sys) CloseSharedMemory(id int) (err error) {
	span := s.enter("close_sharedmem")
	defer func() { s.leave(span, err) }()
	if err = s.kernel.shm.Close(s.proc, id); err != nil {
		fmt.Fprint(s.kernel.console, "Failed to close shared memory region!\n")
	}
	return err
}

// enter counts a system call on the current CPU and starts its span
func (s *Sys) enter(name string) *tracing.Span {
	s.kernel.syscalls.Record(s.proc.CPU)
	if !s.kernel.tracing {
		return nil
	}
	_, span := tracing.StartSpan(s.ctx, name)
	return span.WithProcess(s.proc.PID, s.proc.Name, s.proc.CPU)
}

// leave ends the span and runs the return-to-user checks: a killed process
// exits, a preempted one yields.
func (s *Sys) leave(span *tracing.Span, err error) {
	tracing.EndSpan(span, err)
	table := s.kernel.table
	if table.Stopped() {
		return
	}
	if table.Killed(s.proc) {
		table.Exit(s.proc, -1)
	}
	if s.kernel.scheduler.TakePreempt(s.proc.CPU) {
		table.Yield(s.proc)
	}
}

// sleepTicks sleeps on the tick counter until n ticks elapsed
func (s *Service) sleepTicks(p *proc.Process, n int64) error {
	ticks := s.table.Ticks()
	ticks.Lock()
	defer ticks.Unlock()
	start := ticks.Now()
	for ticks.Now()-start < n {
		if s.table.Killed(p) {
			return ptable.ErrKilled
		}
		s.table.Sleep(p, ticks, ticks)
	}
	return nil
}
