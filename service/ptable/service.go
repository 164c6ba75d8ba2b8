package ptable

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/viant/kcore/internal/clock"
	"github.com/viant/kcore/internal/idgen"
	"github.com/viant/kcore/runtime/proc"
	"github.com/viant/kcore/runtime/swtch"
	"github.com/viant/kcore/service/event"
	"github.com/viant/kcore/service/vm"
)

// Entry is the code a process runs once it is first scheduled.
type Entry func(p *proc.Process)

// Service represents the process table
type Service struct {
	mu           sync.Mutex
	procs        []*proc.Process
	pids         *idgen.Sequence
	initSlot     int
	config       Config
	ticks        *clock.Ticks
	vm           vm.Service
	switcher     swtch.Switcher
	halt         HaltFunc
	releaseHooks []ReleaseHook
	events       *event.Service
	publisher    *event.Publisher[Transition]
	stopped      atomic.Bool
}

// New creates a process table
func New(vmService vm.Service, opts ...Option) (*Service, error) {
	ret := &Service{
		pids:     idgen.NewSequence(1),
		initSlot: proc.NoParent,
		config:   DefaultConfig(),
		vm:       vmService,
		halt:     log.Panicf,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if err := ret.config.Validate(); err != nil {
		return nil, err
	}
	if ret.ticks == nil {
		ret.ticks = &clock.Ticks{}
	}
	if ret.switcher == nil {
		ret.switcher = swtch.NewChannel()
	}
	if ret.events != nil {
		publisher, err := event.PublisherOf[Transition](ret.events)
		if err != nil {
			return nil, fmt.Errorf("failed to create transition publisher: %w", err)
		}
		ret.publisher = publisher
	}
	ret.procs = make([]*proc.Process, ret.config.Capacity)
	for i := range ret.procs {
		ret.procs[i] = &proc.Process{Slot: i}
		ret.procs[i].Reset()
	}
	return ret, nil
}

// Config returns table configuration
func (s *Service) Config() Config {
	return s.config
}

// Ticks returns the kernel tick counter
func (s *Service) Ticks() *clock.Ticks {
	return s.ticks
}

// Lock acquires the table lock
func (s *Service) Lock() { s.mu.Lock() }

// Unlock releases the table lock
func (s *Service) Unlock() { s.mu.Unlock() }

// Locker returns the table lock, used as the sleep lock by callers that already hold it.
func (s *Service) Locker() sync.Locker { return &s.mu }

// Procs returns the process arena; callers must hold the table lock.
func (s *Service) Procs() []*proc.Process {
	return s.procs
}

// Halt stops the machine
func (s *Service) Halt(format string, args ...interface{}) {
	s.halt(format, args...)
}

// Create allocates an Unused slot, marks it Embryo with the next pid and a
// fresh kernel stack and default rank profile.
func (s *Service) Create() (*proc.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create()
}

func (s *Service) create() (*proc.Process, error) {
	var p *proc.Process
	for _, candidate := range s.procs {
		if candidate.State == proc.Unused {
			p = candidate
			break
		}
	}
	if p == nil {
		return nil, ErrTableFull
	}
	p.Reset()
	p.State = proc.Embryo
	p.PID = s.pids.Next()
	kstack, err := s.vm.AllocPage()
	if err != nil {
		p.Reset()
		return nil, fmt.Errorf("failed to allocate kernel stack: %w", err)
	}
	p.KernelStack = kstack
	p.Rank = proc.NewRankInfo()
	return p, nil
}

// Boot creates the root process with a one page address space. All orphans
// are reparented to it.
func (s *Service) Boot(name string, entry Entry, cwd proc.Dir, files ...proc.File) (*proc.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initSlot != proc.NoParent {
		return nil, ErrBooted
	}
	p, err := s.create()
	if err != nil {
		return nil, err
	}
	space, err := s.vm.NewAddressSpace(vm.PageSize)
	if err != nil {
		s.release(p)
		return nil, fmt.Errorf("failed to create root address space: %w", err)
	}
	p.Space = space
	p.Size = vm.PageSize
	p.Name = name
	p.TrapFrame = proc.TrapFrame{SP: vm.PageSize}
	p.Cwd = cwd
	p.Files = files
	s.initSlot = p.Slot
	s.publishRunnable(p, entry)
	s.publish(EventFork, p, "boot")
	return p, nil
}

// Fork creates a child of cur running entry. The child gets a copy of the
// parent's address space, open files, working directory and trap frame with
// a zero return value.
func (s *Service) Fork(cur *proc.Process, entry Entry) (int, error) {
	if cur == nil {
		s.halt("fork: no process")
		return 0, ErrNoProcess
	}
	np, err := s.Create()
	if err != nil {
		return 0, err
	}
	space, err := s.vm.CopyAddressSpace(cur.Space, cur.Size)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.release(np)
		return 0, fmt.Errorf("failed to copy address space of %d: %w", cur.PID, err)
	}
	np.Space = space
	np.Size = cur.Size
	np.Parent = cur.Slot
	np.TrapFrame = cur.TrapFrame
	np.TrapFrame.Ret = 0
	np.Files = make([]proc.File, len(cur.Files))
	for i, f := range cur.Files {
		if f != nil {
			np.Files[i] = f.Dup()
		}
	}
	if cur.Cwd != nil {
		np.Cwd = cur.Cwd.Dup()
	}
	np.Name = cur.Name
	pid := np.PID
	s.publishRunnable(np, entry)
	s.publish(EventFork, np, "")
	return pid, nil
}

// publishRunnable stamps arrival, assigns the default queue and makes np
// runnable; the queue is set first so no scheduler sees a runnable process
// without a discipline.
func (s *Service) publishRunnable(np *proc.Process, entry Entry) {
	now := s.ticks.Now()
	np.Rank.ArrivalTime = now
	np.LastRun = now
	np.LastInLCFS = now
	np.CreatedAt = clock.Now()
	np.Context = swtch.NewContext(func() { s.forkret(np, entry) })
	np.Queue = proc.DefaultQueue(np.PID)
	np.State = proc.Runnable
}

// forkret is where a new process starts; it still holds the table lock
// acquired by the scheduler.
func (s *Service) forkret(p *proc.Process, entry Entry) {
	s.mu.Unlock()
	if entry != nil {
		entry(p)
	}
	s.Exit(p, 0)
}

func (s *Service) release(p *proc.Process) {
	if p.KernelStack != 0 {
		s.vm.FreePage(p.KernelStack)
	}
	if p.Space != nil {
		s.vm.FreeAddressSpace(p.Space)
	}
	p.Reset()
}

// Exec replaces the image of cur with a fresh one page address space.
func (s *Service) Exec(cur *proc.Process, name string) error {
	space, err := s.vm.NewAddressSpace(vm.PageSize)
	if err != nil {
		return fmt.Errorf("exec %v: %w", name, err)
	}
	for _, hook := range s.releaseHooks {
		hook(cur)
	}
	s.mu.Lock()
	old := cur.Space
	cur.Space = space
	cur.Size = vm.PageSize
	cur.Name = name
	cur.TrapFrame = proc.TrapFrame{SP: vm.PageSize}
	if cur.CPU != proc.NoCPU {
		s.vm.Activate(cur.CPU, space)
	}
	s.mu.Unlock()
	s.vm.FreeAddressSpace(old)
	return nil
}

// Exit terminates cur. The process stays a Zombie until its parent waits for
// it. Exit never returns.
func (s *Service) Exit(cur *proc.Process, status int) {
	if cur.Slot == s.initSlot {
		s.halt("init exiting")
		runtime.Goexit()
	}
	for i, f := range cur.Files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil {
			log.Printf("exit %d: failed to close fd %d: %v", cur.PID, i, err)
		}
		cur.Files[i] = nil
	}
	if cur.Cwd != nil {
		cur.Cwd.Release()
		cur.Cwd = nil
	}
	for _, hook := range s.releaseHooks {
		hook(cur)
	}

	s.mu.Lock()
	if cur.Parent != proc.NoParent {
		s.wakeup1(s.procs[cur.Parent])
	}
	for _, p := range s.procs {
		if p.State == proc.Unused || p.Parent != cur.Slot {
			continue
		}
		p.Parent = s.initSlot
		if p.State == proc.Zombie {
			s.wakeup1(s.procs[s.initSlot])
		}
	}
	cur.State = proc.Zombie
	cur.ExitStatus = status
	s.publish(EventExit, cur, "")
	s.checkSched(cur)
	if err := s.switcher.Exit(cur.Context, cur.Host); err != nil {
		s.stopped.Store(true)
		s.mu.Unlock()
		runtime.Goexit()
	}
}

// Wait blocks until a child of cur exits, reclaims it and returns its pid.
func (s *Service) Wait(cur *proc.Process) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		haveKids := false
		for _, p := range s.procs {
			if p.State == proc.Unused || p.Parent != cur.Slot {
				continue
			}
			haveKids = true
			if p.State == proc.Zombie {
				pid := p.PID
				s.publish(EventReap, p, "")
				s.release(p)
				return pid, nil
			}
		}
		if !haveKids {
			return 0, ErrNoChildren
		}
		if cur.Killed {
			return 0, ErrKilled
		}
		if !s.sleep(cur, cur) {
			runtime.Goexit()
		}
	}
}

// Kill marks the process killed; a sleeping target is made runnable so it
// observes the flag.
func (s *Service) Kill(pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.lookup(pid)
	if p == nil {
		return fmt.Errorf("kill %d: %w", pid, ErrNotFound)
	}
	p.Killed = true
	if p.State == proc.Sleeping {
		p.State = proc.Runnable
	}
	s.publish(EventKill, p, "")
	return nil
}

// Killed reports whether p has been killed
func (s *Service) Killed(p *proc.Process) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return p.Killed
}

// SetName renames cur
func (s *Service) SetName(cur *proc.Process, name string) {
	s.mu.Lock()
	cur.Name = name
	s.mu.Unlock()
}

// Grow resizes the address space of cur by n bytes and returns the previous size.
func (s *Service) Grow(cur *proc.Process, n int) (uint64, error) {
	old := cur.Size
	target := int64(old) + int64(n)
	if target < 0 {
		return old, fmt.Errorf("grow %d by %d: negative size", cur.PID, n)
	}
	size, err := s.vm.Grow(cur.Space, old, uint64(target))
	if err != nil {
		return old, fmt.Errorf("grow %d by %d: %w", cur.PID, n, err)
	}
	s.mu.Lock()
	cur.Size = size
	if cur.CPU != proc.NoCPU {
		s.vm.Activate(cur.CPU, cur.Space)
	}
	s.mu.Unlock()
	return old, nil
}

// lookup returns the live process with pid; callers hold the lock.
func (s *Service) lookup(pid int) *proc.Process {
	if pid <= 0 {
		return nil
	}
	for _, p := range s.procs {
		if p.State != proc.Unused && p.PID == pid {
			return p
		}
	}
	return nil
}
