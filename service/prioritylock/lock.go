package prioritylock

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/viant/kcore/runtime/proc"
	"github.com/viant/kcore/service/ptable"
)

var (
	// ErrNotOwner is returned when a process releases a lock it does not hold.
	ErrNotOwner = errors.New("prioritylock: not owner")
	// ErrBusy is returned when re-initialising a held lock.
	ErrBusy = errors.New("prioritylock: lock is held")
	// ErrOwner is returned when the owner acquires the lock again.
	ErrOwner = errors.New("prioritylock: already owner")
)

// Lock is a priority ordered, direct handoff lock
type Lock struct {
	name    string
	mu      sync.Mutex
	locked  bool
	owner   int
	waiters waitQueue
	table   *ptable.Service
	console io.Writer
}

type Option func(l *Lock)

// WithConsole sets where ownership violations are reported
func WithConsole(w io.Writer) Option {
	return func(l *Lock) {
		l.console = w
	}
}

// New creates a released lock
func New(name string, table *ptable.Service, opts ...Option) *Lock {
	ret := &Lock{name: name, table: table, console: os.Stdout}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Name returns lock name
func (l *Lock) Name() string {
	return l.name
}

// Init resets the lock; a held lock is left untouched.
func (l *Lock) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked {
		return fmt.Errorf("init %v owned by %d: %w", l.name, l.owner, ErrBusy)
	}
	l.owner = 0
	l.waiters = nil
	return nil
}

// Acquire blocks cur until it owns the lock. A process killed while waiting
// leaves the queue and gets ptable.ErrKilled.
func (l *Lock) Acquire(cur *proc.Process) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.locked {
		l.locked = true
		l.owner = cur.PID
		return nil
	}
	if l.owner == cur.PID {
		return fmt.Errorf("acquire %v by %d: %w", l.name, cur.PID, ErrOwner)
	}
	w := &waiter{pid: cur.PID, process: cur}
	heap.Push(&l.waiters, w)
	for l.owner != cur.PID {
		if l.table.Killed(cur) {
			heap.Remove(&l.waiters, w.index)
			return ptable.ErrKilled
		}
		l.table.Sleep(cur, w, &l.mu)
	}
	return nil
}

// Release hands the lock to the highest pid waiter or unlocks it.
func (l *Lock) Release(cur *proc.Process) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.locked || l.owner != cur.PID {
		fmt.Fprintf(l.console, "the process %d does not own the lock to release it\n", cur.PID)
		return ErrNotOwner
	}
	if l.waiters.Len() == 0 {
		l.locked = false
		l.owner = 0
		return nil
	}
	next := heap.Pop(&l.waiters).(*waiter)
	l.owner = next.pid
	l.table.Wakeup(next)
	return nil
}

// Owner returns the owning pid
func (l *Lock) Owner() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner, l.locked
}

// Waiters returns waiting pids in the order they will be served
func (l *Lock) Waiters() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiters.pids()
}
