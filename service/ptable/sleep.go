package ptable

import (
	"errors"
	"runtime"
	"sync"

	"github.com/viant/kcore/runtime/proc"
	"github.com/viant/kcore/runtime/swtch"
)

// Sleep atomically releases lk and suspends cur on ch; lk is re-acquired
// before returning. Holding the table lock across the state change means a
// Wakeup issued after lk is released cannot be lost.
//
// Once the switcher is stopped Sleep terminates the calling goroutine with lk
// held, as on a normal return; callers release lk with defer.
func (s *Service) Sleep(cur *proc.Process, ch interface{}, lk sync.Locker) {
	if cur == nil {
		s.halt("sleep: no process")
		return
	}
	if lk == nil {
		s.halt("sleep without lk")
		return
	}
	tableLock := lk == sync.Locker(&s.mu)
	if !tableLock {
		s.mu.Lock()
		lk.Unlock()
	}
	resumed := s.sleep(cur, ch)
	if !tableLock {
		s.mu.Unlock()
		lk.Lock()
	}
	if !resumed {
		runtime.Goexit()
	}
}

// sleep suspends cur; the table lock is held. It reports false when the
// switcher stopped.
func (s *Service) sleep(cur *proc.Process, ch interface{}) bool {
	cur.Chan = ch
	cur.State = proc.Sleeping
	resumed := s.sched(cur)
	cur.Chan = nil
	return resumed
}

// Wakeup makes every process sleeping on ch runnable
func (s *Service) Wakeup(ch interface{}) {
	s.mu.Lock()
	s.wakeup1(ch)
	s.mu.Unlock()
}

func (s *Service) wakeup1(ch interface{}) {
	for _, p := range s.procs {
		if p.State == proc.Sleeping && p.Chan == ch {
			p.State = proc.Runnable
		}
	}
}

// Yield gives up the CPU for one scheduling round. It terminates the calling
// goroutine once the switcher is stopped.
func (s *Service) Yield(cur *proc.Process) {
	s.mu.Lock()
	cur.State = proc.Runnable
	resumed := s.sched(cur)
	s.mu.Unlock()
	if !resumed {
		runtime.Goexit()
	}
}

// sched switches from cur back to the scheduler of its CPU. The table lock
// must be held and cur must already have left the Running state. It reports
// false when the switcher stopped; the table lock is held either way.
func (s *Service) sched(cur *proc.Process) bool {
	s.checkSched(cur)
	err := s.switcher.Switch(cur.Context, cur.Host)
	if err == nil {
		return true
	}
	s.stopped.Store(true)
	if errors.Is(err, swtch.ErrAbandoned) {
		// the scheduler got the lock with the switch and unlocks it
		s.mu.Lock()
	}
	return false
}

// checkSched halts on a broken scheduling precondition. The lock check only
// proves that the table lock is held, not that cur holds it: the lock is
// handed between goroutines, so there is no owner to compare with.
// Stopped reports whether a process found the switcher stopped; processes
// are then being terminated.
func (s *Service) Stopped() bool {
	return s.stopped.Load()
}

func (s *Service) checkSched(cur *proc.Process) {
	if s.mu.TryLock() {
		s.mu.Unlock()
		s.halt("sched ptable.lock")
	}
	if cur.State == proc.Running {
		s.halt("sched running")
	}
	if cur.Host == nil {
		s.halt("sched: process %d was never dispatched", cur.PID)
	}
}
