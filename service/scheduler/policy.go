package scheduler

import (
	"github.com/viant/kcore/runtime/proc"
)

// Policy selects the next process of one queue. Policies keep per-CPU state
// and are called with the table lock held.
type Policy interface {
	Queue() proc.Queue
	Next(procs []*proc.Process) *proc.Process
}

// NewPolicies returns a fresh policy set in dispatch order
func NewPolicies() []Policy {
	return []Policy{NewRoundRobin(), NewLCFS(), NewBJF()}
}

// RoundRobin scans the table cyclically starting after the last slot it dispatched.
type RoundRobin struct {
	last int
}

// NewRoundRobin creates a policy whose first scan starts at slot 0
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{last: -1}
}

func (r *RoundRobin) Queue() proc.Queue { return proc.RoundRobin }

func (r *RoundRobin) Next(procs []*proc.Process) *proc.Process {
	n := len(procs)
	if n == 0 {
		return nil
	}
	start := r.last
	if start < 0 || start >= n {
		start = n - 1
	}
	for i := (start + 1) % n; ; i = (i + 1) % n {
		if procs[i].IsSchedulable(proc.RoundRobin) {
			r.last = i
			return procs[i]
		}
		if i == start {
			return nil
		}
	}
}

// LCFS prefers the process that most recently entered the queue and keeps
// running the one it picked last while it stays runnable.
type LCFS struct {
	last    *proc.Process
	lastPID int
}

func NewLCFS() *LCFS {
	return &LCFS{}
}

func (l *LCFS) Queue() proc.Queue { return proc.LCFS }

func (l *LCFS) Next(procs []*proc.Process) *proc.Process {
	if l.last != nil && l.last.PID == l.lastPID && l.last.IsSchedulable(proc.LCFS) {
		return l.last
	}
	var result *proc.Process
	latest := int64(-1)
	for _, p := range procs {
		if p.IsSchedulable(proc.LCFS) && p.LastInLCFS >= latest {
			latest = p.LastInLCFS
			result = p
		}
	}
	if result != nil {
		l.last, l.lastPID = result, result.PID
	}
	return result
}

// BJF picks the runnable process with the lowest weighted rank; ties go to the lower slot.
type BJF struct{}

func NewBJF() *BJF {
	return &BJF{}
}

func (b *BJF) Queue() proc.Queue { return proc.BJF }

func (b *BJF) Next(procs []*proc.Process) *proc.Process {
	var result *proc.Process
	var minRank float64
	for _, p := range procs {
		if !p.IsSchedulable(proc.BJF) {
			continue
		}
		if rank := p.CurrentRank(); result == nil || rank < minRank {
			result, minRank = p, rank
		}
	}
	return result
}
