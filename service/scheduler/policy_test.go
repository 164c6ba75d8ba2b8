package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/kcore/runtime/proc"
)

func newProcs(n int) []*proc.Process {
	ret := make([]*proc.Process, n)
	for i := range ret {
		ret[i] = &proc.Process{Slot: i}
		ret[i].Reset()
	}
	return ret
}

func setRunnable(p *proc.Process, pid int, q proc.Queue) *proc.Process {
	p.PID = pid
	p.State = proc.Runnable
	p.Queue = q
	p.Rank = proc.NewRankInfo()
	return p
}

func TestRoundRobin_Fairness(t *testing.T) {
	procs := newProcs(8)
	for _, i := range []int{1, 2, 4, 6} {
		setRunnable(procs[i], i+10, proc.RoundRobin)
	}
	setRunnable(procs[5], 99, proc.LCFS)

	policy := NewRoundRobin()
	var visited []int
	for i := 0; i < 8; i++ {
		p := policy.Next(procs)
		visited = append(visited, p.PID)
	}
	assert.Equal(t, []int{11, 12, 14, 16, 11, 12, 14, 16}, visited)
}

func TestRoundRobin_SingleAndEmpty(t *testing.T) {
	procs := newProcs(4)
	policy := NewRoundRobin()
	assert.Nil(t, policy.Next(procs))

	setRunnable(procs[3], 7, proc.RoundRobin)
	assert.Equal(t, 7, policy.Next(procs).PID)
	// the only candidate is the start slot itself
	assert.Equal(t, 7, policy.Next(procs).PID)
	procs[3].State = proc.Sleeping
	assert.Nil(t, policy.Next(procs))
	assert.Nil(t, policy.Next(nil))
}

func TestLCFS(t *testing.T) {
	procs := newProcs(6)
	setRunnable(procs[0], 3, proc.LCFS).LastInLCFS = 5
	setRunnable(procs[1], 4, proc.LCFS).LastInLCFS = 9
	setRunnable(procs[2], 5, proc.RoundRobin).LastInLCFS = 50

	policy := NewLCFS()
	assert.Equal(t, 4, policy.Next(procs).PID)

	// continuation: the favoured process keeps the CPU while runnable
	setRunnable(procs[3], 6, proc.LCFS).LastInLCFS = 12
	assert.Equal(t, 4, policy.Next(procs).PID)

	procs[1].State = proc.Sleeping
	assert.Equal(t, 6, policy.Next(procs).PID)

	// ties go to the later slot
	procs[1].State = proc.Runnable
	setRunnable(procs[4], 7, proc.LCFS).LastInLCFS = 12
	policy = NewLCFS()
	assert.Equal(t, 7, policy.Next(procs).PID)

	// a favoured process moved to another queue is not continued
	procs[4].Queue = proc.BJF
	assert.Equal(t, 6, policy.Next(procs).PID)
}

func TestLCFS_ReusedSlot(t *testing.T) {
	procs := newProcs(2)
	setRunnable(procs[0], 3, proc.LCFS).LastInLCFS = 9
	setRunnable(procs[1], 4, proc.LCFS).LastInLCFS = 1
	policy := NewLCFS()
	assert.Equal(t, 3, policy.Next(procs).PID)

	procs[0].Reset()
	setRunnable(procs[0], 8, proc.LCFS).LastInLCFS = 0
	assert.Equal(t, 4, policy.Next(procs).PID)
}

func TestBJF(t *testing.T) {
	procs := newProcs(4)
	worse := setRunnable(procs[0], 3, proc.BJF)
	worse.Rank = proc.RankInfo{Priority: 3, ArrivalTime: 7, Ratios: proc.Ratios{Priority: 1, ArrivalTime: 1}}
	better := setRunnable(procs[2], 4, proc.BJF)
	better.Rank = proc.RankInfo{Priority: 3, ArrivalTime: 4, Ratios: proc.Ratios{Priority: 1, ArrivalTime: 1}}
	setRunnable(procs[3], 5, proc.LCFS).Rank = proc.RankInfo{}

	assert.InDelta(t, 10.0, worse.CurrentRank(), 1e-9)
	assert.InDelta(t, 7.0, better.CurrentRank(), 1e-9)

	policy := NewBJF()
	for i := 0; i < 5; i++ {
		assert.Equal(t, 4, policy.Next(procs).PID)
	}
	better.State = proc.Sleeping
	assert.Equal(t, 3, policy.Next(procs).PID)

	// ties go to the earlier slot
	better.State = proc.Runnable
	better.Rank.ArrivalTime = 7
	assert.Equal(t, 3, policy.Next(procs).PID)
}

func TestCPU_PickOrder(t *testing.T) {
	procs := newProcs(3)
	setRunnable(procs[0], 3, proc.BJF)
	setRunnable(procs[1], 4, proc.LCFS)
	cpu := &CPU{policies: NewPolicies()}
	assert.Equal(t, 4, cpu.pick(procs).PID)
	setRunnable(procs[2], 5, proc.RoundRobin)
	assert.Equal(t, 5, cpu.pick(procs).PID)
	procs[1].State = proc.Sleeping
	procs[2].State = proc.Sleeping
	assert.Equal(t, 3, cpu.pick(procs).PID)
}
