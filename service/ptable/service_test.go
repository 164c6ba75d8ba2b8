package ptable

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kcore/internal/clock"
	"github.com/viant/kcore/runtime/proc"
	"github.com/viant/kcore/runtime/swtch"
	"github.com/viant/kcore/service/vm"
	"github.com/viant/kcore/service/vm/memory"
)

type harness struct {
	table    *Service
	vm       *memory.Service
	switcher *swtch.Channel
	host     *swtch.Context
	ticks    *clock.Ticks
}

func newHarness(t *testing.T, frames int, opts ...Option) *harness {
	h := &harness{
		vm:       memory.New(memory.Config{Frames: frames}),
		switcher: swtch.NewChannel(),
		host:     swtch.NewContext(nil),
		ticks:    &clock.Ticks{},
	}
	opts = append([]Option{
		WithSwitcher(h.switcher),
		WithTicks(h.ticks),
		WithHalt(func(format string, args ...interface{}) { panic(fmt.Sprintf(format, args...)) }),
		WithConfig(Config{Capacity: 8, AgingThreshold: 8000}),
	}, opts...)
	table, err := New(h.vm, opts...)
	require.NoError(t, err)
	h.table = table
	t.Cleanup(h.switcher.Stop)
	return h
}

// run dispatches p on CPU 0 until it switches back.
func (h *harness) run(t *testing.T, p *proc.Process) {
	h.table.Lock()
	require.Equal(t, proc.Runnable, p.State, "pid %d", p.PID)
	p.State = proc.Running
	p.Host = h.host
	p.CPU = 0
	require.NoError(t, h.switcher.Switch(h.host, p.Context))
	p.CPU = proc.NoCPU
	h.table.Unlock()
}

// park suspends the calling process forever.
func (h *harness) park(p *proc.Process) {
	h.table.Lock()
	defer h.table.Unlock()
	h.table.Sleep(p, h, h.table.Locker())
}

func (h *harness) boot(t *testing.T, entry Entry) *proc.Process {
	p, err := h.table.Boot("init", entry, nil)
	require.NoError(t, err)
	return p
}

func (h *harness) find(pid int) *proc.Process {
	h.table.Lock()
	defer h.table.Unlock()
	return h.table.lookup(pid)
}

type refFile struct {
	refs *int
}

func (f *refFile) Dup() proc.File { *f.refs++; return f }
func (f *refFile) Close() error   { *f.refs--; return nil }

func TestService_Create(t *testing.T) {
	h := newHarness(t, 64)
	var pids []int
	for i := 0; i < 8; i++ {
		p, err := h.table.Create()
		require.NoError(t, err)
		assert.Equal(t, proc.Embryo, p.State)
		assert.Equal(t, proc.PriorityDefault, p.Rank.Priority)
		assert.Equal(t, proc.DefaultRatios(), p.Rank.Ratios)
		assert.Equal(t, vm.Unmapped, p.Shared[proc.MaxSharedPages-1])
		assert.NotZero(t, p.KernelStack)
		pids = append(pids, p.PID)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, pids)
	_, err := h.table.Create()
	assert.True(t, errors.Is(err, ErrTableFull))
}

func TestService_Create_OutOfMemory(t *testing.T) {
	h := newHarness(t, 1)
	_, err := h.table.Create()
	require.NoError(t, err)
	_, err = h.table.Create()
	assert.True(t, errors.Is(err, vm.ErrOutOfMemory))
	unused := 0
	for _, info := range h.table.Procs() {
		if info.State == proc.Unused {
			unused++
		}
	}
	assert.Equal(t, 7, unused)
	// pids are never reused even after a failed allocation
	h.vm.FreePage(h.table.Procs()[0].KernelStack)
	p, err := h.table.Create()
	require.NoError(t, err)
	assert.Equal(t, 3, p.PID)
}

func TestService_Fork(t *testing.T) {
	h := newHarness(t, 64)
	refs := 1
	root, err := h.table.Boot("init", nil, nil, &refFile{refs: &refs})
	require.NoError(t, err)
	assert.Equal(t, proc.RoundRobin, root.Queue)
	_, err = h.table.Boot("init", nil, nil)
	assert.True(t, errors.Is(err, ErrBooted))

	root.TrapFrame.Ret = 42
	h.ticks.Set(17)
	pid, err := h.table.Fork(root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, pid)
	sh := h.find(pid)
	assert.Equal(t, proc.RoundRobin, sh.Queue)
	assert.Equal(t, proc.Runnable, sh.State)
	assert.Equal(t, root.Slot, sh.Parent)
	assert.Equal(t, 0, sh.TrapFrame.Ret)
	assert.Equal(t, "init", sh.Name)
	assert.Equal(t, int64(17), sh.Rank.ArrivalTime)
	assert.Equal(t, int64(17), sh.LastInLCFS)
	assert.Equal(t, 2, refs)

	pid, err = h.table.Fork(sh, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, pid)
	assert.Equal(t, proc.LCFS, h.find(pid).Queue)
	assert.Equal(t, 3, refs)
}

func TestService_Fork_Rollback(t *testing.T) {
	h := newHarness(t, 3)
	root := h.boot(t, nil)
	assert.Equal(t, 1, h.vm.FreeFrames())
	// kernel stack takes the last frame, the address space copy fails
	_, err := h.table.Fork(root, nil)
	assert.True(t, errors.Is(err, vm.ErrOutOfMemory))
	assert.Equal(t, 1, h.vm.FreeFrames())
	assert.Len(t, h.table.Snapshot(), 1)
}

func TestService_WaitExit(t *testing.T) {
	h := newHarness(t, 64)
	type result struct {
		pid int
		err error
	}
	results := make(chan result, 2)
	root := h.boot(t, func(p *proc.Process) {
		_, err := h.table.Fork(p, func(child *proc.Process) {
			h.table.Exit(child, 7)
		})
		require.NoError(t, err)
		pid, err := h.table.Wait(p)
		results <- result{pid, err}
		pid, err = h.table.Wait(p)
		results <- result{pid, err}
		h.park(p)
	})

	h.run(t, root)
	assert.Equal(t, proc.Sleeping, root.State)
	child := h.find(2)
	require.NotNil(t, child)
	assert.Equal(t, proc.Runnable, child.State)

	h.run(t, child)
	assert.Equal(t, proc.Zombie, child.State)
	assert.Equal(t, 7, child.ExitStatus)
	assert.Equal(t, proc.Runnable, root.State)

	h.run(t, root)
	first := <-results
	assert.NoError(t, first.err)
	assert.Equal(t, 2, first.pid)
	second := <-results
	assert.True(t, errors.Is(second.err, ErrNoChildren))
	assert.Equal(t, proc.Unused, child.State)
	assert.Equal(t, 0, child.PID)
	assert.Equal(t, "", child.Name)
	assert.Equal(t, proc.NoParent, child.Parent)
}

func TestService_ExitReparents(t *testing.T) {
	h := newHarness(t, 64)
	root := h.boot(t, nil)
	pid, err := h.table.Fork(root, func(p *proc.Process) {
		_, err := h.table.Fork(p, func(grandchild *proc.Process) {
			h.table.Exit(grandchild, 1)
		})
		require.NoError(t, err)
		h.table.Yield(p)
	})
	require.NoError(t, err)
	parent := h.find(pid)

	h.run(t, parent)
	grandchild := h.find(3)
	h.run(t, grandchild)
	assert.Equal(t, proc.Zombie, grandchild.State)
	assert.Equal(t, parent.Slot, grandchild.Parent)

	h.run(t, parent)
	assert.Equal(t, proc.Zombie, parent.State)
	assert.Equal(t, root.Slot, grandchild.Parent)
}

func TestService_ExitInit(t *testing.T) {
	h := newHarness(t, 64)
	root := h.boot(t, nil)
	assert.PanicsWithValue(t, "init exiting", func() {
		h.table.Exit(root, 0)
	})
}

func TestService_SleepReleasesLock(t *testing.T) {
	h := newHarness(t, 64)
	var lk sync.Mutex
	var channel int
	held := make(chan bool, 1)
	p := h.boot(t, func(p *proc.Process) {
		lk.Lock()
		h.table.Sleep(p, &channel, &lk)
		held <- !lk.TryLock()
		lk.Unlock()
		h.park(p)
	})

	h.run(t, p)
	assert.Equal(t, proc.Sleeping, p.State)
	require.True(t, lk.TryLock(), "sleep must release the caller's lock")
	lk.Unlock()

	h.table.Wakeup(&struct{}{})
	assert.Equal(t, proc.Sleeping, p.State)
	h.table.Wakeup(&channel)
	assert.Equal(t, proc.Runnable, p.State)

	h.run(t, p)
	assert.True(t, <-held)
}

func TestService_Sleep_Invariants(t *testing.T) {
	h := newHarness(t, 64)
	assert.PanicsWithValue(t, "sleep: no process", func() {
		h.table.Sleep(nil, h, &sync.Mutex{})
	})
	p := h.boot(t, nil)
	assert.PanicsWithValue(t, "sleep without lk", func() {
		h.table.Sleep(p, h, nil)
	})
	// sched requires the table lock
	assert.PanicsWithValue(t, "sched ptable.lock", func() {
		h.table.checkSched(p)
	})
}

func TestService_Kill(t *testing.T) {
	h := newHarness(t, 64)
	var channel int
	p := h.boot(t, func(p *proc.Process) {
		h.table.Lock()
		h.table.Sleep(p, &channel, h.table.Locker())
		h.table.Unlock()
		h.park(p)
	})
	h.run(t, p)
	assert.Equal(t, proc.Sleeping, p.State)

	require.NoError(t, h.table.Kill(1))
	assert.True(t, h.table.Killed(p))
	assert.Equal(t, proc.Runnable, p.State)
	assert.True(t, errors.Is(h.table.Kill(99), ErrNotFound))
}

func TestService_Yield(t *testing.T) {
	h := newHarness(t, 64)
	steps := make(chan int, 2)
	p := h.boot(t, func(p *proc.Process) {
		steps <- 1
		h.table.Yield(p)
		steps <- 2
		h.park(p)
	})
	h.run(t, p)
	assert.Equal(t, proc.Runnable, p.State)
	h.run(t, p)
	assert.Equal(t, []int{1, 2}, []int{<-steps, <-steps})
}

func TestService_Fork_NoProcess(t *testing.T) {
	var halted []string
	h := newHarness(t, 64, WithHalt(func(format string, args ...interface{}) {
		halted = append(halted, fmt.Sprintf(format, args...))
	}))
	pid, err := h.table.Fork(nil, nil)
	assert.True(t, errors.Is(err, ErrNoProcess))
	assert.Equal(t, 0, pid)
	assert.Equal(t, []string{"fork: no process"}, halted)
}

func TestService_StopReleasesLocks(t *testing.T) {
	var testCases = []struct {
		description string
		block       func(h *harness, p *proc.Process, lk *sync.Mutex)
	}{
		{
			description: "sleep on own lock",
			block: func(h *harness, p *proc.Process, lk *sync.Mutex) {
				var channel int
				lk.Lock()
				defer lk.Unlock()
				h.table.Sleep(p, &channel, lk)
			},
		},
		{
			description: "wait for child",
			block: func(h *harness, p *proc.Process, lk *sync.Mutex) {
				_, _ = h.table.Wait(p)
			},
		},
		{
			description: "yield",
			block: func(h *harness, p *proc.Process, lk *sync.Mutex) {
				h.table.Yield(p)
			},
		},
	}
	for _, testCase := range testCases {
		h := newHarness(t, 64)
		var lk sync.Mutex
		exited := make(chan bool, 1)
		p := h.boot(t, func(p *proc.Process) {
			returned := false
			defer func() { exited <- returned }()
			testCase.block(h, p, &lk)
			returned = true
		})
		_, err := h.table.Fork(p, nil)
		require.NoError(t, err, testCase.description)
		h.run(t, p)
		h.switcher.Stop()
		select {
		case returned := <-exited:
			assert.False(t, returned, testCase.description)
		case <-time.After(5 * time.Second):
			t.Fatalf("%v: process did not terminate", testCase.description)
		}
		assert.True(t, h.table.Stopped(), testCase.description)
		assert.True(t, lk.TryLock(), testCase.description)
		assert.True(t, h.table.mu.TryLock(), testCase.description)
		h.table.mu.Unlock()
	}
}

func TestService_ChangeQueue(t *testing.T) {
	h := newHarness(t, 64)
	root := h.boot(t, nil)
	pid, err := h.table.Fork(root, nil)
	require.NoError(t, err)
	pid, err = h.table.Fork(root, nil)
	require.NoError(t, err)
	p := h.find(pid)
	require.Equal(t, proc.LCFS, p.Queue)

	testCases := []struct {
		description string
		pid         int
		queue       proc.Queue
		expectPrev  proc.Queue
		expectQueue proc.Queue
		expectErr   error
	}{
		{description: "same queue", pid: pid, queue: proc.LCFS, expectPrev: proc.LCFS, expectQueue: proc.LCFS, expectErr: ErrSameQueue},
		{description: "to bjf", pid: pid, queue: proc.BJF, expectPrev: proc.LCFS, expectQueue: proc.BJF},
		{description: "unset resolves to lcfs", pid: pid, queue: proc.Unset, expectPrev: proc.BJF, expectQueue: proc.LCFS},
		{description: "invalid queue", pid: pid, queue: proc.Queue(4), expectQueue: proc.LCFS, expectErr: ErrInvalidQueue},
		{description: "unknown pid", pid: 42, queue: proc.RoundRobin, expectQueue: proc.LCFS, expectErr: ErrNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			h.ticks.Advance()
			prev, err := h.table.ChangeQueue(tc.pid, tc.queue)
			if tc.expectErr != nil {
				assert.True(t, errors.Is(err, tc.expectErr), err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectPrev, prev)
			}
			assert.Equal(t, tc.expectQueue, h.find(pid).Queue)
		})
	}
	assert.Equal(t, h.ticks.Now()-2, p.LastInLCFS)

	_, err = h.table.ChangeQueue(1, proc.Unset)
	assert.True(t, errors.Is(err, ErrSameQueue))
}

func TestService_Age(t *testing.T) {
	h := newHarness(t, 64)
	root := h.boot(t, nil)
	var pids []int
	for i := 0; i < 3; i++ {
		pid, err := h.table.Fork(root, nil)
		require.NoError(t, err)
		pids = append(pids, pid)
	}
	_, err := h.table.ChangeQueue(pids[2], proc.BJF)
	require.NoError(t, err)

	assert.Empty(t, h.table.Age(8000))
	assert.Equal(t, []int{pids[1], pids[2]}, h.table.Age(8001))
	assert.Equal(t, proc.RoundRobin, h.find(pids[2]).Queue)
	assert.Empty(t, h.table.Age(20000))
}

func TestService_PromoteInteractive(t *testing.T) {
	h := newHarness(t, 64)
	root := h.boot(t, nil)
	h.table.Fork(root, nil)
	pid, err := h.table.Fork(root, nil)
	require.NoError(t, err)
	p := h.find(pid)
	h.table.SetName(p, "proc_info")
	require.Equal(t, proc.LCFS, p.Queue)
	h.table.PromoteInteractive(map[string]bool{"sh": true, "proc_info": true})
	assert.Equal(t, proc.RoundRobin, p.Queue)
}

func TestService_RankSetters(t *testing.T) {
	h := newHarness(t, 64)
	root := h.boot(t, nil)

	assert.True(t, errors.Is(h.table.SetRankPriority(1, 0), ErrInvalidPriority))
	assert.True(t, errors.Is(h.table.SetRankPriority(1, 6), ErrInvalidPriority))
	assert.True(t, errors.Is(h.table.SetRankPriority(9, 2), ErrNotFound))
	require.NoError(t, h.table.SetRankPriority(1, 5))
	assert.Equal(t, 5, root.Rank.Priority)

	ratios := proc.Ratios{Priority: 2, ArrivalTime: 0, ExecutedCycle: 3, ProcessSize: 0}
	require.NoError(t, h.table.SetRankRatios(1, ratios))
	assert.Equal(t, ratios, root.Rank.Ratios)
	assert.InDelta(t, 10.0, root.CurrentRank(), 1e-9)

	negative := proc.Ratios{Priority: -1}
	assert.True(t, errors.Is(h.table.SetRankRatios(1, negative), ErrInvalidRatio))
	assert.True(t, errors.Is(h.table.SetSystemRankRatios(negative), ErrInvalidRatio))
	assert.Equal(t, ratios, root.Rank.Ratios)

	require.NoError(t, h.table.SetSystemRankRatios(proc.DefaultRatios()))
	for _, p := range h.table.Procs() {
		assert.Equal(t, proc.DefaultRatios(), p.Rank.Ratios)
	}
}

func TestService_RankSetters_Permissive(t *testing.T) {
	h := newHarness(t, 64, WithConfig(Config{Capacity: 8, AgingThreshold: 8000, Permissive: true}))
	root := h.boot(t, nil)
	negative := proc.Ratios{Priority: -1, ArrivalTime: 1}
	require.NoError(t, h.table.SetRankRatios(1, negative))
	assert.Equal(t, negative, root.Rank.Ratios)
	assert.True(t, errors.Is(h.table.SetRankPriority(1, 9), ErrInvalidPriority))
}

func TestService_UncleCount(t *testing.T) {
	h := newHarness(t, 64)
	root := h.boot(t, nil)
	var parent *proc.Process
	for i := 0; i < 3; i++ {
		pid, err := h.table.Fork(root, nil)
		require.NoError(t, err)
		if parent == nil {
			parent = h.find(pid)
		}
	}
	pid, err := h.table.Fork(parent, nil)
	require.NoError(t, err)

	count, err := h.table.UncleCount(pid)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = h.table.UncleCount(parent.PID)
	assert.True(t, errors.Is(err, ErrNoGrandparent))
	_, err = h.table.UncleCount(77)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestService_Lifetime(t *testing.T) {
	h := newHarness(t, 64)
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	clock.NowFunc = func() time.Time { return start }
	defer func() { clock.NowFunc = time.Now }()
	h.boot(t, nil)

	clock.NowFunc = func() time.Time { return start.Add(90 * time.Second) }
	lifetime, err := h.table.Lifetime(1)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, lifetime)
	_, err = h.table.Lifetime(5)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestService_WriteTable(t *testing.T) {
	h := newHarness(t, 64)
	root := h.boot(t, nil)
	_, err := h.table.Fork(root, nil)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, h.table.WriteTable(buf))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, tableHeader, lines[0])
	assert.Equal(t, tableRule, lines[1])
	expected := fmt.Sprintf("%-16s%-8s%-9s%-8s%-8s%-8s%-8s%-9s%-8s%-8s%-8s%s",
		"init", "1", "runnable", "1", "0", "0", "3", "1", "1", "1", "1", "4099")
	assert.Equal(t, expected, lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "init            2       runnable 1"))
}
