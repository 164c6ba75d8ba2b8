package proc

import (
	"time"

	"github.com/viant/kcore/runtime/swtch"
	"github.com/viant/kcore/service/vm"
)

const (
	// MaxSharedPages is the capacity of the shared-memory pool and of each
	// process' shared mapping record.
	MaxSharedPages = 16
	// NoParent marks a process without a parent slot.
	NoParent = -1
	// NoCPU marks a process not currently bound to a CPU.
	NoCPU = -1
)

// TrapFrame is the user register state saved on kernel entry
type TrapFrame struct {
	Ret int
	PC  uint64
	SP  uint64
}

// File is an open-file table entry
type File interface {
	Dup() File
	Close() error
}

// Dir is a working directory reference
type Dir interface {
	Dup() Dir
	Release()
}

// Process is a process control block. All fields are guarded by the process
// table lock.
type Process struct {
	Slot       int
	PID        int
	Name       string
	State      State
	Parent     int
	Queue      Queue
	Rank       RankInfo
	LastRun    int64
	LastInLCFS int64
	Killed     bool
	Chan       any
	ExitStatus int
	CPU        int
	CreatedAt  time.Time

	Size        uint64
	Space       vm.AddressSpace
	KernelStack vm.PhysAddr
	TrapFrame   TrapFrame
	Files       []File
	Cwd         Dir
	Shared      [MaxSharedPages]vm.Addr

	// Context is where the process resumes; Host is the scheduler context of
	// the CPU that dispatched it.
	Context *swtch.Context
	Host    *swtch.Context
}

// Reset clears the slot back to Unused.
func (p *Process) Reset() {
	slot := p.Slot
	*p = Process{Slot: slot, Parent: NoParent, CPU: NoCPU}
	p.UnmapShared()
}

// UnmapShared marks every shared slot as unmapped.
func (p *Process) UnmapShared() {
	for i := range p.Shared {
		p.Shared[i] = vm.Unmapped
	}
}

// IsSchedulable reports whether p may be picked by the given discipline.
func (p *Process) IsSchedulable(q Queue) bool {
	return p.State == Runnable && p.Queue == q
}

// CurrentRank evaluates the weighted rank of p.
func (p *Process) CurrentRank() float64 {
	return p.Rank.Rank(p.Size)
}
