package syscount

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Counts is a point in time view of the counters.
type Counts struct {
	PerCPU []int64 `json:"perCPU" yaml:"perCPU"`
	Total  int64   `json:"total" yaml:"total"`
}

// Counter tracks system calls per CPU. It is safe for concurrent use.
type Counter struct {
	perCPU   []atomic.Int64
	total    atomic.Int64
	onChange atomic.Pointer[func(cpu int)]
}

// New creates a counter for cpus processors
func New(cpus int) *Counter {
	if cpus < 1 {
		cpus = 1
	}
	return &Counter{perCPU: make([]atomic.Int64, cpus)}
}

// CPUs returns the number of tracked processors
func (c *Counter) CPUs() int {
	return len(c.perCPU)
}

// Record counts one system call on cpu. Calls made off-CPU only count towards the total.
func (c *Counter) Record(cpu int) {
	if c == nil {
		return
	}
	if cpu >= 0 && cpu < len(c.perCPU) {
		c.perCPU[cpu].Add(1)
	}
	c.total.Add(1)
	if cb := c.onChange.Load(); cb != nil {
		(*cb)(cpu)
	}
}

// Snapshot returns a copy of the counters.
func (c *Counter) Snapshot() Counts {
	if c == nil {
		return Counts{}
	}
	ret := Counts{PerCPU: make([]int64, len(c.perCPU))}
	for i := range c.perCPU {
		ret.PerCPU[i] = c.perCPU[i].Load()
	}
	ret.Total = c.total.Load()
	return ret
}

// Reset zeroes every counter
func (c *Counter) Reset() {
	if c == nil {
		return
	}
	for i := range c.perCPU {
		c.perCPU[i].Store(0)
	}
	c.total.Store(0)
}

// OnChange registers a callback invoked after every Record. Passing nil disables it.
func (c *Counter) OnChange(cb func(cpu int)) {
	if cb == nil {
		c.onChange.Store(nil)
		return
	}
	c.onChange.Store(&cb)
}

// Print writes the per-CPU and total counts to w.
func (c *Counter) Print(w io.Writer) error {
	counts := c.Snapshot()
	for cpu, n := range counts.PerCPU {
		if _, err := fmt.Fprintf(w, "cpu number %d has run %d systemcalls\n", cpu, n); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "total number of system calls are %d\n", counts.Total)
	return err
}
