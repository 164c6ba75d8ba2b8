package prioritylock

import (
	"container/heap"

	"github.com/viant/kcore/runtime/proc"
)

type waiter struct {
	pid     int
	process *proc.Process
	index   int
}

// waitQueue orders waiters by pid, highest first
type waitQueue []*waiter

func (q waitQueue) Len() int { return len(q) }

func (q waitQueue) Less(i, j int) bool { return q[i].pid > q[j].pid }

func (q waitQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *waitQueue) Push(x interface{}) {
	w := x.(*waiter)
	w.index = len(*q)
	*q = append(*q, w)
}

func (q *waitQueue) Pop() interface{} {
	old := *q
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	*q = old[:n-1]
	return w
}

// pids returns waiting pids in service order
func (q waitQueue) pids() []int {
	clone := make(waitQueue, len(q))
	for i, w := range q {
		clone[i] = &waiter{pid: w.pid, index: i}
	}
	var ret []int
	for clone.Len() > 0 {
		ret = append(ret, heap.Pop(&clone).(*waiter).pid)
	}
	return ret
}

var _ heap.Interface = (*waitQueue)(nil)
