package prioritylock

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitQueue(t *testing.T) {
	var q waitQueue
	for _, pid := range []int{5, 9, 3} {
		heap.Push(&q, &waiter{pid: pid})
	}
	assert.Equal(t, []int{9, 5, 3}, q.pids())
	assert.Equal(t, 3, q.Len())

	var popped []int
	for q.Len() > 0 {
		popped = append(popped, heap.Pop(&q).(*waiter).pid)
	}
	assert.Equal(t, []int{9, 5, 3}, popped)
}

func TestWaitQueue_Remove(t *testing.T) {
	var q waitQueue
	waiters := map[int]*waiter{}
	for _, pid := range []int{4, 8, 6, 2} {
		w := &waiter{pid: pid}
		waiters[pid] = w
		heap.Push(&q, w)
	}
	heap.Remove(&q, waiters[6].index)
	assert.Equal(t, []int{8, 4, 2}, q.pids())
}
