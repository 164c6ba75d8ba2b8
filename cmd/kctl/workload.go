package main

import (
	"github.com/viant/kcore"
	"github.com/viant/kcore/runtime/proc"
	"github.com/viant/kcore/service/vm"
)

// shell idles like an interactive shell waiting for input
func shell(sys *kcore.Sys) {
	for {
		if err := sys.Sleep(5); err != nil {
			return
		}
	}
}

// worker burns cpu proportionally to weight, returning to the kernel
// periodically so it can be preempted
func worker(weight int) kcore.Program {
	return func(sys *kcore.Sys) {
		_, _ = sys.Sbrk(weight * vm.PageSize)
		x := 0
		for i := 0; i < weight*200_000; i++ {
			x++
			if i%1000 == 0 {
				sys.Uptime()
			}
		}
	}
}

// startWorkload forks a shell and n workers; odd workers join the BJF queue.
func startWorkload(sys *kcore.Sys, n int) {
	_, _ = sys.Fork(func(sys *kcore.Sys) {
		_ = sys.Exec("sh", shell)
	})
	for i := 0; i < n; i++ {
		weight := i + 1
		pid, err := sys.Fork(func(sys *kcore.Sys) {
			_ = sys.Exec("foo", worker(weight))
		})
		if err != nil {
			continue
		}
		if i%2 == 1 {
			_, _ = sys.ChangeQueue(pid, proc.BJF)
			_ = sys.SetRankPriority(pid, proc.PriorityMin+i%proc.PriorityMax)
		}
	}
}
