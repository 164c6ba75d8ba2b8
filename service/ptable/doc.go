// Package ptable owns the process table: a fixed arena of process control
// blocks addressed by slot index, with pids handed out from a monotonically
// increasing sequence.
//
// Every field of every process is guarded by one table-wide lock. The lock
// is handed across goroutines during a context switch: the scheduler acquires
// it before resuming a process and the resumed process releases it, then
// re-acquires it before switching back.
package ptable
