// Package kcore provides the process management core of a small multi-core
// teaching kernel: a process table with fork/exit/wait, a per-CPU scheduler
// with round-robin, LCFS and weighted-rank (BJF) queues, a priority ordered
// lock and a reference counted shared-memory pool.
//
// Processes are Go functions (Program) run on their own goroutines. Only one
// goroutine per simulated CPU executes at a time; control moves between the
// scheduler and processes through explicit context switches. A process talks
// to the kernel through the Sys handle it receives:
//
//	srv, _ := kcore.New(kcore.DefaultConfig())
//	rt := srv.Runtime()
//	_ = rt.Start(ctx, "init", func(sys *kcore.Sys) {
//		pid, _ := sys.Fork(worker)
//		_, _ = sys.Wait()
//	})
//	defer rt.Shutdown(ctx)
package kcore
