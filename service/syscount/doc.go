// Package syscount keeps per-CPU and total system call counters.
// Counters are updated from every CPU concurrently and can be printed or
// reset by a running process.
package syscount
