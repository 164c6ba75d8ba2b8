// Package scheduler runs one dispatch loop per CPU. Each iteration tries the
// round-robin, LCFS and weighted-rank policies in that order and switches into
// the first candidate found. A clock loop advances the tick counter, wakes
// tick sleepers, ages starved processes and requests preemption.
package scheduler
