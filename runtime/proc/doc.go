// Package proc defines the process control block and the scheduling
// vocabulary shared by the process table, the scheduler and the
// synchronisation services.
package proc
