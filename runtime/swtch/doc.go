// Package swtch provides the context switch primitive used by the scheduler:
// suspend the current context, resume a target one.
package swtch
