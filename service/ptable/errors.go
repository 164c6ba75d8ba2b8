package ptable

import "errors"

var (
	// ErrTableFull is returned when no Unused slot is left.
	ErrTableFull = errors.New("ptable: table full")

	// ErrNotFound is returned when no live process has the requested pid.
	ErrNotFound = errors.New("ptable: process not found")

	// ErrNoChildren is returned by Wait when the caller has no children.
	ErrNoChildren = errors.New("ptable: no children")

	// ErrKilled is returned by blocking calls when the caller has been killed.
	ErrKilled = errors.New("ptable: killed")

	// ErrSameQueue is returned when changing a process to the queue it is already in.
	ErrSameQueue = errors.New("ptable: process already in queue")

	// ErrInvalidQueue is returned for queue ids outside the known disciplines.
	ErrInvalidQueue = errors.New("ptable: invalid queue")

	// ErrInvalidPriority is returned for priorities outside [1,5].
	ErrInvalidPriority = errors.New("ptable: invalid priority")

	// ErrInvalidRatio is returned for negative rank ratios in strict mode.
	ErrInvalidRatio = errors.New("ptable: invalid rank ratio")

	// ErrNoGrandparent is returned by UncleCount when the process has no grandparent.
	ErrNoGrandparent = errors.New("ptable: no grandparent")

	// ErrBooted is returned when the root process already exists.
	ErrBooted = errors.New("ptable: already booted")

	// ErrNoProcess is returned after halting on a call without a calling process.
	ErrNoProcess = errors.New("ptable: no process")
)
