package idgen

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// New returns a new globally unique identifier as string. It is implemented
// as a thin wrapper so tests can stub it.

var NewFunc = func() string { return uuid.New().String() }

func New() string { return NewFunc() }

// Sequence hands out strictly increasing integers. Values are never reused
// for the lifetime of the sequence.
type Sequence struct {
	last atomic.Int64
}

// NewSequence returns a sequence whose first Next call yields first.
func NewSequence(first int) *Sequence {
	s := &Sequence{}
	s.last.Store(int64(first) - 1)
	return s
}

// Next returns the next value.
func (s *Sequence) Next() int {
	return int(s.last.Add(1))
}

// Peek returns the value the next call to Next will yield.
func (s *Sequence) Peek() int {
	return int(s.last.Load()) + 1
}
