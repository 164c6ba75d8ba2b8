package swtch

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

var (
	// ErrStopped is returned when the switcher is shut down before the target
	// context was resumed; the caller keeps whatever it holds.
	ErrStopped = errors.New("switcher stopped")
	// ErrAbandoned is returned when the target was resumed but the switcher
	// was shut down before control came back; ownership passed to the target.
	ErrAbandoned = fmt.Errorf("%w: context abandoned", ErrStopped)
)

// Context is a suspended flow of control. A context created with an entry
// function runs it on its own goroutine the first time it is switched to;
// a context without entry represents an already running goroutine (a CPU
// scheduler loop).
type Context struct {
	resume chan struct{}
	entry  func()
	once   sync.Once
}

// NewContext creates a context that starts at entry.
func NewContext(entry func()) *Context {
	return &Context{resume: make(chan struct{}), entry: entry}
}

// Switcher suspends the current context and resumes the target one.
type Switcher interface {
	// Switch resumes to and parks from until something switches back to it.
	Switch(from, to *Context) error
	// Exit resumes to and terminates the calling goroutine. It only returns,
	// with ErrStopped, when to could not be resumed.
	Exit(from, to *Context) error
}

// Channel implements Switcher with one goroutine per context and an
// unbuffered channel handoff, so exactly one of the pair runs at a time.
type Channel struct {
	done chan struct{}
	stop sync.Once
}

// NewChannel creates a channel based switcher
func NewChannel() *Channel {
	return &Channel{done: make(chan struct{})}
}

// Switch implements Switcher
func (c *Channel) Switch(from, to *Context) error {
	if err := c.resume(to); err != nil {
		return err
	}
	select {
	case <-from.resume:
		return nil
	case <-c.done:
		return ErrAbandoned
	}
}

// Exit implements Switcher
func (c *Channel) Exit(from, to *Context) error {
	if err := c.resume(to); err != nil {
		return err
	}
	runtime.Goexit()
	return nil
}

// Stop releases every parked context; parked process goroutines terminate.
func (c *Channel) Stop() {
	c.stop.Do(func() { close(c.done) })
}

func (c *Channel) resume(to *Context) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	if to.entry != nil {
		to.once.Do(func() {
			go func() {
				select {
				case <-to.resume:
				case <-c.done:
					return
				}
				to.entry()
			}()
		})
	}
	select {
	case to.resume <- struct{}{}:
		return nil
	case <-c.done:
		return ErrStopped
	}
}
