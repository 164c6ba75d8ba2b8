package kcore

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/viant/kcore/runtime/proc"
)

var errClosed = errors.New("file already closed")

// console serialises writes from every CPU
type console struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsole(w io.Writer) *console {
	return &console{w: w}
}

func (c *console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Write(p)
}

// consoleFile is the reference counted descriptor the root process starts with on 0, 1 and 2
type consoleFile struct {
	*console
	refs *atomic.Int64
}

func newConsoleFile(c *console) *consoleFile {
	return &consoleFile{console: c, refs: &atomic.Int64{}}
}

func (f *consoleFile) Dup() proc.File {
	f.refs.Add(1)
	return f
}

func (f *consoleFile) Close() error {
	if f.refs.Add(-1) < 0 {
		f.refs.Add(1)
		return errClosed
	}
	return nil
}

// Refs returns number of open descriptors
func (f *consoleFile) Refs() int64 {
	return f.refs.Load()
}

// rootDir is the working directory inherited by every process
type rootDir struct {
	refs *atomic.Int64
}

func (d *rootDir) Dup() proc.Dir {
	d.refs.Add(1)
	return d
}

func (d *rootDir) Release() {
	d.refs.Add(-1)
}
