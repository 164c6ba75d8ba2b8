package messaging

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by a non-blocking publish when no buffer space is left.
var ErrQueueFull = errors.New("queue full")

// Vendor represents the name of a messaging vendor
type Vendor string

const (
	// VendorMemory is the in-process channel backed queue
	VendorMemory Vendor = "memory"
)

// Queue represents an abstract message queue for any payload type
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue. Publish must
	// not block: kernel code publishes while holding the process table lock.
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}
