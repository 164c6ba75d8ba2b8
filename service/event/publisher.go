package event

import (
	"context"

	"github.com/viant/kcore/internal/clock"
	"github.com/viant/kcore/service/messaging"
)

type Publisher[T any] struct {
	queue messaging.Queue[Event[T]]
}

func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{
		queue: queue,
	}
}

// Publish enqueues event without blocking
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	event.CreatedAt = clock.Now()
	return p.queue.Publish(ctx, event)
}

// Consume returns the next event message; the caller acks or nacks it.
func (p *Publisher[T]) Consume(ctx context.Context) (messaging.Message[Event[T]], error) {
	return p.queue.Consume(ctx)
}

// DeadLetters returns the number of events given up after failed deliveries
func (p *Publisher[T]) DeadLetters() int {
	if q, ok := p.queue.(interface{ DLQSize() int }); ok {
		return q.DLQSize()
	}
	return 0
}
