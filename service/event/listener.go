package event

import (
	"context"
	"errors"
	"log"
)

type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T]) error
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewListener creates a listener; events the handler fails on are nacked and
// redelivered until the queue dead-letters them.
func NewListener[T any](publisher *Publisher[T], handler func(*Event[T]) error) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Stop cancels the listener and waits for the handler loop to return
func (l *Listener[T]) Stop() {
	l.cancel()
	<-l.done
}

func (l *Listener[T]) Start() {
	go func() {
		defer close(l.done)
		for {
			msg, err := l.publisher.Consume(l.ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				log.Printf("error consuming event: %v", err)
				continue
			}
			if msg == nil {
				continue
			}
			if err = l.handler(msg.T()); err != nil {
				log.Printf("error handling event: %v", err)
				if err = msg.Nack(err); err != nil {
					log.Printf("error nacking event: %v", err)
				}
				continue
			}
			if err = msg.Ack(); err != nil {
				log.Printf("error acking event: %v", err)
			}
		}
	}()
}
