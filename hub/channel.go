package hub

import (
	"context"
	"sync"
)

// mailbox is the FIFO feeding the routing loop. Sends never block, so code
// running on the loop can post into it without waiting on itself. The
// buffer size only sets the initial capacity.
type mailbox[T any] struct {
	mutex   sync.Mutex
	items   []T
	wake    chan struct{}
	context context.Context
}

func newMailbox[T any](ctx context.Context, bufferSize int) *mailbox[T] {
	return &mailbox[T]{
		items:   make([]T, 0, max(bufferSize, 0)),
		wake:    make(chan struct{}, 1),
		context: ctx,
	}
}

func (mb *mailbox[T]) send(ctx context.Context, item T) error {
	if err := mb.context.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mb.mutex.Lock()
	mb.items = append(mb.items, item)
	mb.mutex.Unlock()

	select {
	case mb.wake <- struct{}{}:
	default:
	}
	return nil
}

func (mb *mailbox[T]) receive(ctx context.Context) (T, error) {
	for {
		mb.mutex.Lock()
		if len(mb.items) > 0 {
			item := mb.items[0]
			var zero T
			mb.items[0] = zero
			mb.items = mb.items[1:]
			if len(mb.items) == 0 {
				mb.items = mb.items[:0:0]
			}
			mb.mutex.Unlock()
			return item, nil
		}
		mb.mutex.Unlock()

		select {
		case <-mb.wake:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-mb.context.Done():
			var zero T
			return zero, mb.context.Err()
		}
	}
}

func (mb *mailbox[T]) length() int {
	mb.mutex.Lock()
	defer mb.mutex.Unlock()

	return len(mb.items)
}
