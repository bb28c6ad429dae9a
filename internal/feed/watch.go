package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Handle is a running subscription returned by Watch.
type Handle struct {
	id     uuid.UUID
	topic  Topic
	broker *Broker

	mu        sync.Mutex
	cancelled bool

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (h *Handle) ID() uuid.UUID {
	return h.id
}

func (h *Handle) Topic() Topic {
	return h.topic
}

// Cancel detaches the subscription. When Cancel returns, any delivery that was running
// has finished and the handler will not be called again. Writes already issued by the
// caller are not affected. Cancel is idempotent.
//
// A handler must not cancel its own handle: delivery holds the handle lock.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		h.mu.Lock()
		h.cancelled = true
		h.mu.Unlock()

		close(h.stop)
		h.broker.unsubscribe(h.topic, h.id)
	})
}

// Done is closed once the watch goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Active reports whether the handle still delivers updates.
func (h *Handle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.cancelled
}

// run calls fn unless the handle has been cancelled.
func (h *Handle) run(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancelled {
		return
	}
	fn()
}

// Watch loads the current result of a query, delivers it, and redelivers a fresh
// result every time topic is published. The initial load runs before Watch returns so
// that an unreachable store is reported to the caller; later load failures go to onErr
// (if set) and the feed keeps running. Deliveries for one handle never overlap and
// follow publication order.
func Watch[T any](
	ctx context.Context,
	broker *Broker,
	topic Topic,
	load func(context.Context) (T, error),
	deliver func(T),
	onErr func(error),
) (*Handle, error) {
	id, signal := broker.subscribe(topic)

	h := &Handle{
		id:     id,
		topic:  topic,
		broker: broker,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	initial, err := load(ctx)
	if err != nil {
		broker.unsubscribe(topic, id)
		close(h.done)
		return nil, fmt.Errorf("initial snapshot of %s: %w", topic, err)
	}

	go func() {
		defer close(h.done)

		h.run(func() { deliver(initial) })

		for {
			select {
			case <-h.stop:
				return
			case <-ctx.Done():
				h.mu.Lock()
				h.cancelled = true
				h.mu.Unlock()
				broker.unsubscribe(topic, id)
				return
			case <-signal:
				snapshot, err := load(ctx)
				if err != nil {
					if onErr != nil {
						h.run(func() { onErr(err) })
					}
					continue
				}
				h.run(func() { deliver(snapshot) })
			}
		}
	}()

	return h, nil
}
