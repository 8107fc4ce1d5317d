// Package stream provides a bounded, non-blocking publisher for per-step
// simulation frames. The step loop writes exactly one frame per completed
// step; consumers read from their own buffered channels and can never block
// the loop. A slow consumer loses old frames, not new ones.
package stream

import "sync"

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Publisher fans frames out to subscribers. Safe for one producer and any
// number of subscribers.
type Publisher[T any] struct {
	mu        sync.RWMutex
	subs      map[int]chan T
	nextID    int
	buffer    int
	latest    T
	hasLatest bool
	closed    bool
}

// NewPublisher creates a publisher with the given per-subscriber buffer.
// A non-positive buffer selects DefaultBuffer.
func NewPublisher[T any](buffer int) *Publisher[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Publisher[T]{
		subs:   make(map[int]chan T),
		buffer: buffer,
	}
}

// Publish delivers v to every subscriber without blocking. When a
// subscriber's buffer is full its oldest frame is dropped to make room, so
// consumers always converge on recent state.
func (p *Publisher[T]) Publish(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.latest = v
	p.hasLatest = true
	for _, ch := range p.subs {
		for {
			select {
			case ch <- v:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribe registers a consumer and returns its channel plus a cancel
// function. The channel is closed on cancel or when the publisher closes.
func (p *Publisher[T]) Subscribe() (<-chan T, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan T, p.buffer)
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
	}
}

// Latest returns the most recently published frame, letting a late-joining
// consumer render immediately instead of waiting for the next step.
func (p *Publisher[T]) Latest() (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.hasLatest
}

// SubscriberCount returns the number of active subscribers.
func (p *Publisher[T]) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (p *Publisher[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}
