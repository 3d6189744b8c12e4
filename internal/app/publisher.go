package app

import (
	"sync"

	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/gesture"
)

// Publisher keeps the latest tick result and fans results out to
// subscribers. Results are shared between subscribers and must be treated as
// read-only.
type Publisher struct {
	mu         sync.RWMutex
	latest     *engine.TickResult
	transition *gesture.Event
	subs       map[int]chan *engine.TickResult
	nextID     int
	dropped    uint64
	closed     bool
}

// NewPublisher returns an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[int]chan *engine.TickResult)}
}

// Publish records r as the latest result and offers it to every subscriber.
// Subscribers that are not keeping up miss results instead of stalling the
// tick.
func (p *Publisher) Publish(r *engine.TickResult) {
	if r == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.latest = r
	for i := len(r.Events) - 1; i >= 0; i-- {
		if r.Events[i].State != gesture.StateActive {
			ev := r.Events[i]
			p.transition = &ev
			break
		}
	}

	for _, ch := range p.subs {
		select {
		case ch <- r:
		default:
			p.dropped++
		}
	}
}

// Latest returns the most recent result, or nil before the first tick.
func (p *Publisher) Latest() *engine.TickResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// LastTransition returns the most recent non-active gesture event.
func (p *Publisher) LastTransition() (gesture.Event, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.transition == nil {
		return gesture.Event{}, false
	}
	return *p.transition, true
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (p *Publisher) Dropped() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dropped
}

// Subscribe returns a channel of results and a function that unsubscribes.
// The channel is closed on unsubscribe or when the publisher closes.
func (p *Publisher) Subscribe(buffer int) (<-chan *engine.TickResult, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *engine.TickResult, buffer)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		close(ch)
		return ch, func() {}
	}

	id := p.nextID
	p.nextID++
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if c, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of active subscribers.
func (p *Publisher) Subscribers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Close closes every subscriber channel. Later publishes are ignored.
func (p *Publisher) Close() {
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
