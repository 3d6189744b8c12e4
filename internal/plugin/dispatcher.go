package plugin

import (
	"context"
	"log"
	"sync"

	"github.com/ayusman/mudra/internal/effect"
)

// DefaultQueueSize bounds the cues waiting for plugins.
const DefaultQueueSize = 64

// DispatchStats counts dispatcher activity.
type DispatchStats struct {
	Delivered int
	Failed    int
	Dropped   int
}

// Dispatcher is an effect.CueSink that runs subscribed plugins on a
// background goroutine. Cue never blocks; when the queue is full the cue is
// dropped.
type Dispatcher struct {
	manager  *Manager
	executor *Executor

	queue  chan effect.Cue
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	stats  DispatchStats
}

// NewDispatcher starts a dispatcher. queueSize <= 0 uses DefaultQueueSize.
func NewDispatcher(m *Manager, e *Executor, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		manager:  m,
		executor: e,
		queue:    make(chan effect.Cue, queueSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Cue implements effect.CueSink. Cues no plugin subscribes to are ignored
// without touching the queue.
func (d *Dispatcher) Cue(c effect.Cue) {
	if len(d.manager.ForCue(string(c.Kind))) == 0 {
		return
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return
	}
	queued := true
	select {
	case d.queue <- c:
	default:
		queued = false
	}
	d.mu.RUnlock()

	if !queued {
		d.count(func(s *DispatchStats) { s.Dropped++ })
		log.Printf("plugin: queue full, dropping %s cue", c.Kind)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for c := range d.queue {
		d.dispatch(c)
	}
}

func (d *Dispatcher) dispatch(c effect.Cue) {
	for _, p := range d.manager.ForCue(string(c.Kind)) {
		if d.ctx.Err() != nil {
			return
		}

		resp, err := d.executor.Execute(d.ctx, p, newRequest(c, p))
		switch {
		case err != nil:
			log.Printf("plugin: %s failed on %s: %v", p.Manifest.Name, c.Kind, err)
			d.count(func(s *DispatchStats) { s.Failed++ })
		case !resp.Success:
			log.Printf("plugin: %s rejected %s: %s", p.Manifest.Name, c.Kind, resp.Error)
			d.count(func(s *DispatchStats) { s.Failed++ })
		default:
			d.count(func(s *DispatchStats) { s.Delivered++ })
		}
	}
}

func (d *Dispatcher) count(f func(*DispatchStats)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f(&d.stats)
}

func newRequest(c effect.Cue, p *Plugin) *Request {
	req := &Request{
		Cue:       string(c.Kind),
		Hand:      string(c.Hand),
		Position:  Position{X: c.Position.X, Y: c.Position.Y},
		Intensity: c.Intensity,
		Timestamp: c.Timestamp,
		Config:    p.Manifest.Config,
	}
	if c.Kind == effect.CueFieldStart || c.Kind == effect.CueFieldEnd {
		req.Slot = c.Slot.String()
	}
	return req
}

// Stats returns a copy of the counters.
func (d *Dispatcher) Stats() DispatchStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// Close stops accepting cues, lets queued cues finish and waits for the
// worker. Cancel ctx to abandon running plugins instead.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return ctx.Err()
	}
}
