package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/timeutil"
)

// Recorder defaults.
const (
	// RecordQueueSize is how many ticks may wait for the writer before
	// new ones are dropped.
	RecordQueueSize = 256
	// RecordBatchSize is how many frames are written per transaction.
	RecordBatchSize = 60
	// RecordFlushInterval bounds how long a partial batch waits.
	RecordFlushInterval = time.Second
)

type recordItem struct {
	frame  gesture.Frame
	events []gesture.Event
}

// Recorder appends frames and events to a store session from a background
// goroutine. Record never blocks.
type Recorder struct {
	store   *store.Store
	session store.Session
	clock   timeutil.Clock

	items   chan recordItem
	done    chan struct{}
	dropped atomic.Int64

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error

	frameSeq int64
	eventSeq int64
}

// StartRecorder creates a session and starts its writer.
func StartRecorder(s *store.Store, name string, width, height int, clock timeutil.Clock) (*Recorder, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	session := &store.Session{
		Name:      name,
		Width:     width,
		Height:    height,
		StartedAt: clock.Now(),
	}
	if err := s.Sessions().Create(session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	r := &Recorder{
		store:   s,
		session: *session,
		clock:   clock,
		items:   make(chan recordItem, RecordQueueSize),
		done:    make(chan struct{}),
	}
	go r.run()

	log.Printf("Recording session %s", session.ID)
	return r, nil
}

// Session returns the session being written.
func (r *Recorder) Session() store.Session {
	return r.session
}

// Dropped returns how many ticks were discarded because the writer fell
// behind.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Record queues one tick. It must not be called after Close.
func (r *Recorder) Record(frame gesture.Frame, events []gesture.Event) {
	select {
	case r.items <- recordItem{frame: frame, events: events}:
	default:
		if r.dropped.Add(1) == 1 {
			log.Printf("Recorder for %s is falling behind, dropping frames", r.session.ID)
		}
	}
}

// Close flushes queued ticks, stamps the session's end time and returns the
// first write error, if any.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.items)
		<-r.done
		if err := r.store.Sessions().Finish(r.session.ID, r.clock.Now()); err != nil {
			r.fail(fmt.Errorf("finish session: %w", err))
		}
		log.Printf("Recording %s stopped (%d dropped)", r.session.ID, r.Dropped())
	})

	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

func (r *Recorder) run() {
	defer close(r.done)

	ticker := r.clock.NewTicker(RecordFlushInterval)
	defer ticker.Stop()

	frames := make([]store.RecordedFrame, 0, RecordBatchSize)
	var events []store.RecordedEvent

	flush := func() {
		if err := r.store.Frames().AppendBatch(r.session.ID, frames); err != nil {
			r.fail(fmt.Errorf("write frames: %w", err))
		}
		if err := r.store.Events().AppendBatch(r.session.ID, events); err != nil {
			r.fail(fmt.Errorf("write events: %w", err))
		}
		frames = frames[:0]
		events = events[:0]
	}

	for {
		select {
		case item, ok := <-r.items:
			if !ok {
				flush()
				return
			}
			f, evs, err := r.encode(item)
			if err != nil {
				r.fail(err)
				continue
			}
			frames = append(frames, f)
			events = append(events, evs...)
			if len(frames) >= RecordBatchSize {
				flush()
			}
		case <-ticker.C():
			flush()
		}
	}
}

func (r *Recorder) encode(item recordItem) (store.RecordedFrame, []store.RecordedEvent, error) {
	hands, err := json.Marshal(item.frame.Hands)
	if err != nil {
		return store.RecordedFrame{}, nil, fmt.Errorf("encode hands: %w", err)
	}

	r.frameSeq++
	f := store.RecordedFrame{
		Seq:         r.frameSeq,
		TimestampMs: item.frame.TimestampMs,
		Hands:       hands,
	}

	evs := make([]store.RecordedEvent, 0, len(item.events))
	for _, e := range item.events {
		data, err := json.Marshal(e.Data)
		if err != nil {
			return store.RecordedFrame{}, nil, fmt.Errorf("encode event data: %w", err)
		}
		r.eventSeq++
		evs = append(evs, store.RecordedEvent{
			Seq:         r.eventSeq,
			TimestampMs: e.Timestamp,
			Type:        string(e.Type),
			State:       string(e.State),
			Hand:        string(e.Hand),
			Data:        data,
		})
	}
	return f, evs, nil
}

func (r *Recorder) fail(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	log.Printf("Recorder %s: %v", r.session.ID, err)
	r.err = errors.Join(r.err, err)
}
