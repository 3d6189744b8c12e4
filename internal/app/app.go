// Package app hosts the engine: it pulls landmark frames from a source,
// ticks the engine, publishes the results and optionally records them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/effect"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/field"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/timeutil"
)

// DefaultTickRate is the headless loop rate in ticks per second.
const DefaultTickRate = 60

// ErrClosed is returned by Tick and Run after Close.
var ErrClosed = errors.New("app closed")

// ErrNoStore is returned when recording is requested without a store.
var ErrNoStore = errors.New("no store configured")

// Config holds configuration options for the application.
type Config struct {
	Engine   engine.Config
	Width    int
	Height   int
	TickRate int
	// Store enables recording and replay. It may be nil.
	Store *store.Store
	Clock timeutil.Clock
}

type size struct{ w, h int }

// App owns the engine and its frame source. Tick and Run are the only
// callers of the engine; every other method only queues requests that the
// next tick applies.
type App struct {
	config    Config
	engine    *engine.Engine
	source    FrameSource
	publisher *Publisher
	clock     timeutil.Clock

	tickMu sync.Mutex
	lastTs int64

	mu       sync.RWMutex
	enabled  bool
	reset    bool
	resize   *size
	recorder *Recorder
	closed   bool
}

// New creates an App that reads frames from source.
func New(config Config, source FrameSource) (*App, error) {
	if config.TickRate <= 0 {
		config.TickRate = DefaultTickRate
	}
	if config.Clock == nil {
		config.Clock = timeutil.RealClock{}
	}

	eng, err := engine.New(config.Engine, config.Width, config.Height)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	if err := eng.Start(); err != nil {
		return nil, err
	}

	return &App{
		config:    config,
		engine:    eng,
		source:    source,
		publisher: NewPublisher(),
		clock:     config.Clock,
		enabled:   true,
	}, nil
}

// Interval returns the time between headless ticks.
func (a *App) Interval() time.Duration {
	return time.Second / time.Duration(a.config.TickRate)
}

// Publisher returns the result publisher.
func (a *App) Publisher() *Publisher {
	return a.publisher
}

// Store returns the configured store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// AddCueSink registers a cue sink on the engine. It waits for any tick in
// progress.
func (a *App) AddCueSink(sink effect.CueSink) {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()
	a.engine.AddCueSink(sink)
}

// SetEnabled pauses or resumes ticking.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether ticks are processed.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// RequestReset asks the next tick to return the field to rest.
func (a *App) RequestReset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset = true
}

// RequestResize asks the next tick to rebuild the lattice. Later requests
// replace earlier ones.
func (a *App) RequestResize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resize = &size{width, height}
}

// StartRecording begins a new session in the store.
func (a *App) StartRecording(name string) (store.Session, error) {
	if a.config.Store == nil {
		return store.Session{}, ErrNoStore
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return store.Session{}, ErrClosed
	}
	if a.recorder != nil {
		return a.recorder.Session(), nil
	}

	snap := a.publisher.Latest()
	w, h := a.config.Width, a.config.Height
	if snap != nil {
		w, h = snap.Snapshot.Width, snap.Snapshot.Height
	}

	rec, err := StartRecorder(a.config.Store, name, w, h, a.clock)
	if err != nil {
		return store.Session{}, err
	}
	a.recorder = rec
	return rec.Session(), nil
}

// StopRecording ends the current session, if any.
func (a *App) StopRecording() error {
	a.mu.Lock()
	rec := a.recorder
	a.recorder = nil
	a.mu.Unlock()

	if rec == nil {
		return nil
	}

	// A tick may still hold rec; wait for it before closing the queue.
	a.tickMu.Lock()
	defer a.tickMu.Unlock()
	return rec.Close()
}

// Recording returns the session being recorded.
func (a *App) Recording() (store.Session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.recorder == nil {
		return store.Session{}, false
	}
	return a.recorder.Session(), true
}

// Tick applies pending requests, reads one frame and runs one engine tick.
// It returns a nil result while the app is paused and io.EOF once the
// source is exhausted.
func (a *App) Tick() (*engine.TickResult, error) {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	enabled := a.enabled
	reset := a.reset
	resize := a.resize
	rec := a.recorder
	a.reset = false
	a.resize = nil
	a.mu.Unlock()

	if resize != nil {
		if err := a.engine.Resize(resize.w, resize.h); err != nil {
			return nil, fmt.Errorf("resize to %dx%d: %w", resize.w, resize.h, err)
		}
	}
	if reset {
		if err := a.engine.Reset(); err != nil {
			return nil, fmt.Errorf("reset: %w", err)
		}
	}

	if !enabled {
		return nil, nil
	}

	frame, err := a.source.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		// A failed read counts as a frame without hands so that engaged
		// gestures end instead of sticking.
		log.Printf("Error reading frame: %v", err)
		frame = gesture.Frame{TimestampMs: a.lastTs + a.Interval().Milliseconds()}
	}
	a.lastTs = frame.TimestampMs

	res, err := a.engine.Tick(frame)
	if err != nil {
		return nil, err
	}

	if rec != nil {
		rec.Record(frame, res.Events)
	}
	a.publisher.Publish(res)
	return res, nil
}

// Run ticks at the configured rate until ctx is cancelled or the source is
// exhausted.
func (a *App) Run(ctx context.Context) error {
	ticker := a.clock.NewTicker(a.Interval())
	defer ticker.Stop()

	log.Printf("Tick loop started at %d Hz", a.config.TickRate)
	for {
		select {
		case <-ctx.Done():
			log.Println("Tick loop stopped")
			return nil
		case <-ticker.C():
			if _, err := a.Tick(); err != nil {
				if errors.Is(err, io.EOF) {
					log.Println("Frame source exhausted")
					return nil
				}
				return err
			}
		}
	}
}

// Snapshot returns the current field state without ticking.
func (a *App) Snapshot() (field.Snapshot, error) {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()
	return a.engine.Snapshot()
}

// Stats returns simulator statistics.
func (a *App) Stats() (field.Stats, error) {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()
	return a.engine.Stats()
}

// Close stops recording, disposes the engine and closes the source and the
// publisher. It is safe to call more than once.
func (a *App) Close() error {
	recErr := a.StopRecording()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.tickMu.Lock()
	defer a.tickMu.Unlock()

	a.engine.Dispose()
	a.publisher.Close()

	var errs []error
	if recErr != nil {
		errs = append(errs, recErr)
	}
	if err := a.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	log.Println("App closed")
	return errors.Join(errs...)
}
