// Package tray provides a system tray menu for running the field headless.
package tray

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
	"github.com/getlantern/systray"
)

// Host is the part of the app the tray controls.
type Host interface {
	Publisher() *app.Publisher
	SetEnabled(enabled bool)
	IsEnabled() bool
	RequestReset()
	StartRecording(name string) (store.Session, error)
	StopRecording() error
	Recording() (store.Session, bool)
}

// Tray represents the system tray application.
type Tray struct {
	host       Host
	onSettings func()
	onQuit     func()
	mu         sync.RWMutex

	last string

	// Menu items stored for later updates
	menuToggle      *systray.MenuItem
	menuRecord      *systray.MenuItem
	menuLastGesture *systray.MenuItem
}

// New creates a tray bound to host.
func New(host Host) *Tray {
	return &Tray{host: host}
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra gesture field")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.host.IsEnabled()), "Pause or resume the field")
	menuReset := systray.AddMenuItem("Reset field", "Clear forces and ripples")
	systray.AddSeparator()

	_, recording := t.host.Recording()
	t.menuRecord = systray.AddMenuItem(recordTitle(recording), "Record frames and gestures")
	systray.AddSeparator()

	t.menuLastGesture = systray.AddMenuItem(lastTitle(t.last), "Last gesture transition")
	t.menuLastGesture.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go t.watch()

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuReset.ClickedCh:
				t.host.RequestReset()
			case <-t.menuRecord.ClickedCh:
				t.handleRecord()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	if _, ok := t.host.Recording(); ok {
		if err := t.host.StopRecording(); err != nil {
			log.Printf("tray: stopping recording: %v", err)
		}
	}
}

// watch follows gesture transitions until the publisher closes.
func (t *Tray) watch() {
	ticks, cancel := t.host.Publisher().Subscribe(4)
	defer cancel()

	for r := range ticks {
		for _, e := range r.Events {
			if e.State != gesture.StateActive {
				t.SetLastGesture(describe(e))
			}
		}
	}
}

func (t *Tray) handleToggle() {
	enabled := !t.host.IsEnabled()
	t.host.SetEnabled(enabled)

	t.mu.RLock()
	defer t.mu.RUnlock()
	setTitle(t.menuToggle, toggleTitle(enabled))
}

func (t *Tray) handleRecord() {
	recording := false
	if _, ok := t.host.Recording(); ok {
		if err := t.host.StopRecording(); err != nil {
			log.Printf("tray: stop recording: %v", err)
		}
	} else {
		s, err := t.host.StartRecording("tray " + time.Now().Format("2006-01-02 15:04:05"))
		if err != nil {
			log.Printf("tray: start recording: %v", err)
		} else {
			log.Printf("tray: recording session %s", s.ID)
			recording = true
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	setTitle(t.menuRecord, recordTitle(recording))
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastGesture updates the last gesture display in the menu.
func (t *Tray) SetLastGesture(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = name
	setTitle(t.menuLastGesture, lastTitle(name))
}

// LastGesture returns the text shown in the last gesture item.
func (t *Tray) LastGesture() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func setTitle(item *systray.MenuItem, title string) {
	if item != nil {
		item.SetTitle(title)
	}
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Paused"
}

func recordTitle(recording bool) string {
	if recording {
		return "■ Stop recording"
	}
	return "● Start recording"
}

func lastTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}

func describe(e gesture.Event) string {
	return fmt.Sprintf("%s %s (%s)", e.Type, e.State, e.Hand)
}
