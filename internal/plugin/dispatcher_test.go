package plugin

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/effect"
	"github.com/ayusman/mudra/internal/field"
	"gonum.org/v1/gonum/spatial/r2"
)

var _ effect.CueSink = (*Dispatcher)(nil)

// recordingPlugins installs a plugin that appends each request to a log file
// and returns the manager and the log path.
func recordingPlugins(t *testing.T, cues ...string) (*Manager, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "requests.log")

	pluginDir := writeManifest(t, tmpDir, "recorder", Manifest{
		Name:       "recorder",
		Version:    "1.0.0",
		Executable: "recorder.sh",
		Cues:       cues,
		Config:     json.RawMessage(`{"tag":"test"}`),
	})
	script := "#!/bin/sh\ncat >> " + logPath + "\necho >> " + logPath + "\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "recorder.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	m := NewManager(tmpDir)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	return m, logPath
}

func readRequests(t *testing.T, path string) []Request {
	t.Helper()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer f.Close()

	var out []Request
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			t.Fatalf("bad request line %q: %v", sc.Text(), err)
		}
		out = append(out, req)
	}
	return out
}

func closeDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestDispatcher_DeliversSubscribedCues(t *testing.T) {
	m, logPath := recordingPlugins(t, "ripple", "field_start")
	d := NewDispatcher(m, NewExecutor(5000), 0)

	d.Cue(effect.Cue{Kind: effect.CueRipple, Hand: "Right", Position: r2.Vec{X: 0.2, Y: 0.4}, Intensity: 1, Timestamp: 100})
	d.Cue(effect.Cue{Kind: effect.CueChargeUpdate, Intensity: 0.5})
	d.Cue(effect.Cue{Kind: effect.CueFieldStart, Hand: "Left", Slot: field.SlotRepulsion, Timestamp: 200})
	closeDispatcher(t, d)

	reqs := readRequests(t, logPath)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d: %+v", len(reqs), reqs)
	}

	if reqs[0].Cue != "ripple" || reqs[0].Position != (Position{X: 0.2, Y: 0.4}) || reqs[0].Timestamp != 100 {
		t.Errorf("unexpected ripple request %+v", reqs[0])
	}
	if reqs[0].Slot != "" {
		t.Errorf("ripple should carry no slot, got %q", reqs[0].Slot)
	}
	if string(reqs[0].Config) != `{"tag":"test"}` {
		t.Errorf("manifest config should be forwarded, got %s", reqs[0].Config)
	}
	if reqs[1].Cue != "field_start" || reqs[1].Slot != "repulsion" || reqs[1].Hand != "Left" {
		t.Errorf("unexpected field request %+v", reqs[1])
	}

	st := d.Stats()
	if st.Delivered != 2 || st.Failed != 0 || st.Dropped != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestDispatcher_CountsFailures(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	pluginDir := writeManifest(t, tmpDir, "grumpy", Manifest{Name: "grumpy", Executable: "grumpy.sh", Cues: []string{"*"}})
	script := "#!/bin/sh\necho '{\"success\":false,\"error\":\"no\"}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "grumpy.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	writeManifest(t, tmpDir, "missing", Manifest{Name: "missing", Executable: "does-not-exist", Cues: []string{"burst"}})

	m := NewManager(tmpDir)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	d := NewDispatcher(m, NewExecutor(5000), 4)
	d.Cue(effect.Cue{Kind: effect.CueBurst, Intensity: 1})
	closeDispatcher(t, d)

	if st := d.Stats(); st.Failed != 2 || st.Delivered != 0 {
		t.Errorf("Stats() = %+v, want 2 failures", st)
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	pluginDir := writeManifest(t, tmpDir, "slow", Manifest{Name: "slow", Executable: "slow.sh", Cues: []string{"ripple"}})
	script := "#!/bin/sh\nsleep 1\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "slow.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	m := NewManager(tmpDir)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	d := NewDispatcher(m, NewExecutor(5000), 1)
	start := time.Now()
	for i := 0; i < 10; i++ {
		d.Cue(effect.Cue{Kind: effect.CueRipple})
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Cue blocked for %s", elapsed)
	}

	// Abandon the running plugins.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Close(ctx)

	st := d.Stats()
	if st.Dropped < 8 {
		t.Errorf("Dropped = %d, want at least 8 with a queue of 1", st.Dropped)
	}
}

func TestDispatcher_IgnoresCuesAfterClose(t *testing.T) {
	m, logPath := recordingPlugins(t, "*")
	d := NewDispatcher(m, NewExecutor(5000), 0)
	closeDispatcher(t, d)
	closeDispatcher(t, d)

	d.Cue(effect.Cue{Kind: effect.CueRipple})

	if reqs := readRequests(t, logPath); len(reqs) != 0 {
		t.Errorf("expected no requests after Close, got %d", len(reqs))
	}
}
