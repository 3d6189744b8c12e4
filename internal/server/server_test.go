package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/field"
	"github.com/ayusman/mudra/internal/store"
)

// fakeHost records what the server asked of it.
type fakeHost struct {
	mu        sync.Mutex
	publisher *app.Publisher
	enabled   bool
	resets    int
	session   *store.Session
	startErr  error
	snapErr   error
}

func newFakeHost() *fakeHost {
	return &fakeHost{publisher: app.NewPublisher(), enabled: true}
}

func (h *fakeHost) Publisher() *app.Publisher { return h.publisher }

func (h *fakeHost) Snapshot() (field.Snapshot, error) {
	if h.snapErr != nil {
		return field.Snapshot{}, h.snapErr
	}
	return field.Snapshot{Width: 64, Height: 48, Cols: 1, Rows: 1, Count: 1,
		Positions: []float32{32, 24}, Intensities: []float32{0}}, nil
}

func (h *fakeHost) RequestReset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resets++
}

func (h *fakeHost) SetEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = enabled
}

func (h *fakeHost) IsEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled
}

func (h *fakeHost) StartRecording(name string) (store.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.startErr != nil {
		return store.Session{}, h.startErr
	}
	if h.session == nil {
		h.session = &store.Session{ID: "rec-1", Name: name}
	}
	return *h.session, nil
}

func (h *fakeHost) StopRecording() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session = nil
	return nil
}

func (h *fakeHost) Recording() (store.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return store.Session{}, false
	}
	return *h.session, true
}

func do(s http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/health", "")

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}

		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
		if _, exists := response["enabled"]; exists {
			t.Error("'enabled' should only be reported with a host")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			rec := do(s, method, "/api/health", "")
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})

	t.Run("reports host state", func(t *testing.T) {
		host := newFakeHost()
		host.session = &store.Session{ID: "abc"}
		rec := do(New(Config{Host: host}), http.MethodGet, "/api/health", "")

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["enabled"] != true || response["recording"] != true {
			t.Errorf("unexpected health %v", response)
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	for _, target := range []string{"/api/nonexistent", "/api/snapshot", "/api/sessions", "/api/debug/field"} {
		rec := do(s, http.MethodGet, target, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", target, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_Snapshot(t *testing.T) {
	host := newFakeHost()
	s := New(Config{Host: host})

	rec := do(s, http.MethodGet, "/api/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var snap struct {
		Width int `json:"width"`
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snap.Width != 64 || snap.Count != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	host.snapErr = errors.New("engine disposed")
	rec = do(s, http.MethodGet, "/api/snapshot", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestServer_Reset(t *testing.T) {
	host := newFakeHost()
	s := New(Config{Host: host})

	if rec := do(s, http.MethodGet, "/api/reset", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
	if rec := do(s, http.MethodPost, "/api/reset", ""); rec.Code != http.StatusAccepted {
		t.Errorf("POST: expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
	if host.resets != 1 {
		t.Errorf("expected 1 reset request, got %d", host.resets)
	}
}

func TestServer_Enabled(t *testing.T) {
	host := newFakeHost()
	s := New(Config{Host: host})

	rec := do(s, http.MethodPost, "/api/enabled", `{"enabled": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if host.IsEnabled() {
		t.Error("host should be paused")
	}

	rec = do(s, http.MethodGet, "/api/enabled", "")
	var resp map[string]bool
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["enabled"] {
		t.Errorf("GET reported %v", resp)
	}

	for _, body := range []string{`{}`, `nope`} {
		if rec := do(s, http.MethodPost, "/api/enabled", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", body, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestServer_Recording(t *testing.T) {
	host := newFakeHost()
	s := New(Config{Host: host})

	rec := do(s, http.MethodGet, "/api/recording", "")
	var resp recordingResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Recording || resp.Session != nil {
		t.Fatalf("should not be recording: %+v", resp)
	}

	rec = do(s, http.MethodPost, "/api/recording", `{"name": "warmup"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST: expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	resp = recordingResponse{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Recording || resp.Session == nil || resp.Session.Name != "warmup" {
		t.Errorf("unexpected response %+v", resp)
	}

	rec = do(s, http.MethodDelete, "/api/recording", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE: expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if _, ok := host.Recording(); ok {
		t.Error("recording should have stopped")
	}

	t.Run("default name", func(t *testing.T) {
		rec := do(s, http.MethodPost, "/api/recording", "")
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
		}
		sess, _ := host.Recording()
		if sess.Name == "" {
			t.Error("session should get a generated name")
		}
		host.StopRecording()
	})

	t.Run("no store", func(t *testing.T) {
		host.startErr = app.ErrNoStore
		rec := do(s, http.MethodPost, "/api/recording", "")
		if rec.Code != http.StatusConflict {
			t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
		}
	})
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>Hello, World!</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/", "")

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/style.css", "")

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != cssContent {
			t.Errorf("expected body %q, got %q", cssContent, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/nonexistent.html", "")

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("creates server with config", func(t *testing.T) {
		cfg := Config{StaticDir: "/some/path"}
		s := New(cfg)

		if s == nil {
			t.Fatal("expected non-nil server")
		}
		if s.config.StaticDir != cfg.StaticDir {
			t.Errorf("expected StaticDir %s, got %s", cfg.StaticDir, s.config.StaticDir)
		}
	})

	t.Run("server implements http.Handler", func(t *testing.T) {
		s := New(Config{})
		var _ http.Handler = s
	})

	t.Run("app satisfies Host", func(t *testing.T) {
		var _ Host = (*app.App)(nil)
	})
}
