// Package server provides the HTTP surface of the field: health, control
// endpoints, the live tick stream and the session/settings APIs.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/field"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// Host is the running engine as seen by the server. *app.App implements it.
type Host interface {
	Publisher() *app.Publisher
	Snapshot() (field.Snapshot, error)
	RequestReset()
	SetEnabled(enabled bool)
	IsEnabled() bool
	StartRecording(name string) (store.Session, error)
	StopRecording() error
	Recording() (store.Session, bool)
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Host      Host
	// Tuning is the base the stored settings overrides are merged onto.
	Tuning *config.TuningConfig
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Host != nil {
		s.mux.HandleFunc("/api/snapshot", s.handleSnapshot)
		s.mux.HandleFunc("/api/reset", s.handleReset)
		s.mux.HandleFunc("/api/enabled", s.handleEnabled)
		s.mux.HandleFunc("/api/recording", s.handleRecording)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Host.Publisher()))
	}

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
		s.mux.Handle("/api/settings", api.NewSettingsHandler(s.config.Store, s.config.Tuning))
	}

	if s.config.Host != nil || s.config.Store != nil {
		var snapshot api.SnapshotFunc
		if s.config.Host != nil {
			snapshot = s.config.Host.Snapshot
		}
		s.mux.Handle("/api/debug/", api.NewChartHandler(snapshot, s.config.Store))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Host != nil {
		_, recording := s.config.Host.Recording()
		response["enabled"] = s.config.Host.IsEnabled()
		response["recording"] = recording
		response["subscribers"] = s.config.Host.Publisher().Subscribers()
	}

	writeJSON(w, http.StatusOK, response)
}

// handleSnapshot handles GET /api/snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := s.config.Host.Snapshot()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleReset handles POST /api/reset. The reset is applied on the next tick.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.config.Host.RequestReset()
	w.WriteHeader(http.StatusAccepted)
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleEnabled handles GET and POST /api/enabled.
func (s *Server) handleEnabled(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req enabledRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": `body must be {"enabled": bool}`})
			return
		}
		s.config.Host.SetEnabled(*req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.config.Host.IsEnabled()})
}

type recordingRequest struct {
	Name string `json:"name"`
}

type recordingResponse struct {
	Recording bool           `json:"recording"`
	Session   *store.Session `json:"session,omitempty"`
}

// handleRecording handles GET, POST and DELETE /api/recording.
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeRecording(w, http.StatusOK)

	case http.MethodPost:
		var req recordingRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
				return
			}
		}
		if req.Name == "" {
			req.Name = "session " + time.Now().Format("2006-01-02 15:04:05")
		}
		if _, err := s.config.Host.StartRecording(req.Name); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, app.ErrNoStore) || errors.Is(err, app.ErrClosed) {
				status = http.StatusConflict
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		s.writeRecording(w, http.StatusCreated)

	case http.MethodDelete:
		sess, ok := s.config.Host.Recording()
		if err := s.config.Host.StopRecording(); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		resp := recordingResponse{}
		if ok {
			resp.Session = &sess
		}
		writeJSON(w, http.StatusOK, resp)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeRecording(w http.ResponseWriter, status int) {
	sess, ok := s.config.Host.Recording()
	resp := recordingResponse{Recording: ok}
	if ok {
		resp.Session = &sess
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
