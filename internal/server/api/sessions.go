package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/store"
)

// SessionHandler serves recorded sessions:
//
//	GET    /api/sessions
//	GET    /api/sessions/{id}
//	DELETE /api/sessions/{id}
//	GET    /api/sessions/{id}/events
//	GET    /api/sessions/{id}/frames
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a SessionHandler backed by s.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

type sessionResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Frames    int    `json:"frames"`
	Events    int    `json:"events"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type eventsResponse struct {
	SessionID string                `json:"session_id"`
	Counts    map[string]int        `json:"counts"`
	Events    []store.RecordedEvent `json:"events"`
}

type framesResponse struct {
	SessionID string                `json:"session_id"`
	Frames    []store.RecordedFrame `json:"frames"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		Name:      s.Name,
		Width:     s.Width,
		Height:    s.Height,
		Frames:    s.Frames,
		Events:    s.Events,
		StartedAt: s.StartedAt.Format(time.RFC3339),
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.Format(time.RFC3339)
	}
	return resp
}

// ServeHTTP implements the http.Handler interface.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/sessions")

	switch {
	case len(parts) == 0:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.list(w)

	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, parts[0])
		case http.MethodDelete:
			h.delete(w, parts[0])
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}

	case len(parts) == 2 && (parts[1] == "events" || parts[1] == "frames"):
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if _, err := h.store.Sessions().GetByID(parts[0]); err != nil {
			h.storeError(w, err)
			return
		}
		if parts[1] == "events" {
			h.events(w, r, parts[0])
		} else {
			h.frames(w, parts[0])
		}

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) list(w http.ResponseWriter) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) get(w http.ResponseWriter, id string) {
	s, err := h.store.Sessions().GetByID(id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

func (h *SessionHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// events handles GET /api/sessions/{id}/events?state=started.
func (h *SessionHandler) events(w http.ResponseWriter, r *http.Request, id string) {
	state := r.URL.Query().Get("state")

	counts, err := h.store.Events().CountByType(id, state)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count events")
		return
	}

	events, err := h.store.Events().List(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if state != "" {
		kept := events[:0]
		for _, e := range events {
			if e.State == state {
				kept = append(kept, e)
			}
		}
		events = kept
	}
	if events == nil {
		events = []store.RecordedEvent{}
	}

	writeJSON(w, http.StatusOK, eventsResponse{SessionID: id, Counts: counts, Events: events})
}

func (h *SessionHandler) frames(w http.ResponseWriter, id string) {
	frames, err := h.store.Frames().List(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list frames")
		return
	}
	if frames == nil {
		frames = []store.RecordedFrame{}
	}
	writeJSON(w, http.StatusOK, framesResponse{SessionID: id, Frames: frames})
}

func (h *SessionHandler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to get session")
}
