package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/store"
)

// TuningKey is the settings key holding tuning overrides.
const TuningKey = "tuning"

// maxSettingsBody caps PUT bodies.
const maxSettingsBody = 1 << 20

// SettingsHandler serves GET and PUT /api/settings. Stored overrides take
// effect the next time the engine is built.
type SettingsHandler struct {
	store *store.Store
	base  *config.TuningConfig
}

// NewSettingsHandler creates a SettingsHandler. base is the configuration the
// stored overrides are merged onto, usually the loaded tuning file.
func NewSettingsHandler(s *store.Store, base *config.TuningConfig) *SettingsHandler {
	if base == nil {
		base = config.DefaultTuningConfig()
	}
	return &SettingsHandler{store: s, base: base}
}

type settingsResponse struct {
	Effective *config.TuningConfig `json:"effective"`
	Overrides *config.TuningConfig `json:"overrides"`
}

// ServeHTTP implements the http.Handler interface.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w)
	case http.MethodPut:
		h.put(w, r)
	case http.MethodDelete:
		h.clear(w)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *SettingsHandler) get(w http.ResponseWriter) {
	overrides, err := LoadTuningOverrides(h.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		Effective: h.base.Merge(overrides),
		Overrides: overrides,
	})
}

func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}
	if len(body) > maxSettingsBody {
		writeError(w, http.StatusRequestEntityTooLarge, "Settings too large")
		return
	}

	overrides, err := config.ParseTuningConfig(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	effective := h.base.Merge(overrides)
	if err := effective.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	canonical, err := json.Marshal(overrides)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode settings")
		return
	}
	if err := h.store.Settings().Set(TuningKey, string(canonical)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{Effective: effective, Overrides: overrides})
}

func (h *SettingsHandler) clear(w http.ResponseWriter) {
	if err := h.store.Settings().Delete(TuningKey); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to clear settings")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LoadTuningOverrides returns the stored tuning overrides, or an empty
// config when none are stored.
func LoadTuningOverrides(s *store.Store) (*config.TuningConfig, error) {
	raw, err := s.Settings().Get(TuningKey)
	if errors.Is(err, store.ErrNotFound) {
		return config.EmptyTuningConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return config.ParseTuningConfig([]byte(raw))
}
