// Package plugin runs external executables in response to effect cues.
// Plugins live in their own directory with a plugin.json manifest and
// exchange one JSON request and response over stdin and stdout.
package plugin

import "encoding/json"

// Manifest describes a plugin and the cues it wants.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Cues        []string `json:"cues"`
	// Config is passed through unchanged on every request.
	Config json.RawMessage `json:"config,omitempty"`
}

// Handles reports whether the manifest subscribes to the cue kind. "*"
// subscribes to everything.
func (m Manifest) Handles(kind string) bool {
	for _, c := range m.Cues {
		if c == kind || c == "*" {
			return true
		}
	}
	return false
}

// Position is a normalized point in 0..1.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Request is written to the plugin's stdin.
type Request struct {
	Cue       string          `json:"cue"`
	Hand      string          `json:"hand,omitempty"`
	Slot      string          `json:"slot,omitempty"`
	Position  Position        `json:"position"`
	Intensity float64         `json:"intensity"`
	Timestamp int64           `json:"timestamp"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
