// Package main provides a plugin that plays a system sound for field cues.
// It uses afplay on macOS and paplay on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Request is the cue sent by the plugin executor.
type Request struct {
	Cue       string          `json:"cue"`
	Hand      string          `json:"hand,omitempty"`
	Slot      string          `json:"slot,omitempty"`
	Intensity float64         `json:"intensity"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is written back to the executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the manifest config block.
type Config struct {
	// Sounds maps a cue kind to a sound file. Missing kinds use the
	// platform default.
	Sounds map[string]string `json:"sounds"`
	// MinIntensity drops quieter cues.
	MinIntensity float64 `json:"min_intensity"`
	// DryRun reports the command instead of running it.
	DryRun bool `json:"dry_run"`
}

var defaultSounds = map[string]map[string]string{
	"darwin": {
		"ripple":      "/System/Library/Sounds/Tink.aiff",
		"burst":       "/System/Library/Sounds/Hero.aiff",
		"field_start": "/System/Library/Sounds/Pop.aiff",
	},
	"linux": {
		"ripple":      "/usr/share/sounds/freedesktop/stereo/message.oga",
		"burst":       "/usr/share/sounds/freedesktop/stereo/complete.oga",
		"field_start": "/usr/share/sounds/freedesktop/stereo/bell.oga",
	},
}

var players = map[string]string{
	"darwin": "afplay",
	"linux":  "paplay",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	if req.Intensity < cfg.MinIntensity {
		writeSuccessResponse(map[string]any{"skipped": true})
		return
	}

	player, ok := players[runtime.GOOS]
	if !ok {
		writeErrorResponse(fmt.Sprintf("no sound player on %s", runtime.GOOS))
		return
	}

	sound := cfg.Sounds[req.Cue]
	if sound == "" {
		sound = defaultSounds[runtime.GOOS][req.Cue]
	}
	if sound == "" {
		writeErrorResponse(fmt.Sprintf("no sound for cue %q", req.Cue))
		return
	}

	if cfg.DryRun {
		writeSuccessResponse(map[string]any{"player": player, "sound": sound})
		return
	}

	if err := play(player, sound); err != nil {
		writeErrorResponse(fmt.Sprintf("cue %s failed: %v", req.Cue, err))
		return
	}
	writeSuccessResponse(map[string]any{"sound": sound})
}

func play(player, sound string) error {
	output, err := exec.Command(player, sound).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse(data map[string]any) {
	resp := Response{Success: true}
	if data != nil {
		resp.Data, _ = json.Marshal(data)
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
