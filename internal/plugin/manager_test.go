package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeManifest creates dir/<sub>/plugin.json.
func writeManifest(t *testing.T, dir, sub string, manifest Manifest) string {
	t.Helper()

	pluginDir := filepath.Join(dir, sub)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), manifestBytes, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()

	pluginDir := writeManifest(t, tmpDir, "test-plugin", Manifest{
		Name:        "test-plugin",
		Version:     "1.0.0",
		Description: "A test plugin",
		Executable:  "test-plugin",
		Cues:        []string{"ripple", "burst"},
		Config:      json.RawMessage(`{"volume":0.5}`),
	})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "test-plugin" {
		t.Errorf("expected plugin name 'test-plugin', got %q", plugin.Manifest.Name)
	}
	if plugin.Manifest.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", plugin.Manifest.Version)
	}
	if plugin.Manifest.Description != "A test plugin" {
		t.Errorf("expected description 'A test plugin', got %q", plugin.Manifest.Description)
	}
	if len(plugin.Manifest.Cues) != 2 {
		t.Errorf("expected 2 cues, got %d", len(plugin.Manifest.Cues))
	}
	if string(plugin.Manifest.Config) != `{"volume":0.5}` {
		t.Errorf("expected config to be kept, got %s", plugin.Manifest.Config)
	}
	if plugin.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, plugin.Path)
	}
	if plugin.Executable != filepath.Join(pluginDir, "test-plugin") {
		t.Errorf("expected executable inside the plugin dir, got %q", plugin.Executable)
	}
}

func TestManager_Discover_MultiplePlugins(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{"plugin-b", "plugin-a"} {
		writeManifest(t, tmpDir, name, Manifest{
			Name:       name,
			Version:    "1.0.0",
			Executable: name,
			Cues:       []string{"ripple"},
		})
	}

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}
	if plugins[0].Manifest.Name != "plugin-a" {
		t.Errorf("expected plugins sorted by name, got %q first", plugins[0].Manifest.Name)
	}
}

func TestManager_Discover_Skips(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("invalid JSON", func(t *testing.T) {
		pluginDir := filepath.Join(tmpDir, "bad-plugin")
		if err := os.MkdirAll(pluginDir, 0755); err != nil {
			t.Fatalf("failed to create plugin dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte("not valid json"), 0644); err != nil {
			t.Fatalf("failed to write manifest: %v", err)
		}
	})

	t.Run("missing executable", func(t *testing.T) {
		writeManifest(t, tmpDir, "no-exec", Manifest{Name: "no-exec", Cues: []string{"ripple"}})
	})

	t.Run("no manifest", func(t *testing.T) {
		if err := os.MkdirAll(filepath.Join(tmpDir, "empty"), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
	})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed unexpectedly: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Discover_EmptyDir(t *testing.T) {
	manager := NewManager(t.TempDir())
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on empty dir: %v", err)
	}

	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager("/path/that/does/not/exist")

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Get(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, "my-plugin", Manifest{
		Name:       "my-plugin",
		Version:    "2.0.0",
		Executable: "my-plugin-bin",
		Cues:       []string{"burst"},
	})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugin, err := manager.Get("my-plugin")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if plugin.Manifest.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %q", plugin.Manifest.Version)
	}

	if _, err := manager.Get("nonexistent-plugin"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_ForCue(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, "sound", Manifest{Name: "sound", Executable: "sound", Cues: []string{"ripple", "burst"}})
	writeManifest(t, tmpDir, "logger", Manifest{Name: "logger", Executable: "logger", Cues: []string{"*"}})
	writeManifest(t, tmpDir, "fields", Manifest{Name: "fields", Executable: "fields", Cues: []string{"field_start"}})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	tests := []struct {
		cue  string
		want []string
	}{
		{cue: "ripple", want: []string{"logger", "sound"}},
		{cue: "field_start", want: []string{"fields", "logger"}},
		{cue: "charge_update", want: []string{"logger"}},
	}
	for _, tt := range tests {
		var got []string
		for _, p := range manager.ForCue(tt.cue) {
			got = append(got, p.Manifest.Name)
		}
		if len(got) != len(tt.want) {
			t.Errorf("ForCue(%q) = %v, want %v", tt.cue, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ForCue(%q) = %v, want %v", tt.cue, got, tt.want)
				break
			}
		}
	}
}

func TestManager_PluginDir(t *testing.T) {
	pluginDir := "/path/to/plugins"
	manager := NewManager(pluginDir)

	if manager.PluginDir() != pluginDir {
		t.Errorf("expected plugin dir %q, got %q", pluginDir, manager.PluginDir())
	}
}
