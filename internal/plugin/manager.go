package plugin

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrPluginNotFound is returned when a requested plugin cannot be found.
var ErrPluginNotFound = errors.New("plugin not found")

// Manager manages plugin discovery and access.
type Manager struct {
	pluginDir string
	plugins   map[string]*Plugin
	// byCue lists subscribers per cue kind, sorted by name. Wildcard
	// subscribers are under "*".
	byCue map[string][]*Plugin
	mu    sync.RWMutex
}

// NewManager creates a new plugin Manager with the given plugin directory.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
		byCue:     make(map[string][]*Plugin),
	}
}

// Discover scans the plugin directory for plugin.json files and loads them.
// Each subdirectory in the plugin directory is expected to be a plugin with a plugin.json manifest.
// Unreadable or incomplete manifests are skipped with a log line.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.plugins = make(map[string]*Plugin)
	m.byCue = make(map[string][]*Plugin)
	defer m.index()

	info, err := os.Stat(m.pluginDir)
	if os.IsNotExist(err) {
		return nil // No plugins directory, nothing to discover
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(m.pluginDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginPath := filepath.Join(m.pluginDir, entry.Name())
		manifestPath := filepath.Join(pluginPath, "plugin.json")

		manifestData, err := os.ReadFile(manifestPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			log.Printf("plugin: skipping %s: %v", entry.Name(), err)
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(manifestData, &manifest); err != nil {
			log.Printf("plugin: skipping %s: invalid manifest: %v", entry.Name(), err)
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			log.Printf("plugin: skipping %s: manifest needs a name and an executable", entry.Name())
			continue
		}

		m.plugins[manifest.Name] = &Plugin{
			Manifest:   manifest,
			Path:       pluginPath,
			Executable: filepath.Join(pluginPath, manifest.Executable),
		}
	}

	return nil
}

// index rebuilds byCue. Callers hold mu.
func (m *Manager) index() {
	for _, p := range m.plugins {
		seen := make(map[string]bool, len(p.Manifest.Cues))
		for _, c := range p.Manifest.Cues {
			if !seen[c] {
				seen[c] = true
				m.byCue[c] = append(m.byCue[c], p)
			}
		}
	}
	for _, ps := range m.byCue {
		sortByName(ps)
	}
}

func sortByName(ps []*Plugin) {
	sort.Slice(ps, func(i, j int) bool {
		return ps[i].Manifest.Name < ps[j].Manifest.Name
	})
}

// Get returns a plugin by name.
// Returns ErrPluginNotFound if the plugin does not exist.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugin, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}

	return plugin, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, plugin := range m.plugins {
		plugins = append(plugins, plugin)
	}
	sortByName(plugins)
	return plugins
}

// ForCue returns the plugins subscribed to kind, sorted by name.
func (m *Manager) ForCue(kind string) []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	direct, wild := m.byCue[kind], m.byCue["*"]
	if len(wild) == 0 || kind == "*" {
		return append([]*Plugin(nil), direct...)
	}

	out := make([]*Plugin, 0, len(direct)+len(wild))
	seen := make(map[*Plugin]bool, len(direct))
	for _, p := range direct {
		seen[p] = true
		out = append(out, p)
	}
	for _, p := range wild {
		if !seen[p] {
			out = append(out, p)
		}
	}
	sortByName(out)
	return out
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
