// Package testdata embeds scripted landmark sequences used by tests and the
// demo mode of the command.
package testdata

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

//go:embed sequences/*.json
var sequencesFS embed.FS

// Sequence returns the raw JSON script with the given name, without the
// .json extension.
func Sequence(name string) ([]byte, error) {
	data, err := sequencesFS.ReadFile(path.Join("sequences", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", name, err)
	}
	return data, nil
}

// Sequences lists the names of all embedded sequences in sorted order.
func Sequences() []string {
	entries, err := sequencesFS.ReadDir("sequences")
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}
