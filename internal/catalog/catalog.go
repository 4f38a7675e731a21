// Package catalog holds the fixed list of appliance types users pick from.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/awaistahir/wattplan/internal/engine"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Entry is one appliance type with its typical rating and usage window
type Entry struct {
	Name  string  `yaml:"name" json:"name"`
	Watt  float64 `yaml:"watt" json:"watt"`
	Start string  `yaml:"start" json:"default_start_time"`
	End   string  `yaml:"end" json:"default_end_time"`
}

// DefaultHours returns the usage breakdown of the entry's default window
func (e Entry) DefaultHours() engine.UsageBreakdown {
	return engine.Breakdown(e.Start, e.End)
}

type file struct {
	Appliances []Entry `yaml:"appliances"`
}

var (
	loadOnce sync.Once
	entries  []Entry
	byName   map[string]Entry
	loadErr  error
)

// Parse decodes and validates a catalog document
func Parse(data []byte) ([]Entry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	seen := make(map[string]bool, len(f.Appliances))
	for _, e := range f.Appliances {
		key := strings.ToLower(e.Name)
		switch {
		case e.Name == "":
			return nil, fmt.Errorf("catalog entry without a name")
		case seen[key]:
			return nil, fmt.Errorf("duplicate catalog entry %q", e.Name)
		case e.Watt <= 0:
			return nil, fmt.Errorf("catalog entry %q: watt must be positive", e.Name)
		case !engine.ValidClock(e.Start) || !engine.ValidClock(e.End):
			return nil, fmt.Errorf("catalog entry %q: invalid window %s-%s", e.Name, e.Start, e.End)
		}
		seen[key] = true
	}
	return f.Appliances, nil
}

func load() {
	entries, loadErr = Parse(catalogYAML)
	if loadErr != nil {
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	byName = make(map[string]Entry, len(entries))
	for _, e := range entries {
		byName[strings.ToLower(e.Name)] = e
	}
}

// List returns all catalog entries sorted by name
func List() []Entry {
	loadOnce.Do(load)
	if loadErr != nil {
		panic(loadErr)
	}
	return append([]Entry(nil), entries...)
}

// Lookup finds an entry by case-insensitive name
func Lookup(name string) (Entry, bool) {
	loadOnce.Do(load)
	if loadErr != nil {
		panic(loadErr)
	}
	e, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}
