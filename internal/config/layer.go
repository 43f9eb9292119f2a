package config

import (
	"sort"

	"github.com/dshills/bined/internal/config/loader"
)

// Layer priorities. Higher overrides lower.
const (
	PriorityDefaults = 0
	PriorityFile     = 10
	PriorityDotEnv   = 20
	PriorityEnv      = 30
	PriorityOverride = 40
)

// Layer is one configuration source.
type Layer struct {
	// Name identifies the layer (e.g., "defaults", "file", "env").
	Name string

	// Priority determines merge order (higher overrides lower).
	Priority int

	// Path is the file the layer was read from, if any.
	Path string

	// Data holds the configuration values as a nested map.
	Data map[string]any
}

// layerStack keeps layers sorted by priority.
type layerStack []*Layer

func (s layerStack) sorted() layerStack {
	out := append(layerStack(nil), s...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// merge combines all layers, lowest priority first.
func (s layerStack) merge() map[string]any {
	result := make(map[string]any)
	for _, l := range s.sorted() {
		result = loader.DeepMerge(result, loader.Clone(l.Data))
	}
	return result
}

// which returns the name of the highest priority layer that sets path.
func (s layerStack) which(path string) string {
	sorted := s.sorted()
	for i := len(sorted) - 1; i >= 0; i-- {
		if _, ok := loader.GetByPath(sorted[i].Data, path); ok {
			return sorted[i].Name
		}
	}
	return ""
}
