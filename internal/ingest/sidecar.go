package ingest

import (
	"errors"
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// SidecarSuffix is appended to a document's file name to find its sidecar.
const SidecarSuffix = ".meta.yaml"

// Sidecar is per-file ingestion metadata.
type Sidecar struct {
	ExpiryDays *int           `yaml:"expiry_days"`
	Metadata   map[string]any `yaml:"metadata"`
}

// LoadSidecar reads the sidecar of path. A missing sidecar yields nil.
func LoadSidecar(path string) (*Sidecar, error) {
	raw, err := os.ReadFile(path + SidecarSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sidecar: %w", err)
	}
	var sc Sidecar
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parsing sidecar %s: %w", path+SidecarSuffix, err)
	}
	if sc.ExpiryDays != nil && *sc.ExpiryDays < 0 {
		return nil, fmt.Errorf("sidecar %s: expiry_days must not be negative", path+SidecarSuffix)
	}
	return &sc, nil
}

// merge layers the sidecar over batch-wide defaults into a new map. Sidecar
// keys win. sc may be nil.
func (sc *Sidecar) merge(expiry *int, meta map[string]any) (*int, map[string]any) {
	out := maps.Clone(meta)
	if out == nil {
		out = make(map[string]any)
	}
	if sc == nil {
		return expiry, out
	}
	maps.Copy(out, sc.Metadata)
	if sc.ExpiryDays != nil {
		expiry = sc.ExpiryDays
	}
	return expiry, out
}
