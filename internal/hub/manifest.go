package hub

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is a declarative startup document: the set of resources a
// fresh Hub should contain before it starts serving requests. Nothing
// else in this module can make the tree non-empty outside of tests,
// so this is the only way an operator populates one (generalizing the
// teacher's catalog-manifest YAML loading idiom to the resource tree).
type Manifest struct {
	Resources []ManifestResource `yaml:"resources"`
}

type ManifestResource struct {
	Path     string                `yaml:"path"`
	Kind     string                `yaml:"kind"` // "input" | "output" | "observation"
	DataType string                `yaml:"data_type"`
	Units    string                `yaml:"units"`
	Source   string                `yaml:"source"`
	Admin    *ManifestAdminSettings `yaml:"admin"`
}

// ManifestAdminSettings configures Observation-only settings. Applying
// one to a non-Observation resource is a manifest error, not silently
// skipped, so a typo surfaces at load time instead of at first push.
type ManifestAdminSettings struct {
	MinPeriod      *float64 `yaml:"min_period"`
	HighLimit      *float64 `yaml:"high_limit"`
	LowLimit       *float64 `yaml:"low_limit"`
	ChangeBy       *float64 `yaml:"change_by"`
	Transform      string   `yaml:"transform"`
	BufferMax      *int     `yaml:"buffer_max"`
	BackupPeriod   *float64 `yaml:"backup_period"`
	JSONExtraction string   `yaml:"json_extraction"`
	Destination    string   `yaml:"destination"`
}

// LoadManifest reads and parses a manifest file. An empty path is not
// an error; it yields an empty manifest so callers can treat
// cfg.ManifestPath uniformly.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return &Manifest{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest YAML: %w", err)
	}
	return &m, nil
}

// Apply creates every resource the manifest describes against h, then
// wires sources, then applies admin settings — in that order, so a
// SetSource or admin-setting entry can always reference a path that
// was created earlier in the same manifest regardless of declaration
// order within a single resource entry.
func (m *Manifest) Apply(h *Hub) error {
	for _, r := range m.Resources {
		if err := m.createOne(h, r); err != nil {
			return fmt.Errorf("manifest: create %q: %w", r.Path, err)
		}
	}
	for _, r := range m.Resources {
		if r.Source == "" {
			continue
		}
		if err := h.SetSource(r.Path, r.Source); err != nil {
			return fmt.Errorf("manifest: set source for %q: %w", r.Path, err)
		}
	}
	for _, r := range m.Resources {
		if r.Admin == nil {
			continue
		}
		if err := m.applyAdmin(h, r.Path, r.Admin); err != nil {
			return fmt.Errorf("manifest: admin settings for %q: %w", r.Path, err)
		}
	}
	return nil
}

func (m *Manifest) createOne(h *Hub, r ManifestResource) error {
	switch r.Kind {
	case "input", "output":
		dt, err := parseDataType(r.DataType)
		if err != nil {
			return err
		}
		if r.Kind == "input" {
			_, err = h.CreateInput(r.Path, dt, r.Units)
		} else {
			_, err = h.CreateOutput(r.Path, dt, r.Units)
		}
		return err
	case "observation":
		_, err := h.GetObservation(r.Path)
		return err
	default:
		return fmt.Errorf("unknown resource kind %q", r.Kind)
	}
}

func (m *Manifest) applyAdmin(h *Hub, path string, a *ManifestAdminSettings) error {
	obs := h.Observation()
	if a.MinPeriod != nil {
		if err := obs.SetMinPeriod(path, *a.MinPeriod); err != nil {
			return err
		}
	}
	if a.HighLimit != nil {
		if err := obs.SetHighLimit(path, *a.HighLimit); err != nil {
			return err
		}
	}
	if a.LowLimit != nil {
		if err := obs.SetLowLimit(path, *a.LowLimit); err != nil {
			return err
		}
	}
	if a.ChangeBy != nil {
		if err := obs.SetChangeBy(path, *a.ChangeBy); err != nil {
			return err
		}
	}
	if a.Transform != "" {
		if err := obs.SetTransform(path, a.Transform); err != nil {
			return err
		}
	}
	if a.BufferMax != nil {
		if err := obs.SetBufferMax(path, *a.BufferMax); err != nil {
			return err
		}
	}
	if a.BackupPeriod != nil {
		if err := obs.SetBackupPeriod(path, *a.BackupPeriod); err != nil {
			return err
		}
	}
	if a.JSONExtraction != "" {
		if err := obs.SetJSONExtraction(path, a.JSONExtraction); err != nil {
			return err
		}
	}
	if a.Destination != "" {
		if err := obs.SetDestination(path, a.Destination); err != nil {
			return err
		}
	}
	return nil
}
