package catalog

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Unit is an installable module identified by its code name.
type Unit struct {
	CodeName    string
	DisplayName string
	Source      string

	// Installed is nil when the unit is not present locally.
	Installed *InstalledVersion

	// Updates are kept in catalog order. The catalog publishes them in
	// ascending precedence, so the last element is the latest.
	Updates []UpdateCandidate
}

// InstalledVersion describes a unit already present on this host.
type InstalledVersion struct {
	Version string `json:"version"`
	Path    string `json:"path"`
}

// UpdateCandidate is one installable version of a unit.
type UpdateCandidate struct {
	Version         string `json:"version" yaml:"version"`
	URL             string `json:"url" yaml:"url"`
	SHA256          string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	Size            int64  `json:"size,omitempty" yaml:"size,omitempty"`
	RequiresRestart bool   `json:"requires_restart,omitempty" yaml:"requires_restart,omitempty"`
	HostConstraint  string `json:"host_constraint,omitempty" yaml:"host_constraint,omitempty"`
}

func (c UpdateCandidate) String() string {
	return c.Version
}

// Index is the document served by a catalog source.
type Index struct {
	Units []IndexUnit `json:"units" yaml:"units"`
}

// IndexUnit is a unit entry in an Index.
type IndexUnit struct {
	CodeName    string            `json:"code_name" yaml:"code_name"`
	DisplayName string            `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Updates     []UpdateCandidate `json:"updates" yaml:"updates"`
}

// ParseIndex decodes an index document. YAML is used when the name or the
// content type says so, JSON otherwise.
func ParseIndex(data []byte, name, contentType string) (*Index, error) {
	var index Index

	if isYAML(name, contentType) {
		if err := yaml.Unmarshal(data, &index); err != nil {
			return nil, fmt.Errorf("failed to parse YAML index %s: %w", name, err)
		}
	} else {
		if err := json.Unmarshal(data, &index); err != nil {
			return nil, fmt.Errorf("failed to parse JSON index %s: %w", name, err)
		}
	}

	for i, u := range index.Units {
		if strings.TrimSpace(u.CodeName) == "" {
			return nil, fmt.Errorf("index %s: unit #%d has no code_name", name, i)
		}
	}

	return &index, nil
}

func (idx *Index) toUnits(source string) []Unit {
	units := make([]Unit, 0, len(idx.Units))
	for _, u := range idx.Units {
		units = append(units, Unit{
			CodeName:    u.CodeName,
			DisplayName: u.DisplayName,
			Source:      source,
			Updates:     append([]UpdateCandidate(nil), u.Updates...),
		})
	}
	return units
}

func isYAML(name, contentType string) bool {
	switch strings.ToLower(contentType) {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return true
	}

	name = strings.SplitN(name, "?", 2)[0]
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
