// Package skill implements manifest discovery, validation, and the
// registry that the supervisor consults before loading a skill
// instance.
package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsonc "github.com/marcozac/go-jsonc"
	"gopkg.in/yaml.v3"

	"github.com/dohr-michael/ozymandias/internal/capability"
)

// Manifest is the on-disk declaration for a skill, immutable once
// discovered.
type Manifest struct {
	Name                 string   `json:"name" yaml:"name"`
	Version              string   `json:"version" yaml:"version"`
	Description          string   `json:"description" yaml:"description"`
	Provides             []string `json:"provides" yaml:"provides"`
	RequiresCapabilities []string `json:"requires_capabilities" yaml:"requires_capabilities"`
	SandboxSafe          bool     `json:"sandbox_safe" yaml:"sandbox_safe"`
	Runtime              string   `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	Implementation       string   `json:"implementation,omitempty" yaml:"implementation,omitempty"`

	// dir is the skill's directory, set by the loader that discovers it.
	dir string
}

// manifestCandidates is the discovery precedence: skill.yml beats
// skill.yaml beats skill.json.
var manifestCandidates = []string{"skill.yml", "skill.yaml", "skill.json"}

// loadManifest finds and parses whichever candidate file exists first
// in dir, returning the manifest and the path it was read from.
func loadManifest(dir string) (*Manifest, string, error) {
	for _, name := range manifestCandidates {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, path, fmt.Errorf("read %s: %w", path, err)
		}

		var m Manifest
		if strings.HasSuffix(name, ".json") {
			if err := jsonc.Unmarshal(data, &m); err != nil {
				return nil, path, fmt.Errorf("parse %s: %w", path, err)
			}
		} else {
			if err := yaml.Unmarshal(data, &m); err != nil {
				return nil, path, fmt.Errorf("parse %s: %w", path, err)
			}
		}
		m.dir = dir
		return &m, path, nil
	}
	return nil, "", fmt.Errorf("no manifest found in %s (looked for %s)", dir, strings.Join(manifestCandidates, ", "))
}

// Validate checks a manifest against the invariants in the data model:
// non-empty provides, only known capability tags, no network.external,
// and an implementation file present beside the manifest.
func (m *Manifest) Validate() []string {
	var issues []string

	if m.Name == "" {
		issues = append(issues, "name is empty")
	}
	if len(m.Provides) == 0 {
		issues = append(issues, "provides is empty")
	}
	for _, tag := range m.RequiresCapabilities {
		if tag == string(capability.NetworkExternal) {
			issues = append(issues, "requires_capabilities includes network.external, which is forbidden")
			continue
		}
		if !capability.Validate(capability.Tag(tag)) {
			issues = append(issues, fmt.Sprintf("requires_capabilities has unknown tag %q", tag))
		}
	}
	if m.dir != "" {
		impl := m.implementationPath()
		if _, err := os.Stat(impl); err != nil {
			issues = append(issues, fmt.Sprintf("implementation file %q does not exist", impl))
		}
	}

	return issues
}

// implementationPath resolves the implementation module file for a
// manifest: the explicit Implementation field if set, else
// skill.<ext> for a guessed extension (go, wasm).
func (m *Manifest) implementationPath() string {
	if m.Implementation != "" {
		return filepath.Join(m.dir, m.Implementation)
	}
	if m.Runtime == "wasm" {
		return filepath.Join(m.dir, "skill.wasm")
	}
	return filepath.Join(m.dir, "skill.go")
}

// Dir returns the directory the manifest was discovered in.
func (m *Manifest) Dir() string { return m.dir }
