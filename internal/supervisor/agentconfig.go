package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marcozac/go-jsonc"
	"gopkg.in/yaml.v3"

	"github.com/dohr-michael/ozymandias/internal/capability"
	"github.com/dohr-michael/ozymandias/internal/config"
)

// AgentConfig is an immutable, fully-resolved agent definition: its
// capability set has already absorbed any presets, and any unknown
// tags have been split out as warnings rather than silently granted.
type AgentConfig struct {
	Name                  string
	Description           string
	Capabilities          capability.Set
	CapabilityWarnings    []string
	Skills                []string
	MemoryLimitBytes      int64
	MaxTaskTimeoutSeconds int
	// AllowedPathGlobs is an additional allow-list of doublestar glob
	// patterns a path may match to be treated as in-sandbox, on top of
	// the sandbox root itself (sandbox.Sandbox.Contains' extraAllowedGlobs).
	AllowedPathGlobs []string
}

type rawAgentConfig struct {
	Name                  string   `yaml:"name" json:"name"`
	Description           string   `yaml:"description" json:"description"`
	Capabilities          []string `yaml:"capabilities" json:"capabilities"`
	Skills                []string `yaml:"skills" json:"skills"`
	MemoryBackend         string   `yaml:"memory_backend" json:"memory_backend"`
	SandboxPath           string   `yaml:"sandbox_path" json:"sandbox_path"`
	MemoryLimitBytes      int64    `yaml:"memory_limit_bytes" json:"memory_limit_bytes"`
	MaxTaskTimeoutSeconds int      `yaml:"max_task_timeout_seconds" json:"max_task_timeout_seconds"`
	AllowedPaths          []string `yaml:"allowed_paths" json:"allowed_paths"`
}

// resolve expands presets and partitions capability strings into a
// granted set plus warnings for anything outside the closed vocabulary
// and not a known preset. Per §3, unknown tags are never treated as
// granting permission.
func (r rawAgentConfig) resolve() AgentConfig {
	cfg := AgentConfig{
		Name:                  r.Name,
		Description:           r.Description,
		Skills:                r.Skills,
		MemoryLimitBytes:      r.MemoryLimitBytes,
		MaxTaskTimeoutSeconds: r.MaxTaskTimeoutSeconds,
		AllowedPathGlobs:      r.AllowedPaths,
	}
	if cfg.Name == "" {
		cfg.Name = "unnamed"
	}
	if cfg.MemoryLimitBytes <= 0 {
		cfg.MemoryLimitBytes = config.DefaultMemoryLimitBytes
	}
	if cfg.MaxTaskTimeoutSeconds <= 0 {
		cfg.MaxTaskTimeoutSeconds = config.DefaultTaskTimeoutSeconds
	}

	granted := capability.Set{}
	for _, raw := range r.Capabilities {
		if capability.IsPreset(raw) {
			for _, t := range capability.ExpandPreset(raw) {
				granted[t] = struct{}{}
			}
			continue
		}
		tag := capability.Tag(raw)
		if !capability.Validate(tag) {
			cfg.CapabilityWarnings = append(cfg.CapabilityWarnings, fmt.Sprintf("unknown capability %q", raw))
			continue
		}
		granted[tag] = struct{}{}
	}
	cfg.Capabilities = granted
	return cfg
}

// loadAgentFile parses one agent definition file, trying YAML then
// JSONC by extension, matching the daemon's own per-extension dispatch.
func loadAgentFile(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw rawAgentConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := jsonc.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse jsonc: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported agent config extension %q", ext)
	}

	cfg := raw.resolve()
	return &cfg, nil
}

// LoadAgents scans dir (typically config.ModelsDir()) for
// *.yml|*.yaml|*.json agent definitions. A malformed file is skipped
// with a logged warning; the supervisor never aborts because one
// agent config is bad.
func LoadAgents(dir string) map[string]*AgentConfig {
	agents := make(map[string]*AgentConfig)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("agent load: cannot read models dir", "dir", dir, "error", err)
		}
		return agents
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yml" && ext != ".yaml" && ext != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		cfg, err := loadAgentFile(path)
		if err != nil {
			slog.Warn("agent load: skipping malformed agent config", "path", path, "error", err)
			continue
		}
		agents[cfg.Name] = cfg
	}
	return agents
}

// sortedAgentNames returns agent names in lexical order for stable
// list_agents output.
func sortedAgentNames(agents map[string]*AgentConfig) []string {
	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
