// Package config resolves the supervisor's filesystem layout and loads
// its root configuration file. Paths follow the teacher's env-var-
// override-else-home-default idiom; the layout itself is the one
// external interfaces names: models/, skills/, sandboxes/, memory/,
// logs/, swarm/ under one root.
package config

import (
	"os"
	"path/filepath"
)

// Root returns the agents root directory. AGENTS_ROOT overrides it
// outright; otherwise it is PREFIX/share/ozymandias if PREFIX is set,
// else $HOME/.ozymandias.
func Root() string {
	if v := os.Getenv("AGENTS_ROOT"); v != "" {
		return v
	}
	if prefix := os.Getenv("PREFIX"); prefix != "" {
		return filepath.Join(prefix, "share", "ozymandias")
	}
	home := os.Getenv("HOME")
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	if home == "" {
		return filepath.Join(".", ".ozymandias")
	}
	return filepath.Join(home, ".ozymandias")
}

// ConfigPath returns the path to the root config file.
func ConfigPath() string {
	return filepath.Join(Root(), "config.jsonc")
}

// ModelsDir returns the directory scanned for agent configuration files.
func ModelsDir() string { return filepath.Join(Root(), "models") }

// SkillsDir returns the directory scanned for skill manifests.
func SkillsDir() string { return filepath.Join(Root(), "skills") }

// SandboxesRoot returns the root directory under which each agent gets
// its own sandbox subtree.
func SandboxesRoot() string { return filepath.Join(Root(), "sandboxes") }

// MemoryDir returns the directory holding per-agent memory documents.
func MemoryDir() string { return filepath.Join(Root(), "memory") }

// LogsDir returns the directory holding per-agent structured logs.
func LogsDir() string { return filepath.Join(Root(), "logs") }

// SwarmDir returns the directory holding the swarm signal board.
func SwarmDir() string { return filepath.Join(Root(), "swarm") }

// TmpDir returns the process-wide temp directory, honoring TMPDIR.
func TmpDir() string {
	if v := os.Getenv("TMPDIR"); v != "" {
		return v
	}
	return os.TempDir()
}
