// Package fs is a built-in skill exposing sandbox-scoped filesystem
// operations: listing, reading, and writing files inside the calling
// agent's sandbox (the work region by default).
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dohr-michael/ozymandias/internal/capability"
	"github.com/dohr-michael/ozymandias/internal/ozerrors"
	"github.com/dohr-michael/ozymandias/internal/sandbox"
	"github.com/dohr-michael/ozymandias/internal/skill"
)

func init() {
	skill.Register("fs", build)
}

func build(manifest *skill.Manifest) (skill.Instance, error) {
	return skill.NewStaticInstance(manifest, map[string]skill.Function{
		"list_dir":   listDir,
		"read_file":  readFile,
		"write_file": writeFile,
		"self_test":  selfTest,
	}), nil
}

func resolvePath(env *skill.Env, args map[string]any) (string, error) {
	raw, _ := args["path"].(string)
	if raw == "" {
		raw = env.Sandbox.PathIn(sandbox.Work, "")
	}
	ok, err := env.Sandbox.Contains(raw, env.AllowedPathGlobs)
	if err != nil || !ok {
		return "", ozerrors.New(ozerrors.SandboxViolation, env.AgentName,
			fmt.Sprintf("path %q is outside the agent's sandbox", raw))
	}
	return raw, nil
}

func listDir(_ context.Context, env *skill.Env, args map[string]any) (any, error) {
	path, err := resolvePath(env, args)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list_dir %q: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return map[string]any{"path": path, "count": len(names), "entries": names}, nil
}

func readFile(_ context.Context, env *skill.Env, args map[string]any) (any, error) {
	path, err := resolvePath(env, args)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read_file %q: %w", path, err)
	}
	return map[string]any{"path": path, "content": string(data), "size": len(data)}, nil
}

// writeFile is the only destructive function this skill provides; the
// manifest's requires_capabilities only covers filesystem.read (shared
// by list_dir/read_file too), so a write additionally needs
// filesystem.write on the calling agent, checked here rather than at
// the skill level so read-only agents can still use the rest of fs.
func writeFile(_ context.Context, env *skill.Env, args map[string]any) (any, error) {
	if !env.Capabilities.Has(capability.FilesystemWrite) {
		return nil, ozerrors.New(ozerrors.CapabilityDenied, env.AgentName,
			"write_file requires filesystem.write").WithRequired(string(capability.FilesystemWrite))
	}

	path, err := resolvePath(env, args)
	if err != nil {
		return nil, err
	}
	content, _ := args["content"].(string)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("write_file mkdir %q: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write_file %q: %w", path, err)
	}
	return map[string]any{"path": path, "bytes_written": len(content)}, nil
}

func selfTest(_ context.Context, env *skill.Env, _ map[string]any) (any, error) {
	return map[string]any{"skill": "fs", "agent": env.AgentName, "ok": true}, nil
}
