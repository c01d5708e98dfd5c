package skill

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dohr-michael/ozymandias/internal/capability"
)

func skillSetOf(tags ...string) capability.Set {
	s := make(capability.Set, len(tags))
	for _, t := range tags {
		s[capability.Tag(t)] = struct{}{}
	}
	return s
}

func writeSkillDir(t *testing.T, root, name, manifestFile, manifestBody string, withImpl bool) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), []byte(manifestBody), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if withImpl {
		if err := os.WriteFile(filepath.Join(dir, "skill.go"), []byte("package impl\n"), 0o644); err != nil {
			t.Fatalf("write impl: %v", err)
		}
	}
}

func TestDiscoverValidSkill(t *testing.T) {
	root := t.TempDir()
	writeSkillDir(t, root, "demo", "skill.yml", `
name: demo
version: "1.0.0"
provides:
  - self_test
requires_capabilities:
  - filesystem.read
`, true)

	r := NewRegistry(root)
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(r.ListValid()) != 1 || r.ListValid()[0] != "demo" {
		t.Errorf("expected demo to be valid, got valid=%v invalid=%v", r.ListValid(), r.ListInvalid())
	}
}

func TestDiscoverInvalidSkillMissingImplementation(t *testing.T) {
	root := t.TempDir()
	writeSkillDir(t, root, "broken", "skill.json", `{
		"name": "broken",
		"provides": ["self_test"],
		"requires_capabilities": []
	}`, false)

	r := NewRegistry(root)
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(r.ListInvalid()) != 1 || r.ListInvalid()[0] != "broken" {
		t.Errorf("expected broken to be invalid, got valid=%v invalid=%v", r.ListValid(), r.ListInvalid())
	}
	d, _ := r.Get("broken")
	if len(d.Issues) == 0 {
		t.Error("expected at least one issue recorded for broken skill")
	}
}

func TestDiscoverRejectsNetworkExternal(t *testing.T) {
	root := t.TempDir()
	writeSkillDir(t, root, "net", "skill.yml", `
name: net
provides:
  - fetch
requires_capabilities:
  - network.external
`, true)

	r := NewRegistry(root)
	_ = r.Discover()
	d, _ := r.Get("net")
	if d.Valid() {
		t.Error("expected network.external to invalidate the skill")
	}
}

func TestDiscoverSkipsDotAndUnderscoreDirs(t *testing.T) {
	root := t.TempDir()
	writeSkillDir(t, root, ".hidden", "skill.yml", "name: hidden\nprovides: [x]\n", true)
	writeSkillDir(t, root, "_private", "skill.yml", "name: private\nprovides: [x]\n", true)

	r := NewRegistry(root)
	_ = r.Discover()
	if len(r.skills) != 0 {
		t.Errorf("expected dot/underscore dirs skipped, got %v", r.skills)
	}
}

func TestManifestPrecedenceYMLBeatsJSON(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "dual")
	_ = os.MkdirAll(dir, 0o755)
	_ = os.WriteFile(filepath.Join(dir, "skill.yml"), []byte("name: dual\nprovides: [a]\n"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "skill.json"), []byte(`{"name":"dual","provides":["b"]}`), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "skill.go"), []byte("package impl\n"), 0o644)

	m, path, err := loadManifest(dir)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if filepath.Base(path) != "skill.yml" {
		t.Errorf("expected skill.yml to win, loaded %s", path)
	}
	if len(m.Provides) != 1 || m.Provides[0] != "a" {
		t.Errorf("expected yml content to win, got %v", m.Provides)
	}
}

func TestDiscoverIdempotent(t *testing.T) {
	root := t.TempDir()
	writeSkillDir(t, root, "demo", "skill.yml", "name: demo\nprovides: [self_test]\n", true)

	r := NewRegistry(root)
	_ = r.Discover()
	first := r.ListValid()
	_ = r.Discover()
	second := r.ListValid()
	if len(first) != len(second) || first[0] != second[0] {
		t.Errorf("expected idempotent discover, got %v then %v", first, second)
	}
}

func TestValidateAgentSkillsPartitionsValidAndMissing(t *testing.T) {
	root := t.TempDir()
	writeSkillDir(t, root, "fs", "skill.yml", "name: fs\nprovides: [list_dir]\nrequires_capabilities: [filesystem.read]\n", true)

	r := NewRegistry(root)
	_ = r.Discover()

	report := r.ValidateAgentSkills([]string{"fs", "ghost"}, skillSetOf("filesystem.read"))
	if len(report.ValidSubset) != 1 || report.ValidSubset[0] != "fs" {
		t.Errorf("expected fs to validate, got %v (issues=%v)", report.ValidSubset, report.Issues)
	}
	if len(report.Issues) != 1 {
		t.Errorf("expected one issue for missing skill, got %v", report.Issues)
	}
}
