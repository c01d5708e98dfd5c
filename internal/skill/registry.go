package skill

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dohr-michael/ozymandias/internal/capability"
)

// Discovered wraps a manifest with its validation outcome. A skill is
// valid iff Issues is empty; invalid skills are retained for diagnostics
// but cannot be loaded.
type Discovered struct {
	Manifest *Manifest
	Path     string
	Issues   []string
}

// Valid reports whether the discovered skill meets every invariant.
func (d *Discovered) Valid() bool { return len(d.Issues) == 0 }

// Registry holds every skill discovered under a skills root, partitioned
// into valid and invalid.
type Registry struct {
	root    string
	skills  map[string]*Discovered
}

// NewRegistry builds an empty registry rooted at root (typically
// config.SkillsDir()).
func NewRegistry(root string) *Registry {
	return &Registry{root: root, skills: make(map[string]*Discovered)}
}

// Discover scans the skills root's immediate child directories,
// skipping any whose name starts with "." or "_", and (re)populates the
// registry. Repeated calls against an unchanged tree produce an
// equivalent report; there is no caching to invalidate.
func (r *Registry) Discover() error {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			r.skills = make(map[string]*Discovered)
			return nil
		}
		return err
	}

	fresh := make(map[string]*Discovered, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}

		dir := filepath.Join(r.root, name)
		manifest, path, err := loadManifest(dir)
		if err != nil {
			slog.Warn("skill discovery: skipping directory with no valid manifest", "dir", dir, "error", err)
			continue
		}

		var issues []string
		if manifest.Name != name {
			issues = append(issues, "manifest name does not match directory name")
		}
		issues = append(issues, manifest.Validate()...)

		fresh[name] = &Discovered{Manifest: manifest, Path: path, Issues: issues}
	}

	r.skills = fresh
	return nil
}

// Get returns the discovered entry for name, if any.
func (r *Registry) Get(name string) (*Discovered, bool) {
	d, ok := r.skills[name]
	return d, ok
}

// ListValid returns the names of every valid skill, sorted.
func (r *Registry) ListValid() []string {
	var names []string
	for name, d := range r.skills {
		if d.Valid() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ListInvalid returns the names of every invalid skill, sorted.
func (r *Registry) ListInvalid() []string {
	var names []string
	for name, d := range r.skills {
		if !d.Valid() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// FindByCapability returns the names of every valid skill that requires
// tag, sorted.
func (r *Registry) FindByCapability(tag capability.Tag) []string {
	var names []string
	for name, d := range r.skills {
		if !d.Valid() {
			continue
		}
		for _, req := range d.Manifest.RequiresCapabilities {
			if req == string(tag) {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

// FindByFunction returns the names of every valid skill whose manifest
// provides fn, sorted.
func (r *Registry) FindByFunction(fn string) []string {
	var names []string
	for name, d := range r.skills {
		if !d.Valid() {
			continue
		}
		for _, p := range d.Manifest.Provides {
			if p == fn {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

// ValidationReport is the result of checking an agent's declared skills
// against this registry.
type ValidationReport struct {
	ValidSubset []string
	Issues      []string
}

// ValidateAgentSkills checks every skill in agentSkills against the
// registry and the agent's granted capabilities, returning the subset
// that can actually be loaded plus a list of issue strings for the rest.
func (r *Registry) ValidateAgentSkills(agentSkills []string, agentCapabilities capability.Set) ValidationReport {
	var report ValidationReport
	for _, name := range agentSkills {
		d, ok := r.Get(name)
		if !ok {
			report.Issues = append(report.Issues, "skill "+name+" is not registered (skill_missing)")
			continue
		}
		if !d.Valid() {
			report.Issues = append(report.Issues, "skill "+name+" is registered but invalid: "+strings.Join(d.Issues, "; "))
			continue
		}
		var required []capability.Tag
		for _, tag := range d.Manifest.RequiresCapabilities {
			required = append(required, capability.Tag(tag))
		}
		missing := capability.Difference(required, agentCapabilities)
		if len(missing) > 0 {
			report.Issues = append(report.Issues, "skill "+name+" requires capabilities the agent lacks: "+tagsString(missing))
			continue
		}
		report.ValidSubset = append(report.ValidSubset, name)
	}
	return report
}

func tagsString(tags []capability.Tag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
