package skill

import (
	"context"
	"fmt"

	"github.com/dohr-michael/ozymandias/internal/capability"
	"github.com/dohr-michael/ozymandias/internal/memory"
	"github.com/dohr-michael/ozymandias/internal/sandbox"
)

// Env is the set of per-task collaborators a skill function is wired to
// when invoked: its agent's sandbox, memory store, granted capability
// set, and a handle back to run subprocess calls through the gated
// executor. Run is typed as an interface (Runner) to avoid an import
// cycle with internal/executor; the supervisor supplies the concrete
// *executor.Executor. A skill's manifest-level requires_capabilities
// only gates whether the skill can be called at all; a function that
// does something more dangerous than the rest of its own skill (e.g.
// a write function living alongside read-only ones) must check
// Capabilities itself before acting.
type Env struct {
	AgentName        string
	Sandbox          *sandbox.Sandbox
	Memory           *memory.Store
	Capabilities     capability.Set
	AllowedPathGlobs []string
	Run              Runner
}

// Runner is the subset of the gated executor's surface a skill function
// needs: run a classified subprocess call under the agent's capability
// set.
type Runner interface {
	Run(ctx context.Context, argv []string, opts RunOptions) (*RunResult, error)
}

// RunOptions mirrors the gated executor's per-call options, duplicated
// here (rather than imported) to keep this package free of a dependency
// on internal/executor.
type RunOptions struct {
	WorkDir string
	Env     map[string]string
	Timeout int // seconds; 0 means use the executor's default
	Check   bool
}

// RunResult mirrors the gated executor's per-call result.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Function is the signature every skill-provided function must
// implement: args in, opaque result out, errors surfaced as Go errors
// (including ozerrors.Record values for the taxonomy the task engine
// understands).
type Function func(ctx context.Context, env *Env, args map[string]any) (any, error)

// Instance is a loaded, ready-to-invoke skill: a name, its manifest, and
// a dispatch table from function name to implementation.
type Instance interface {
	Name() string
	Manifest() *Manifest
	Functions() map[string]Function
}

// Builder constructs a fresh Instance for a skill name. Builders are
// registered statically (see internal/skill/builtin) or, for
// "runtime": "wasm" manifests, synthesized by the WASM loader.
type Builder func(manifest *Manifest) (Instance, error)

var builders = make(map[string]Builder)

// Register associates name with a builder. Called from an importing
// package's init(), mirroring the static-linking option Design Notes §9
// prefers over dynamic loading.
func Register(name string, b Builder) {
	builders[name] = b
}

// staticInstance is the common Instance shape for built-in, statically
// linked skills: a fixed manifest and function dispatch table.
type staticInstance struct {
	manifest *Manifest
	fns      map[string]Function
}

// NewStaticInstance builds an Instance from a manifest and its
// dispatch table. Used by builtin skill packages in their Builder.
func NewStaticInstance(manifest *Manifest, fns map[string]Function) Instance {
	return &staticInstance{manifest: manifest, fns: fns}
}

func (s *staticInstance) Name() string            { return s.manifest.Name }
func (s *staticInstance) Manifest() *Manifest      { return s.manifest }
func (s *staticInstance) Functions() map[string]Function { return s.fns }

// Build constructs an Instance for a discovered skill, using the
// statically registered builder for its name, or the WASM loader if the
// manifest declares "runtime": "wasm" and no builder is registered.
func Build(d *Discovered) (Instance, error) {
	if b, ok := builders[d.Manifest.Name]; ok {
		return b(d.Manifest)
	}
	if d.Manifest.Runtime == "wasm" {
		return buildWasmInstance(d.Manifest)
	}
	return nil, fmt.Errorf("no builder registered for skill %q and manifest does not declare a wasm runtime", d.Manifest.Name)
}
