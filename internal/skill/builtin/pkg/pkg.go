// Package pkg is a built-in skill wrapping the system package manager.
// Every function it provides runs through the agent's gated executor,
// so the exec.pkg capability check happens before any binary in
// BINARY_CAPABILITIES named "apt"/"apt-get"/"dpkg"/... actually spawns.
package pkg

import (
	"context"
	"fmt"

	"github.com/dohr-michael/ozymandias/internal/skill"
)

func init() {
	skill.Register("pkg", build)
}

func build(manifest *skill.Manifest) (skill.Instance, error) {
	return skill.NewStaticInstance(manifest, map[string]skill.Function{
		"install_package": installPackage,
		"self_test":       selfTest,
	}), nil
}

func installPackage(ctx context.Context, env *skill.Env, args map[string]any) (any, error) {
	name, _ := args["package"].(string)
	if name == "" {
		return nil, fmt.Errorf("install_package: missing required arg %q", "package")
	}
	result, err := env.Run.Run(ctx, []string{"apt-get", "install", "-y", name}, skill.RunOptions{Check: true})
	if err != nil {
		return nil, err
	}
	return map[string]any{"package": name, "exit_code": result.ExitCode, "stdout": result.Stdout}, nil
}

func selfTest(_ context.Context, env *skill.Env, _ map[string]any) (any, error) {
	return map[string]any{"skill": "pkg", "agent": env.AgentName, "ok": true}, nil
}
