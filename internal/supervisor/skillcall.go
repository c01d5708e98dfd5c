package supervisor

import (
	"context"
	"fmt"

	"github.com/dohr-michael/ozymandias/internal/capability"
	"github.com/dohr-michael/ozymandias/internal/ozerrors"
	"github.com/dohr-michael/ozymandias/internal/skill"
)

// invokeSkillCall is steps 6-8 of the pipeline: validate the call
// against the agent's declared skills and capabilities, load the skill,
// and invoke the named function.
func (p *pipeline) invokeSkillCall(ctx context.Context, skillName, fnName string, args map[string]any) (any, error) {
	agent := p.agent

	// Step 6: grammar already resolved by the caller; validate the
	// skill is declared, registered, valid, and covered by capabilities.
	step6 := p.beginStep(6, "validate_skill_call")

	if !contains(agent.Skills, skillName) {
		msg := fmt.Sprintf("skill %q is not declared for agent %q", skillName, agent.Name)
		p.failStep(&step6, msg)
		return nil, ozerrors.New(ozerrors.SkillNotAllowed, agent.Name, msg)
	}

	discovered, ok := p.sup.Registry.Get(skillName)
	if !ok || !discovered.Valid() {
		msg := fmt.Sprintf("skill %q is not registered or invalid", skillName)
		p.failStep(&step6, msg)
		return nil, ozerrors.New(ozerrors.SkillMissing, agent.Name, msg)
	}

	var required []capability.Tag
	for _, tag := range discovered.Manifest.RequiresCapabilities {
		required = append(required, capability.Tag(tag))
	}
	if missing := capabilityDiff(required, agent.Capabilities); len(missing) > 0 {
		msg := fmt.Sprintf("skill %q requires capability %q", skillName, missing[0])
		p.failStep(&step6, msg)
		return nil, ozerrors.New(ozerrors.CapabilityDenied, agent.Name, msg).WithRequired(string(missing[0]))
	}
	p.completeStep(&step6, nil)

	// Step 7: load the skill instance.
	step7 := p.beginStep(7, "load_skill")
	instance, err := skill.Build(discovered)
	if err != nil {
		msg := fmt.Sprintf("failed to load skill %q: %v", skillName, err)
		p.failStep(&step7, msg)
		return nil, ozerrors.New(ozerrors.SkillMissing, agent.Name, msg)
	}
	fn, ok := instance.Functions()[fnName]
	if !ok {
		msg := fmt.Sprintf("skill %q has no function %q", skillName, fnName)
		p.failStep(&step7, msg)
		return nil, ozerrors.New(ozerrors.SkillMissing, agent.Name, msg)
	}
	p.completeStep(&step7, nil)

	// Step 8: invoke, capturing the result.
	step8 := p.beginStep(8, fmt.Sprintf("invoke %s.%s", skillName, fnName))
	env := &skill.Env{
		AgentName:        agent.Name,
		Sandbox:          p.sandbox,
		Memory:           p.sup.Memory,
		Capabilities:     agent.Capabilities,
		AllowedPathGlobs: agent.AllowedPathGlobs,
		Run:              p.exec,
	}
	result, err := fn(ctx, env, args)
	if err != nil {
		p.failStep(&step8, err.Error())
		return nil, err
	}
	p.completeStep(&step8, result)
	return result, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// naturalLanguageReply is the fallback shape for a task string that
// does not parse as `<skill>.<function>`: the core does not interpret
// natural language, so it reports back what it can actually run.
func (p *pipeline) naturalLanguageReply(task string) map[string]any {
	skills := p.sup.Registry.ListValid()
	examples := make([]string, 0, 3)
	for i, name := range skills {
		if i >= 3 {
			break
		}
		examples = append(examples, name+".self_test")
	}
	return map[string]any{
		"success":          true,
		"message":          fmt.Sprintf("task received: %s", task),
		"note":             "natural-language interpretation is not implemented in the core; use <skill>.<function> form",
		"available_skills": skills,
		"example_tasks":    examples,
	}
}
