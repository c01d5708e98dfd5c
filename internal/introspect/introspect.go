// Package introspect implements the supervisor's read-only query
// surface: everything an operator or embedder needs to inspect agents,
// check policy decisions, and validate the installed configuration
// without running a task.
package introspect

import (
	"net"
	"strings"

	"github.com/dohr-michael/ozymandias/internal/capability"
	"github.com/dohr-michael/ozymandias/internal/memory"
	"github.com/dohr-michael/ozymandias/internal/ozerrors"
	"github.com/dohr-michael/ozymandias/internal/sandbox"
	"github.com/dohr-michael/ozymandias/internal/supervisor"
	"github.com/dohr-michael/ozymandias/internal/tasklog"
)

// Version is the supervisor's reported build version.
const Version = "0.1.0"

// Introspect wraps a Supervisor's collaborators in a read-only query
// surface, mirroring the agentd.py introspection methods one for one.
type Introspect struct {
	sup *supervisor.Supervisor
}

// New wraps sup for introspection.
func New(sup *supervisor.Supervisor) *Introspect {
	return &Introspect{sup: sup}
}

// AgentSummary is one entry of list_agents.
type AgentSummary struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Skills       []string `json:"skills"`
}

// ListAgents returns a summary of every loaded agent, sorted by name.
func (i *Introspect) ListAgents() []AgentSummary {
	names := i.sup.ListAgents()
	out := make([]AgentSummary, 0, len(names))
	for _, name := range names {
		agent, ok := i.sup.Agents[name]
		if !ok {
			continue
		}
		caps := make([]string, 0, len(agent.Capabilities))
		for _, t := range agent.Capabilities.Sorted() {
			caps = append(caps, string(t))
		}
		out = append(out, AgentSummary{
			Name:         agent.Name,
			Description:  agent.Description,
			Capabilities: caps,
			Skills:       agent.Skills,
		})
	}
	return out
}

// AgentInfo is the full agent_info(name) result.
type AgentInfo struct {
	AgentSummary
	CapabilityWarnings []string           `json:"capability_warnings,omitempty"`
	MemoryLimitBytes   int64              `json:"memory_limit_bytes"`
	TaskTimeoutSeconds int                `json:"max_task_timeout_seconds"`
	MemoryStats        *memory.Stats      `json:"memory_stats,omitempty"`
	SandboxDiskUsage   *sandbox.DiskUsage `json:"sandbox_disk_usage,omitempty"`
}

// AgentInfo returns the full agent record plus memory stats and
// sandbox disk usage; returns (nil, false) if name is not loaded.
func (i *Introspect) AgentInfo(name string) (*AgentInfo, bool) {
	agent, ok := i.sup.Agents[name]
	if !ok {
		return nil, false
	}

	caps := make([]string, 0, len(agent.Capabilities))
	for _, t := range agent.Capabilities.Sorted() {
		caps = append(caps, string(t))
	}

	info := &AgentInfo{
		AgentSummary: AgentSummary{
			Name:         agent.Name,
			Description:  agent.Description,
			Capabilities: caps,
			Skills:       agent.Skills,
		},
		CapabilityWarnings: agent.CapabilityWarnings,
		MemoryLimitBytes:   agent.MemoryLimitBytes,
		TaskTimeoutSeconds: agent.MaxTaskTimeoutSeconds,
	}

	if stats, err := i.sup.Memory.Stats(name); err == nil {
		info.MemoryStats = stats
	}

	sbox, err := i.sup.Sandboxes.Create(name)
	if err == nil {
		if usage, err := sbox.DiskUsage(); err == nil {
			info.SandboxDiskUsage = usage
		}
	}

	return info, true
}

// AgentLogs returns the last limit structured log entries for name
// (all of them if limit <= 0).
func (i *Introspect) AgentLogs(name string, limit int) ([]tasklog.Entry, error) {
	return i.sup.Logs.Tail(name, limit)
}

// CapabilityCheck is the check_capability result.
type CapabilityCheck struct {
	Allowed bool   `json:"allowed"`
	Error   string `json:"error,omitempty"`
}

// CheckCapability reports whether agent has tag granted.
func (i *Introspect) CheckCapability(agentName string, tag capability.Tag) CapabilityCheck {
	agent, ok := i.sup.Agents[agentName]
	if !ok {
		return CapabilityCheck{Allowed: false, Error: "agent not found"}
	}
	if agent.Capabilities.Has(tag) {
		return CapabilityCheck{Allowed: true}
	}
	return CapabilityCheck{Allowed: false, Error: "capability not granted"}
}

// SandboxAccessCheck is the check_sandbox_access result.
type SandboxAccessCheck struct {
	Allowed bool   `json:"allowed"`
	Error   string `json:"error,omitempty"`
}

// CheckSandboxAccess reports whether path (absolute or sandbox-relative)
// resolves inside agent's sandbox once canonicalized.
func (i *Introspect) CheckSandboxAccess(agentName, path string) SandboxAccessCheck {
	agent, ok := i.sup.Agents[agentName]
	if !ok {
		return SandboxAccessCheck{Allowed: false, Error: "agent not found"}
	}

	sbox, err := i.sup.Sandboxes.Create(agentName)
	if err != nil {
		return SandboxAccessCheck{Allowed: false, Error: err.Error()}
	}

	ok2, err := sbox.Contains(path, agent.AllowedPathGlobs)
	if err != nil || !ok2 {
		rec := ozerrors.New(ozerrors.SandboxViolation, agent.Name, "path resolves outside the agent's sandbox")
		return SandboxAccessCheck{Allowed: false, Error: rec.Error()}
	}
	return SandboxAccessCheck{Allowed: true}
}

// NetworkAccessCheck is the check_network_access result.
type NetworkAccessCheck struct {
	Allowed            bool   `json:"allowed"`
	Error              string `json:"error,omitempty"`
	HasNetworkLocal    bool   `json:"has_network_local"`
	HasNetworkExternal bool   `json:"has_network_external"`
	IsBlocked          bool   `json:"is_blocked"`
}

// CheckNetworkAccess reports the effective network policy for agent
// against an optional target (loopback is inferred from target; an
// empty target is treated as loopback, matching the executor's own
// "no target" heuristic).
func (i *Introspect) CheckNetworkAccess(agentName, target string) NetworkAccessCheck {
	agent, ok := i.sup.Agents[agentName]
	if !ok {
		return NetworkAccessCheck{Allowed: false, Error: "agent not found"}
	}

	isBlocked := agent.Capabilities.Has(capability.NetworkNone)
	hasLocal := agent.Capabilities.Has(capability.NetworkLocal)
	hasExternal := agent.Capabilities.Has(capability.NetworkExternal)

	isLoopback := target == "" || isLoopbackHost(target)
	allowed := capability.NetworkAllowed(agent.Capabilities, isLoopback)

	check := NetworkAccessCheck{
		Allowed:            allowed,
		HasNetworkLocal:    hasLocal,
		HasNetworkExternal: hasExternal,
		IsBlocked:          isBlocked,
	}
	if !allowed {
		check.Error = "network access denied by policy"
	}
	return check
}

// ValidationReport is the validate_all result.
type ValidationReport struct {
	Agents map[string]AgentValidation `json:"agents"`
	Skills SkillValidationSummary     `json:"skills"`
}

// AgentValidation is one agent's validation outcome.
type AgentValidation struct {
	CapabilityWarnings []string `json:"capability_warnings,omitempty"`
	SkillIssues        []string `json:"skill_issues,omitempty"`
}

// SkillValidationSummary lists every valid and invalid skill name plus
// the issues recorded against invalid ones.
type SkillValidationSummary struct {
	Valid   []string          `json:"valid"`
	Invalid []string          `json:"invalid"`
	Issues  map[string]string `json:"issues,omitempty"`
}

// ValidateAll reports per-agent and per-skill validation, re-running
// discovery first so the report reflects the on-disk state.
func (i *Introspect) ValidateAll() ValidationReport {
	_ = i.sup.Registry.Discover()

	report := ValidationReport{Agents: make(map[string]AgentValidation)}
	for _, name := range i.sup.ListAgents() {
		agent := i.sup.Agents[name]
		validation := i.sup.Registry.ValidateAgentSkills(agent.Skills, agent.Capabilities)
		report.Agents[name] = AgentValidation{
			CapabilityWarnings: agent.CapabilityWarnings,
			SkillIssues:        validation.Issues,
		}
	}

	report.Skills.Valid = i.sup.Registry.ListValid()
	report.Skills.Invalid = i.sup.Registry.ListInvalid()
	if len(report.Skills.Invalid) > 0 {
		report.Skills.Issues = make(map[string]string)
		for _, name := range report.Skills.Invalid {
			if d, ok := i.sup.Registry.Get(name); ok {
				report.Skills.Issues[name] = joinIssues(d.Issues)
			}
		}
	}
	return report
}

// SystemStatus is the system_status result.
type SystemStatus struct {
	Version     string `json:"version"`
	Root        string `json:"root"`
	ModelsDir   string `json:"models_dir"`
	SkillsDir   string `json:"skills_dir"`
	AgentCount  int    `json:"agent_count"`
	ValidSkills int    `json:"valid_skill_count"`
}

// SystemStatus reports root paths, counts, and version.
func (i *Introspect) SystemStatus() SystemStatus {
	return SystemStatus{
		Version:     Version,
		Root:        i.sup.Root,
		ModelsDir:   i.sup.ModelsDir,
		SkillsDir:   i.sup.SkillsDir,
		AgentCount:  len(i.sup.Agents),
		ValidSkills: len(i.sup.Registry.ListValid()),
	}
}

func joinIssues(issues []string) string {
	out := ""
	for idx, iss := range issues {
		if idx > 0 {
			out += "; "
		}
		out += iss
	}
	return out
}

// isLoopbackHost is a thin re-derivation of the executor's own loopback
// classification, kept local to avoid exporting that heuristic from
// internal/executor just for this read-only check.
func isLoopbackHost(target string) bool {
	host := target
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	if idx := strings.IndexByte(host, '/'); idx >= 0 {
		host = host[:idx]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
