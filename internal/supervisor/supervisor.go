// Package supervisor is the daemon: it loads agent definitions, parses
// task strings, and drives the ten-step execution pipeline that wires
// memory, sandbox, and the gated executor into a skill invocation,
// producing a structured TaskResult for every call.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dohr-michael/ozymandias/internal/capability"
	"github.com/dohr-michael/ozymandias/internal/executor"
	"github.com/dohr-michael/ozymandias/internal/memory"
	"github.com/dohr-michael/ozymandias/internal/ozerrors"
	"github.com/dohr-michael/ozymandias/internal/sandbox"
	"github.com/dohr-michael/ozymandias/internal/skill"
	_ "github.com/dohr-michael/ozymandias/internal/skill/builtin/fs"
	_ "github.com/dohr-michael/ozymandias/internal/skill/builtin/pkg"
	"github.com/dohr-michael/ozymandias/internal/swarm"
	"github.com/dohr-michael/ozymandias/internal/tasklog"
)

// Supervisor is the daemon: the immutable agent table plus the
// per-root collaborators (skill registry, memory store, sandbox
// manager, structured log, swarm board) every task is run against.
type Supervisor struct {
	Root      string
	ModelsDir string
	SkillsDir string

	Agents    map[string]*AgentConfig
	Registry  *skill.Registry
	Memory    *memory.Store
	Sandboxes *sandbox.Manager
	Logs      *tasklog.Log
	Swarm     *swarm.Board

	agentsMu sync.RWMutex
}

// New builds a Supervisor rooted at root, scanning models/ and
// skills/ immediately. defaultMemoryLimitBytes is the Store-wide
// ceiling Save ultimately enforces; per-agent budgets (§3's
// memory_limit_bytes) are additionally checked at pipeline step 3.
func New(root string, defaultMemoryLimitBytes int64) *Supervisor {
	modelsDir := filepath.Join(root, "models")
	skillsDir := filepath.Join(root, "skills")

	reg := skill.NewRegistry(skillsDir)
	_ = reg.Discover()

	return &Supervisor{
		Root:      root,
		ModelsDir: modelsDir,
		SkillsDir: skillsDir,
		Agents:    LoadAgents(modelsDir),
		Registry:  reg,
		Memory:    memory.NewStore(filepath.Join(root, "memory"), defaultMemoryLimitBytes),
		Sandboxes: sandbox.NewManager(filepath.Join(root, "sandboxes")),
		Logs:      tasklog.NewLog(filepath.Join(root, "logs")),
		Swarm:     swarm.NewBoard(filepath.Join(root, "swarm")),
	}
}

// ReloadAgents re-scans the models directory, atomically replacing the
// agent table. Existing in-flight tasks keep the AgentConfig pointer
// they already captured.
func (s *Supervisor) ReloadAgents() {
	agents := LoadAgents(s.ModelsDir)
	s.agentsMu.Lock()
	s.Agents = agents
	s.agentsMu.Unlock()
}

func (s *Supervisor) agent(name string) (*AgentConfig, bool) {
	s.agentsMu.RLock()
	defer s.agentsMu.RUnlock()
	a, ok := s.Agents[name]
	return a, ok
}

// ListAgents returns every loaded agent's name, sorted.
func (s *Supervisor) ListAgents() []string {
	s.agentsMu.RLock()
	defer s.agentsMu.RUnlock()
	return sortedAgentNames(s.Agents)
}

// proxyEnvVars is scrubbed from the process environment at the start
// of every task, per the offline guarantee (§5).
var proxyEnvVars = []string{"http_proxy", "https_proxy", "HTTP_PROXY", "HTTPS_PROXY"}

func scrubProcessProxyEnv() {
	for _, v := range proxyEnvVars {
		_ = os.Unsetenv(v)
	}
	_ = os.Setenv("no_proxy", "*")
}

// RunTask parses task as either skill-call form (`<skill>.<function>`,
// containing a `.` and no whitespace) or natural-language form, and
// delegates accordingly.
func (s *Supervisor) RunTask(ctx context.Context, agentName, task string, args map[string]any) *TaskResult {
	if isSkillCallForm(task) {
		skillName, fnName, _ := strings.Cut(task, ".")
		return s.run(ctx, agentName, task, args, func(p *pipeline) (any, error) {
			return p.invokeSkillCall(ctx, skillName, fnName, args)
		})
	}
	return s.run(ctx, agentName, task, args, func(p *pipeline) (any, error) {
		return p.naturalLanguageReply(task), nil
	})
}

// RunSkillCall is the typed entry point Design Notes §9 asks for
// alongside the string grammar: skip parsing, go straight to a named
// skill function.
func (s *Supervisor) RunSkillCall(ctx context.Context, agentName, skillName, functionName string, args map[string]any) *TaskResult {
	task := skillName + "." + functionName
	return s.run(ctx, agentName, task, args, func(p *pipeline) (any, error) {
		return p.invokeSkillCall(ctx, skillName, functionName, args)
	})
}

// isSkillCallForm implements the task string grammar resolved from
// agentd.py's exact test: contains a "." and contains no whitespace.
func isSkillCallForm(task string) bool {
	return strings.Contains(task, ".") && !strings.ContainsAny(task, " \t\n\r")
}

// invoke is the step-8 body: given a loaded pipeline context, produce
// the skill function's result (or the natural-language reply).
type invoke func(p *pipeline) (any, error)

// pipeline carries per-task state threaded through the ten steps.
type pipeline struct {
	sup      *Supervisor
	agent    *AgentConfig
	sandbox  *sandbox.Sandbox
	exec     *executor.Executor
	result   TaskResult
	steps    []Step
}

func (s *Supervisor) run(ctx context.Context, agentName, task string, args map[string]any, body invoke) *TaskResult {
	taskID := uuid.NewString()
	startedAt := time.Now()

	result := &TaskResult{Agent: agentName, Task: task, TaskID: taskID, StartedAt: startedAt}
	p := &pipeline{sup: s, result: *result}

	// Step 1: lookup agent, log start.
	step1 := p.beginStep(1, "lookup_agent")
	agent, ok := s.agent(agentName)
	if !ok {
		p.failStep(&step1, fmt.Sprintf("agent not found: %s", agentName))
		return p.finish(ozerrors.New(ozerrors.UnknownError, agentName, fmt.Sprintf("agent not found: %s", agentName)))
	}
	p.agent = agent
	p.completeStep(&step1, nil)
	s.logAction(agentName, "run_task", "started", map[string]any{"task": task, "task_id": taskID})

	// Step 2: offline guarantee.
	step2 := p.beginStep(2, "scrub_proxy_env")
	scrubProcessProxyEnv()
	p.completeStep(&step2, nil)

	// Step 3: open memory store, verify budget.
	step3 := p.beginStep(3, "open_memory")
	sizeBytes, err := s.Memory.SizeBytes(agentName)
	if err != nil {
		p.failStep(&step3, err.Error())
		return p.finish(ozerrors.New(ozerrors.MemoryError, agentName, err.Error()))
	}
	if sizeBytes > agent.MemoryLimitBytes {
		msg := fmt.Sprintf("memory document size %d exceeds agent limit %d", sizeBytes, agent.MemoryLimitBytes)
		p.failStep(&step3, msg)
		rec := ozerrors.New(ozerrors.MemoryError, agentName, msg).
			WithDetails(map[string]any{"size_bytes": sizeBytes, "limit_bytes": agent.MemoryLimitBytes})
		return p.finish(rec)
	}
	p.completeStep(&step3, nil)

	// Step 4: materialize sandbox. tmp is wiped on every context entry
	// and exit (§3's sandbox lifecycle invariant); the exit wipe runs
	// via defer so it covers every return path below, including panics
	// recovered further down.
	step4 := p.beginStep(4, "materialize_sandbox")
	sbox, err := s.Sandboxes.Create(agentName)
	if err != nil {
		p.failStep(&step4, err.Error())
		return p.finish(ozerrors.New(ozerrors.SandboxViolation, agentName, err.Error()))
	}
	if err := sbox.ResetTmp(); err != nil {
		p.failStep(&step4, err.Error())
		return p.finish(ozerrors.New(ozerrors.SandboxViolation, agentName, err.Error()))
	}
	defer func() {
		if err := sbox.ResetTmp(); err != nil {
			s.logAction(agentName, "reset_tmp_on_exit", "failed", map[string]any{"error": err.Error()})
		}
	}()
	p.sandbox = sbox
	p.completeStep(&step4, nil)

	// Step 5: construct gated executor.
	step5 := p.beginStep(5, "construct_executor")
	maxTimeout := time.Duration(agent.MaxTaskTimeoutSeconds) * time.Second
	p.exec = executor.New(agentName, agent.Capabilities, sbox, maxTimeout, func(entry executor.LogEntry) {
		s.logAction(agentName, "subprocess", statusFromExitCode(entry), map[string]any{
			"subprocess_cmd": entry.Command,
			"exit_code":      entry.ExitCode,
			"timed_out":      entry.TimedOut,
		})
	})
	p.completeStep(&step5, nil)

	// Steps 6-8 are delegated to body (invokeSkillCall handles 6/7/8
	// internally so it can record its own sub-steps and error kinds;
	// the natural-language path has no further validation to do).
	var taskResult any
	var taskErr error

	func() {
		defer func() {
			if r := recover(); r != nil {
				taskErr = ozerrors.New(ozerrors.ExecutionError, agentName, fmt.Sprintf("panic: %v", r))
			}
		}()
		taskResult, taskErr = body(p)
	}()

	if taskErr != nil {
		// Step 9: append history (failure), non-fatal.
		p.appendHistory(agentName, task, args, false)
		s.logAction(agentName, "run_task", "completed", map[string]any{"task": task, "success": false})
		return p.finish(taskErr)
	}

	// Step 9: append history (success).
	p.appendHistory(agentName, task, args, true)

	// Step 10: assemble success result.
	s.logAction(agentName, "run_task", "completed", map[string]any{"task": task, "success": true})
	p.result.Status = "success"
	p.result.Result = taskResult
	p.result.CompletedAt = time.Now()
	p.result.Steps = p.steps
	p.result.Logs = s.logPathFor(agentName)
	return &p.result
}

func statusFromExitCode(entry executor.LogEntry) string {
	if entry.TimedOut {
		return "timed_out"
	}
	if entry.ExitCode != 0 {
		return "failed"
	}
	return "completed"
}

func (p *pipeline) appendHistory(agentName, task string, args map[string]any, success bool) {
	err := p.sup.Memory.AppendHistory(agentName, memory.HistoryEntry{
		Task:        task,
		TaskID:      p.result.TaskID,
		Args:        args,
		Success:     success,
		CompletedAt: time.Now(),
	})
	if err != nil {
		p.sup.logAction(agentName, "append_history", "failed", map[string]any{"error": err.Error()})
	}
}

func (p *pipeline) finish(err error) *TaskResult {
	p.result.Status = "error"
	p.result.CompletedAt = time.Now()
	p.result.Steps = p.steps
	p.result.Logs = p.sup.logPathFor(p.result.Agent)

	var rec *ozerrors.Record
	if as, ok := err.(*ozerrors.Record); ok {
		rec = as
	} else {
		rec = ozerrors.New(ozerrors.UnknownError, p.result.Agent, err.Error())
	}
	p.result.Error = &ErrorRecord{
		ErrorType: string(rec.Kind),
		Message:   rec.Message,
		Agent:     rec.Agent,
		Required:  rec.Required,
		Details:   rec.Details,
	}
	return &p.result
}

func (p *pipeline) beginStep(id int, action string) Step {
	return Step{StepID: id, Action: action, Status: StepRunning, StartedAt: time.Now()}
}

func (p *pipeline) completeStep(s *Step, result any) {
	s.Status = StepCompleted
	s.CompletedAt = time.Now()
	s.Result = result
	p.steps = append(p.steps, *s)
}

func (p *pipeline) failStep(s *Step, errMsg string) {
	s.Status = StepFailed
	s.CompletedAt = time.Now()
	s.Error = errMsg
	p.steps = append(p.steps, *s)
}

func (s *Supervisor) logAction(agent, action, status string, details map[string]any) {
	_ = s.Logs.Append(agent, tasklog.Entry{
		Timestamp: time.Now(),
		Agent:     agent,
		Action:    action,
		Status:    status,
		Details:   details,
	})
}

func (s *Supervisor) logPathFor(agent string) string {
	return filepath.Join(s.Root, "logs", agent, "task.jsonl")
}

// capabilityDiff is a small alias kept local to avoid importing
// capability in callers that only need the Difference helper's shape.
func capabilityDiff(required []capability.Tag, granted capability.Set) []capability.Tag {
	return capability.Difference(required, granted)
}
