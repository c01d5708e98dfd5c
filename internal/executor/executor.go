// Package executor implements the gated executor: the single
// choke-point through which every subprocess call passes. Before any
// binary is spawned it classifies the binary, applies the network
// policy, checks the required capability, resolves a working directory,
// and builds a scrubbed environment.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/dohr-michael/ozymandias/internal/capability"
	"github.com/dohr-michael/ozymandias/internal/ozerrors"
	"github.com/dohr-michael/ozymandias/internal/sandbox"
	"github.com/dohr-michael/ozymandias/internal/skill"
)

const (
	// DefaultTimeout is used when a call does not specify one.
	DefaultTimeout = 300 * time.Second
	// stderrTruncateBytes bounds the stderr snippet attached to a
	// failed command's error details.
	stderrTruncateBytes = 500
)

// Executor is bound to one agent's capability set and sandbox for the
// lifetime of a single task.
type Executor struct {
	AgentName      string
	Capabilities   capability.Set
	Sandbox        *sandbox.Sandbox
	MaxTaskTimeout time.Duration
	onLog          func(entry LogEntry)
}

// LogEntry is what the executor reports back to the task engine after
// every call, for the structured log's subprocess_cmd field.
type LogEntry struct {
	Command  []string
	WorkDir  string
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// New builds an Executor for agent, bound to caps and sbox.
// maxTaskTimeout is the agent's max_task_timeout_seconds, the upper
// bound any single call's timeout is clamped to.
func New(agent string, caps capability.Set, sbox *sandbox.Sandbox, maxTaskTimeout time.Duration, onLog func(LogEntry)) *Executor {
	return &Executor{AgentName: agent, Capabilities: caps, Sandbox: sbox, MaxTaskTimeout: maxTaskTimeout, onLog: onLog}
}

// Run validates and executes a command. It implements skill.Runner so
// skill functions can call it directly through their Env.
func (e *Executor) Run(ctx context.Context, argv []string, opts skill.RunOptions) (*skill.RunResult, error) {
	if len(argv) == 0 {
		return nil, ozerrors.New(ozerrors.ExecutionError, e.AgentName, "empty command")
	}
	binary := filepath.Base(argv[0])

	if isNetworkCommand(binary) {
		if err := e.checkNetworkPolicy(argv); err != nil {
			return nil, err
		}
	}

	if required, ok := binaryCapability(binary); ok {
		if !e.Capabilities.Has(required) {
			return nil, ozerrors.New(ozerrors.CapabilityDenied, e.AgentName,
				fmt.Sprintf("binary %q requires capability %q", binary, required)).WithRequired(string(required))
		}
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = e.Sandbox.PathIn(sandbox.Work, "")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, ozerrors.New(ozerrors.SandboxViolation, e.AgentName, fmt.Sprintf("resolve workdir: %v", err))
	}

	env := e.buildEnv(opts.Env)

	timeout := DefaultTimeout
	if opts.Timeout > 0 {
		timeout = time.Duration(opts.Timeout) * time.Second
	}
	if e.MaxTaskTimeout > 0 && timeout > e.MaxTaskTimeout {
		timeout = e.MaxTaskTimeout
	}

	return e.spawn(ctx, argv, workDir, env, timeout, opts.Check)
}

// checkNetworkPolicy applies §4.1: network.none denies everything;
// otherwise network.local only permits loopback targets, and anything
// else requires network.external.
func (e *Executor) checkNetworkPolicy(argv []string) error {
	target := extractTarget(argv)
	isLoopback := target == "" || isLoopbackTarget(target)
	if !capability.NetworkAllowed(e.Capabilities, isLoopback) {
		return ozerrors.New(ozerrors.NetworkViolation, e.AgentName,
			fmt.Sprintf("network access denied for command %q (target %q)", strings.Join(argv, " "), target))
	}
	return nil
}

// extractTarget makes a best-effort guess at the network command's
// target from its trailing non-flag argument. This is a heuristic, not
// a protocol parser: good enough to classify loopback vs. non-loopback
// for the common single-target invocation shape.
func extractTarget(argv []string) string {
	for i := len(argv) - 1; i > 0; i-- {
		arg := argv[i]
		if strings.HasPrefix(arg, "-") {
			continue
		}
		return arg
	}
	return ""
}

func isLoopbackTarget(target string) bool {
	host := target
	if u, err := urlHost(target); err == nil && u != "" {
		host = u
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// urlHost extracts a bare host from a URL-ish or host:port-ish string
// without pulling in a full URL parser; returns an error only to signal
// "not URL-shaped", in which case the caller falls back to the raw
// string.
func urlHost(s string) (string, error) {
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/@"); idx >= 0 && strings.Contains(s[:idx], "@") {
		s = s[strings.Index(s, "@")+1:]
	}
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		s = s[:idx]
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host, nil
	}
	return s, nil
}

// buildEnv starts from the supervisor's own environment, merges
// user-provided overrides, and — if the agent has network.none —
// scrubs proxy variables per §4.5.
func (e *Executor) buildEnv(overrides map[string]string) []string {
	base := os.Environ()
	merged := make(map[string]string, len(base)+len(overrides))
	for _, kv := range base {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			merged[kv[:idx]] = kv[idx+1:]
		}
	}
	for k, v := range overrides {
		merged[k] = v
	}
	if e.Capabilities.Has(capability.NetworkNone) {
		for _, p := range []string{"http_proxy", "https_proxy", "HTTP_PROXY", "HTTPS_PROXY"} {
			merged[p] = ""
		}
		merged["no_proxy"] = "*"
	}

	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	return env
}

func (e *Executor) spawn(ctx context.Context, argv []string, workDir string, env []string, timeout time.Duration, check bool) (*skill.RunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	timedOut := false
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if runCtx.Err() == context.DeadlineExceeded {
			timedOut = true
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		} else if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	entry := LogEntry{Command: argv, WorkDir: workDir, ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String(), TimedOut: timedOut}
	if e.onLog != nil {
		e.onLog(entry)
	}

	if timedOut {
		return nil, ozerrors.New(ozerrors.ExecutionError, e.AgentName, "timed out")
	}
	if check && exitCode != 0 {
		return nil, ozerrors.New(ozerrors.ExecutionError, e.AgentName,
			fmt.Sprintf("command failed: %s", strings.Join(argv, " "))).
			WithDetails(map[string]any{
				"exit_code": exitCode,
				"stderr":    ozerrors.Truncate(stderr.String(), stderrTruncateBytes),
			})
	}

	return &skill.RunResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}, nil
}

// RunShell requires exec.shell and invokes sh -c script, classifying the
// script's leading command word (via a best-effort shell-syntax parse)
// so nested-command capability checks can still apply when the caller
// passes a one-liner instead of a pre-split argv.
func (e *Executor) RunShell(ctx context.Context, script string, opts skill.RunOptions) (*skill.RunResult, error) {
	if !e.Capabilities.Has(capability.ExecShell) {
		return nil, ozerrors.New(ozerrors.CapabilityDenied, e.AgentName, "run_shell requires exec.shell").
			WithRequired(string(capability.ExecShell))
	}
	if leading := leadingCommandWord(script); leading != "" {
		if required, ok := binaryCapability(leading); ok && !e.Capabilities.Has(required) {
			return nil, ozerrors.New(ozerrors.CapabilityDenied, e.AgentName,
				fmt.Sprintf("script invokes %q which requires capability %q", leading, required)).
				WithRequired(string(required))
		}
	}
	return e.Run(ctx, []string{"sh", "-c", script}, opts)
}

// RunPython requires exec.python and invokes python3 with args as its
// arguments (a script path or "-c" usage is the caller's concern; this
// wrapper only enforces the capability gate).
func (e *Executor) RunPython(ctx context.Context, args []string, opts skill.RunOptions) (*skill.RunResult, error) {
	if !e.Capabilities.Has(capability.ExecPython) {
		return nil, ozerrors.New(ozerrors.CapabilityDenied, e.AgentName, "run_python requires exec.python").
			WithRequired(string(capability.ExecPython))
	}
	argv := append([]string{"python3"}, args...)
	return e.Run(ctx, argv, opts)
}

// leadingCommandWord extracts the first command word of a shell
// one-liner using mvdan.cc/sh/v3/syntax, without attempting general
// shell semantics beyond that single classification purpose.
func leadingCommandWord(script string) string {
	parser := syntax.NewParser()
	file, err := parser.Parse(strings.NewReader(script), "")
	if err != nil {
		return ""
	}
	var leading string
	syntax.Walk(file, func(node syntax.Node) bool {
		if leading != "" {
			return false
		}
		if call, ok := node.(*syntax.CallExpr); ok && len(call.Args) > 0 {
			if len(call.Args[0].Parts) > 0 {
				if lit, ok := call.Args[0].Parts[0].(*syntax.Lit); ok {
					leading = filepath.Base(lit.Value)
					return false
				}
			}
		}
		return true
	})
	return leading
}
