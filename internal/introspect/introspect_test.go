package introspect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dohr-michael/ozymandias/internal/capability"
	"github.com/dohr-michael/ozymandias/internal/supervisor"
)

func writeAgentYAML(t *testing.T, modelsDir, name, body string) {
	t.Helper()
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		t.Fatalf("mkdir models: %v", err)
	}
	if err := os.WriteFile(filepath.Join(modelsDir, name+".yml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write agent config: %v", err)
	}
}

func newTestIntrospect(t *testing.T) (*Introspect, *supervisor.Supervisor) {
	t.Helper()
	sup := supervisor.New(t.TempDir(), 1_048_576)
	return New(sup), sup
}

func TestListAgentsReportsLoadedAgents(t *testing.T) {
	intr, sup := newTestIntrospect(t)
	writeAgentYAML(t, sup.ModelsDir, "demo", ""+
		"name: demo\ndescription: a demo agent\n"+
		"capabilities: [filesystem.read]\nskills: [fs]\n")
	sup.ReloadAgents()

	agents := intr.ListAgents()
	if len(agents) != 1 || agents[0].Name != "demo" {
		t.Fatalf("expected one agent named demo, got %+v", agents)
	}
	if agents[0].Capabilities[0] != "filesystem.read" {
		t.Errorf("expected filesystem.read, got %v", agents[0].Capabilities)
	}
}

func TestAgentInfoMissingAgentReturnsFalse(t *testing.T) {
	intr, _ := newTestIntrospect(t)
	_, ok := intr.AgentInfo("nobody")
	if ok {
		t.Fatal("expected ok=false for an unloaded agent")
	}
}

func TestAgentInfoReportsMemoryAndSandboxStats(t *testing.T) {
	intr, sup := newTestIntrospect(t)
	writeAgentYAML(t, sup.ModelsDir, "demo", "name: demo\ncapabilities: [filesystem.read]\nskills: []\n")
	sup.ReloadAgents()

	info, ok := intr.AgentInfo("demo")
	if !ok {
		t.Fatal("expected agent info")
	}
	if info.MemoryStats == nil {
		t.Error("expected memory stats to be populated")
	}
	if info.SandboxDiskUsage == nil {
		t.Error("expected sandbox disk usage to be populated")
	}
}

func TestCheckCapabilityReflectsGrant(t *testing.T) {
	intr, sup := newTestIntrospect(t)
	writeAgentYAML(t, sup.ModelsDir, "demo", "name: demo\ncapabilities: [filesystem.read]\nskills: []\n")
	sup.ReloadAgents()

	if !intr.CheckCapability("demo", capability.FilesystemRead).Allowed {
		t.Error("expected filesystem.read to be allowed")
	}
	if intr.CheckCapability("demo", capability.ExecPkg).Allowed {
		t.Error("expected exec.pkg to be denied")
	}
}

func TestCheckSandboxAccessRejectsEscapeAttempt(t *testing.T) {
	intr, sup := newTestIntrospect(t)
	writeAgentYAML(t, sup.ModelsDir, "demo", "name: demo\ncapabilities: [filesystem.read]\nskills: []\n")
	sup.ReloadAgents()

	sboxRoot := filepath.Join(sup.Root, "sandboxes", "demo")
	escape := filepath.Join(sboxRoot, "tmp", "..", "..", "..", "etc", "passwd")

	check := intr.CheckSandboxAccess("demo", escape)
	if check.Allowed {
		t.Fatal("expected sandbox escape attempt to be denied")
	}
	if check.Error == "" {
		t.Error("expected a sandbox_violation error message")
	}
}

func TestCheckSandboxAccessAllowsInsidePath(t *testing.T) {
	intr, sup := newTestIntrospect(t)
	writeAgentYAML(t, sup.ModelsDir, "demo", "name: demo\ncapabilities: [filesystem.read]\nskills: []\n")
	sup.ReloadAgents()

	inside := filepath.Join(sup.Root, "sandboxes", "demo", "work", "file.txt")
	check := intr.CheckSandboxAccess("demo", inside)
	if !check.Allowed {
		t.Errorf("expected in-sandbox path to be allowed, got error %q", check.Error)
	}
}

func TestCheckNetworkAccessHonorsNetworkNoneSentinel(t *testing.T) {
	intr, sup := newTestIntrospect(t)
	writeAgentYAML(t, sup.ModelsDir, "demo", "name: demo\ncapabilities: [network.none, network.local]\nskills: []\n")
	sup.ReloadAgents()

	check := intr.CheckNetworkAccess("demo", "127.0.0.1")
	if check.Allowed {
		t.Error("expected network.none to deny access even with network.local also granted")
	}
	if !check.IsBlocked {
		t.Error("expected is_blocked=true")
	}
}

func TestCheckNetworkAccessLoopbackWithLocalOnly(t *testing.T) {
	intr, sup := newTestIntrospect(t)
	writeAgentYAML(t, sup.ModelsDir, "demo", "name: demo\ncapabilities: [network.local]\nskills: []\n")
	sup.ReloadAgents()

	if !intr.CheckNetworkAccess("demo", "localhost").Allowed {
		t.Error("expected loopback target to be allowed with network.local")
	}
	if intr.CheckNetworkAccess("demo", "example.com").Allowed {
		t.Error("expected non-loopback target to be denied with only network.local")
	}
}

func TestValidateAllReportsCapabilityWarnings(t *testing.T) {
	intr, sup := newTestIntrospect(t)
	writeAgentYAML(t, sup.ModelsDir, "demo", "name: demo\ncapabilities: [filesystem.read, bogus.tag]\nskills: []\n")
	sup.ReloadAgents()

	report := intr.ValidateAll()
	av, ok := report.Agents["demo"]
	if !ok {
		t.Fatal("expected a validation entry for demo")
	}
	if len(av.CapabilityWarnings) != 1 {
		t.Errorf("expected one capability warning, got %v", av.CapabilityWarnings)
	}
}

func TestSystemStatusReportsCounts(t *testing.T) {
	intr, sup := newTestIntrospect(t)
	writeAgentYAML(t, sup.ModelsDir, "demo", "name: demo\ncapabilities: [filesystem.read]\nskills: []\n")
	sup.ReloadAgents()

	status := intr.SystemStatus()
	if status.AgentCount != 1 {
		t.Errorf("expected agent_count=1, got %d", status.AgentCount)
	}
	if status.Root != sup.Root {
		t.Errorf("expected root %q, got %q", sup.Root, status.Root)
	}
}
