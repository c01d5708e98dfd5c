// Package sandbox implements the per-agent isolated working directory:
// a fixed four-region subtree (tmp, work, output, cache) that is the
// only area an agent may freely write to, plus the path-containment
// check that the fs skill and introspection use on filesystem paths.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
)

// Region names the four fixed sub-regions of a sandbox.
type Region string

const (
	Tmp    Region = "tmp"
	Work   Region = "work"
	Output Region = "output"
	Cache  Region = "cache"
)

var allRegions = []Region{Tmp, Work, Output, Cache}

// Sandbox is a materialized per-agent filesystem subtree.
type Sandbox struct {
	AgentName string
	Root      string // <sandboxes_root>/<agent_name>
}

// Manager creates and manages sandboxes rooted at a configured
// sandboxes_root directory.
type Manager struct {
	root string
}

// NewManager builds a Manager rooted at root (typically config.SandboxesRoot()).
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Create materializes (lazily) the sandbox for agent, creating any
// missing sub-region directories. Creation failures are fatal for the
// current task only; no agent state is mutated by a failed call.
func (m *Manager) Create(agent string) (*Sandbox, error) {
	root := filepath.Join(m.root, agent)
	s := &Sandbox{AgentName: agent, Root: root}
	for _, r := range allRegions {
		if err := os.MkdirAll(s.regionPath(r), 0o755); err != nil {
			return nil, fmt.Errorf("create sandbox region %s for agent %s: %w", r, agent, err)
		}
	}
	return s, nil
}

func (s *Sandbox) regionPath(r Region) string {
	return filepath.Join(s.Root, string(r))
}

// PathIn returns the path for name within subregion, without touching
// the filesystem. An empty name returns the region root itself.
func (s *Sandbox) PathIn(region Region, name string) string {
	if name == "" {
		return s.regionPath(region)
	}
	return filepath.Join(s.regionPath(region), name)
}

// ResetTmp wipes and recreates the tmp region. Per the sandbox contract,
// tmp is wiped on every context entry and exit — callers must not expect
// cross-call persistence there.
func (s *Sandbox) ResetTmp() error {
	return s.reset(Tmp)
}

// ResetWork wipes and recreates the work region on explicit request.
func (s *Sandbox) ResetWork() error {
	return s.reset(Work)
}

func (s *Sandbox) reset(r Region) error {
	path := s.regionPath(r)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("reset %s: %w", r, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("recreate %s: %w", r, err)
	}
	return nil
}

// Destroy removes the entire sandbox subtree for the agent.
func (s *Sandbox) Destroy() error {
	return os.RemoveAll(s.Root)
}

// DiskUsage is the aggregate and per-region byte usage of a sandbox.
type DiskUsage struct {
	TotalBytes int64            `json:"total_bytes"`
	ByRegion   map[Region]int64 `json:"by_region"`
}

// DiskUsage walks the sandbox tree and reports byte usage per region.
func (s *Sandbox) DiskUsage() (*DiskUsage, error) {
	usage := &DiskUsage{ByRegion: make(map[Region]int64, len(allRegions))}
	for _, r := range allRegions {
		size, err := dirSize(s.regionPath(r))
		if err != nil {
			return nil, fmt.Errorf("disk usage %s: %w", r, err)
		}
		usage.ByRegion[r] = size
		usage.TotalBytes += size
	}
	return usage, nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	return total, nil
}
