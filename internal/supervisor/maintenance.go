package supervisor

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// StartMaintenance schedules the background swarm-decay / memory-audit
// loop described in the concurrency model: a single periodic job, not
// bound to any one task, that keeps the swarm board's signal strengths
// honest even when no agent is actively emitting.
func (s *Supervisor) StartMaintenance(schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, s.runMaintenance)
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func (s *Supervisor) runMaintenance() {
	counts, err := s.Swarm.DecayAll()
	if err != nil {
		slog.Warn("maintenance: swarm decay failed", "error", err)
	} else if counts.Decayed > 0 || counts.Removed > 0 {
		slog.Info("maintenance: swarm decay", "decayed", counts.Decayed, "removed", counts.Removed)
	}

	for _, name := range s.ListAgents() {
		stats, err := s.Memory.Stats(name)
		if err != nil {
			slog.Warn("maintenance: memory stats failed", "agent", name, "error", err)
			continue
		}
		agent, ok := s.agent(name)
		if !ok {
			continue
		}
		if stats.SizeBytes > agent.MemoryLimitBytes {
			slog.Warn("maintenance: agent memory document exceeds its budget",
				"agent", name, "size_bytes", stats.SizeBytes, "limit_bytes", agent.MemoryLimitBytes)
		}
	}
}
