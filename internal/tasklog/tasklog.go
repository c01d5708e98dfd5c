// Package tasklog implements the append-only, per-agent structured
// execution log: one JSONL file per agent, written with a single
// O_APPEND call per entry so no locking is required on the write path.
package tasklog

import (
	"time"

	"github.com/dohr-michael/ozymandias/internal/dirstore"
)

// Entry is one structured log line. Status, Action and Agent are always
// present; the remaining fields are populated depending on what kind of
// step produced the entry.
type Entry struct {
	Timestamp        time.Time `json:"timestamp"`
	Agent            string    `json:"agent"`
	Action           string    `json:"action"`
	Status           string    `json:"status"`
	Details          any       `json:"details,omitempty"`
	CapabilityChecks any       `json:"capability_checks,omitempty"`
	SkillLoads       any       `json:"skill_loads,omitempty"`
	SubprocessCmd    any       `json:"subprocess_cmd,omitempty"`
	Error            any       `json:"error,omitempty"`
}

const logFilename = "task.jsonl"

// Log appends structured entries for, and reads them back per, agent.
type Log struct {
	ds *dirstore.DirStore
}

// NewLog builds a Log rooted at dir (typically config.LogsDir()).
func NewLog(dir string) *Log {
	return &Log{ds: dirstore.NewDirStore(dir, "tasklog")}
}

// Append writes entry to agent's log file.
func (l *Log) Append(agent string, entry Entry) error {
	if err := l.ds.EnsureDir(agent); err != nil {
		return err
	}
	return l.ds.AppendJSONL(agent, logFilename, entry)
}

// Tail returns the most recent limit entries for agent (all of them if
// limit <= 0). Malformed trailing lines from a partial crash write are
// silently skipped.
func (l *Log) Tail(agent string, limit int) ([]Entry, error) {
	return dirstore.TailJSONL[Entry](l.ds, agent, logFilename, limit)
}

// All returns every entry for agent, oldest first.
func (l *Log) All(agent string) ([]Entry, error) {
	return dirstore.LoadJSONL[Entry](l.ds, agent, logFilename)
}
