// Package memory implements the per-agent memory document: a data map
// plus a bounded history list, persisted as one JSON file per agent
// under advisory file locks with atomic (temp+fsync+rename) writes.
package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dohr-michael/ozymandias/internal/dirstore"
	"github.com/dohr-michael/ozymandias/internal/ozerrors"
)

// maxHistoryEntries bounds the history list; oldest entries are
// dropped first (FIFO eviction).
const maxHistoryEntries = 1000

// secretPrefixes is the lint list applied to data keys; a key matching
// (case-insensitively) any of these as a prefix is rejected.
var secretPrefixes = []string{"secret", "password", "token", "api_key", "private_key"}

// HistoryEntry is one task-completion record appended after every task.
type HistoryEntry struct {
	Task        string         `json:"task"`
	TaskID      string         `json:"task_id"`
	Args        map[string]any `json:"args,omitempty"`
	Success     bool           `json:"success"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Document is the per-agent memory document.
type Document struct {
	AgentName string         `json:"agent_name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Data      map[string]any `json:"data"`
	History   []HistoryEntry `json:"history"`
}

// Stats summarizes a document for introspection.
type Stats struct {
	AgentName    string    `json:"agent_name"`
	SizeBytes    int64     `json:"size_bytes"`
	KeyCount     int       `json:"key_count"`
	HistoryCount int       `json:"history_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store manages memory documents for all agents under a root directory.
type Store struct {
	ds          *dirstore.DirStore
	limitBytes  int64
	mu          sync.Mutex // unused: writers are serialized per agent through agentLocks
	agentLocks  map[string]*sync.RWMutex
	agentLockMu sync.Mutex
}

// NewStore builds a Store rooted at dir (typically config.MemoryDir()),
// enforcing limitBytes per document.
func NewStore(dir string, limitBytes int64) *Store {
	return &Store{
		ds:         dirstore.NewDirStore(dir, "memory"),
		limitBytes: limitBytes,
		agentLocks: make(map[string]*sync.RWMutex),
	}
}

func (s *Store) lockFor(agent string) *sync.RWMutex {
	s.agentLockMu.Lock()
	defer s.agentLockMu.Unlock()
	l, ok := s.agentLocks[agent]
	if !ok {
		l = &sync.RWMutex{}
		s.agentLocks[agent] = l
	}
	return l
}

func (s *Store) filename(agent string) string {
	return agent + ".json"
}

func (s *Store) lockPath(agent string) string {
	return s.ds.FilePath("", agent+".json.lock")
}

// Load reads an agent's document, creating an empty one if none exists
// yet. A JSON parse failure is treated as corruption: the document is
// reinitialized once rather than propagated as an error (§7 local
// recovery rule).
func (s *Store) Load(agent string) (*Document, error) {
	l := s.lockFor(agent)
	l.RLock()
	defer l.RUnlock()
	return s.loadLocked(agent)
}

func (s *Store) loadLocked(agent string) (*Document, error) {
	if err := s.ds.EnsureDir(""); err != nil {
		return nil, ozerrors.New(ozerrors.MemoryError, agent, err.Error())
	}

	fl, err := dirstore.LockShared(s.lockPath(agent))
	if err != nil {
		return nil, ozerrors.New(ozerrors.MemoryError, agent, fmt.Sprintf("lock memory: %v", err))
	}
	defer fl.Close()

	data, err := s.ds.ReadFileContent("", s.filename(agent))
	if err != nil {
		return nil, ozerrors.New(ozerrors.MemoryError, agent, err.Error())
	}
	if data == nil {
		now := time.Now()
		return &Document{AgentName: agent, CreatedAt: now, UpdatedAt: now, Data: map[string]any{}}, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		// Corrupt document: reinitialize once, per the local-recovery rule.
		now := time.Now()
		return &Document{AgentName: agent, CreatedAt: now, UpdatedAt: now, Data: map[string]any{}}, nil
	}
	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	return &doc, nil
}

// SizeBytes reports the on-disk serialized size of an agent's document
// without fully deserializing it (used for the out-of-band-corruption
// guard at task start).
func (s *Store) SizeBytes(agent string) (int64, error) {
	data, err := s.ds.ReadFileContent("", s.filename(agent))
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Save atomically persists doc, enforcing the size cap and the
// secret-prefix lint on all data keys.
func (s *Store) Save(doc *Document) error {
	l := s.lockFor(doc.AgentName)
	l.Lock()
	defer l.Unlock()
	return s.saveLocked(doc)
}

func (s *Store) saveLocked(doc *Document) error {
	for k := range doc.Data {
		if isSecretLike(k) {
			return ozerrors.New(ozerrors.MemoryError, doc.AgentName,
				fmt.Sprintf("key %q looks like a secret; refusing to persist", k))
		}
	}

	trimHistory(doc)
	doc.UpdatedAt = time.Now()

	data, err := json.Marshal(doc)
	if err != nil {
		return ozerrors.New(ozerrors.MemoryError, doc.AgentName, err.Error())
	}
	if int64(len(data)) > s.limitBytes {
		return ozerrors.New(ozerrors.MemoryError, doc.AgentName,
			fmt.Sprintf("document size %d exceeds limit %d", len(data), s.limitBytes)).
			WithDetails(map[string]any{"size_bytes": len(data), "limit_bytes": s.limitBytes})
	}

	if err := s.ds.EnsureDir(""); err != nil {
		return ozerrors.New(ozerrors.MemoryError, doc.AgentName, err.Error())
	}

	fl, err := dirstore.LockExclusive(s.lockPath(doc.AgentName))
	if err != nil {
		return ozerrors.New(ozerrors.MemoryError, doc.AgentName, fmt.Sprintf("lock memory: %v", err))
	}
	defer fl.Close()

	if err := s.ds.WriteFileAtomic("", s.filename(doc.AgentName), data); err != nil {
		return ozerrors.New(ozerrors.MemoryError, doc.AgentName, err.Error())
	}
	return nil
}

func isSecretLike(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range secretPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func trimHistory(doc *Document) {
	if len(doc.History) > maxHistoryEntries {
		doc.History = doc.History[len(doc.History)-maxHistoryEntries:]
	}
}

// Get returns the value for key, or def if absent.
func (s *Store) Get(agent, key string, def any) (any, error) {
	doc, err := s.Load(agent)
	if err != nil {
		return nil, err
	}
	if v, ok := doc.Data[key]; ok {
		return v, nil
	}
	return def, nil
}

// Set stores value under key, read-modify-write, serialized per agent.
func (s *Store) Set(agent, key string, value any) error {
	l := s.lockFor(agent)
	l.Lock()
	defer l.Unlock()

	doc, err := s.loadLocked(agent)
	if err != nil {
		return err
	}
	doc.Data[key] = value
	return s.saveLocked(doc)
}

// AppendHistory appends entry to an agent's history, bounding it to the
// most recent 1000 entries (FIFO eviction).
func (s *Store) AppendHistory(agent string, entry HistoryEntry) error {
	l := s.lockFor(agent)
	l.Lock()
	defer l.Unlock()

	doc, err := s.loadLocked(agent)
	if err != nil {
		return err
	}
	doc.History = append(doc.History, entry)
	return s.saveLocked(doc)
}

// Clear resets an agent's document to an empty data map and history.
func (s *Store) Clear(agent string) error {
	l := s.lockFor(agent)
	l.Lock()
	defer l.Unlock()

	now := time.Now()
	return s.saveLocked(&Document{AgentName: agent, CreatedAt: now, UpdatedAt: now, Data: map[string]any{}})
}

// Stats reports summary statistics for an agent's document.
func (s *Store) Stats(agent string) (*Stats, error) {
	doc, err := s.Load(agent)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(doc.Data))
	for k := range doc.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Stats{
		AgentName:    agent,
		SizeBytes:    int64(len(data)),
		KeyCount:     len(keys),
		HistoryCount: len(doc.History),
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}
