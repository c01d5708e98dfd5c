package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dohr-michael/ozymandias/internal/ozerrors"
)

func TestSetThenGetRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir(), 1_048_576)
	if err := s.Set("agent1", "color", "blue"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := s.Get("agent1", "color", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "blue" {
		t.Errorf("expected blue, got %v", v)
	}
}

func TestGetMissingKeyReturnsDefault(t *testing.T) {
	s := NewStore(t.TempDir(), 1_048_576)
	v, err := s.Get("agent1", "nope", "fallback")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "fallback" {
		t.Errorf("expected fallback, got %v", v)
	}
}

func TestSetRejectsSecretLikeKeys(t *testing.T) {
	s := NewStore(t.TempDir(), 1_048_576)
	err := s.Set("agent1", "API_KEY_prod", "xyz")
	if err == nil {
		t.Fatal("expected rejection of secret-like key")
	}
	var rec *ozerrors.Record
	if !asRecord(err, &rec) || rec.Kind != ozerrors.MemoryError {
		t.Errorf("expected memory_error, got %v", err)
	}
}

func TestSaveRejectsOversizedDocument(t *testing.T) {
	s := NewStore(t.TempDir(), 1_048_576)
	doc, err := s.Load("agent1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	doc.Data["blob"] = strings.Repeat("x", 1_200_000)

	err = s.Save(doc)
	if err == nil {
		t.Fatal("expected size-cap rejection")
	}
	var rec *ozerrors.Record
	if !asRecord(err, &rec) {
		t.Fatalf("expected *ozerrors.Record, got %v", err)
	}
	if rec.Kind != ozerrors.MemoryError {
		t.Errorf("expected memory_error, got %s", rec.Kind)
	}
	size, _ := rec.Details["size_bytes"].(int)
	if size < 1_200_000 || size > 1_300_000 {
		t.Errorf("expected size_bytes near 1.2e6, got %v", rec.Details["size_bytes"])
	}
}

func TestAppendHistoryEvictsOldestBeyond1000(t *testing.T) {
	s := NewStore(t.TempDir(), 8*1_048_576)
	for i := 0; i < 1005; i++ {
		entry := HistoryEntry{Task: "fs.list_dir", TaskID: string(rune('a' + i%26)), Success: true, CompletedAt: time.Unix(int64(i), 0)}
		if err := s.AppendHistory("agent1", entry); err != nil {
			t.Fatalf("append history %d: %v", i, err)
		}
	}
	doc, err := s.Load("agent1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.History) != maxHistoryEntries {
		t.Fatalf("expected %d history entries, got %d", maxHistoryEntries, len(doc.History))
	}
	if doc.History[0].CompletedAt.Unix() != 5 {
		t.Errorf("expected oldest 5 entries evicted, first remaining is at unix %d", doc.History[0].CompletedAt.Unix())
	}
}

func TestClearResetsDocument(t *testing.T) {
	s := NewStore(t.TempDir(), 1_048_576)
	_ = s.Set("agent1", "k", "v")
	_ = s.AppendHistory("agent1", HistoryEntry{Task: "x", Success: true})

	if err := s.Clear("agent1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	doc, err := s.Load("agent1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Data) != 0 || len(doc.History) != 0 {
		t.Errorf("expected cleared document, got data=%v history=%v", doc.Data, doc.History)
	}
}

func TestStatsReportsCounts(t *testing.T) {
	s := NewStore(t.TempDir(), 1_048_576)
	_ = s.Set("agent1", "a", 1)
	_ = s.Set("agent1", "b", 2)
	_ = s.AppendHistory("agent1", HistoryEntry{Task: "x", Success: true})

	stats, err := s.Stats("agent1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.KeyCount != 2 {
		t.Errorf("expected 2 keys, got %d", stats.KeyCount)
	}
	if stats.HistoryCount != 1 {
		t.Errorf("expected 1 history entry, got %d", stats.HistoryCount)
	}
	if stats.SizeBytes <= 0 {
		t.Errorf("expected positive size, got %d", stats.SizeBytes)
	}
}

func TestLoadOfMissingAgentYieldsEmptyDocument(t *testing.T) {
	s := NewStore(t.TempDir(), 1_048_576)
	doc, err := s.Load("never-seen")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.AgentName != "never-seen" || len(doc.Data) != 0 {
		t.Errorf("expected fresh empty document, got %+v", doc)
	}
}

func TestLockFilePlacedAlongsideDocument(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 1_048_576)
	_ = s.Set("agent1", "k", "v")

	expected := filepath.Join(dir, "agent1.json")
	data, err := s.SizeBytes("agent1")
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if data == 0 {
		t.Errorf("expected non-empty document at %s", expected)
	}
	if _, err := os.Stat(expected + ".lock"); err != nil {
		t.Errorf("expected lock file beside %s: %v", expected, err)
	}
}

func asRecord(err error, out **ozerrors.Record) bool {
	rec, ok := err.(*ozerrors.Record)
	if !ok {
		return false
	}
	*out = rec
	return true
}
