package swarm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dohr-michael/ozymandias/internal/dirstore"
)

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

const (
	decayRate       = 0.05
	weakThreshold   = 0.1
	decayInterval   = 300 * time.Second
	defaultStrength = 1.0
	defaultTTL      = 3600
	indexFilename   = "index.json"
)

// indexEntry is the lightweight per-signal record kept in index.json for
// fast filtering without reading every signal file.
type indexEntry struct {
	Type        SignalType `json:"signal_type"`
	SourceAgent string     `json:"source_agent"`
	Target      string     `json:"target"`
	CreatedAt   time.Time  `json:"created_at"`
}

type signalIndex struct {
	Signals   map[string]indexEntry `json:"signals"`
	LastDecay time.Time             `json:"last_decay"`
}

// Board is the filesystem-backed signal store rooted at a swarm
// directory (typically config.SwarmDir()).
type Board struct {
	ds *dirstore.DirStore
	mu sync.Mutex
}

// NewBoard builds a Board rooted at dir.
func NewBoard(dir string) *Board {
	return &Board{ds: dirstore.NewDirStore(dir, "swarm")}
}

func (b *Board) indexLockPath() string {
	return filepath.Join(b.ds.BaseDir(), "index.lock")
}

func (b *Board) signalsDir() string {
	return "signals"
}

func (b *Board) readIndex() (*signalIndex, error) {
	var idx signalIndex
	ok, err := b.ds.ReadJSON("", indexFilename, &idx)
	if err != nil || !ok {
		return &signalIndex{Signals: map[string]indexEntry{}, LastDecay: time.Now()}, nil
	}
	if idx.Signals == nil {
		idx.Signals = map[string]indexEntry{}
	}
	return &idx, nil
}

func (b *Board) writeIndex(idx *signalIndex) error {
	if err := b.ds.EnsureDir(""); err != nil {
		return err
	}
	return b.ds.WriteJSONAtomic("", indexFilename, idx)
}

func (b *Board) loadSignal(id string) (*Signal, error) {
	var sig Signal
	ok, err := b.ds.ReadJSON(b.signalsDir(), id+".json", &sig)
	if err != nil || !ok {
		return nil, err
	}
	return &sig, nil
}

func (b *Board) saveSignal(sig *Signal) error {
	if err := b.ds.EnsureDir(b.signalsDir()); err != nil {
		return err
	}
	return b.ds.WriteJSONAtomic(b.signalsDir(), sig.ID+".json", sig)
}

func (b *Board) deleteSignal(id string) {
	_ = removeIfExists(filepath.Join(b.ds.BaseDir(), b.signalsDir(), id+".json"))
}

// Emit inserts a new signal, or reinforces an existing one with the
// same (type, source_agent, target) triple.
func (b *Board) Emit(sigType SignalType, sourceAgent, target string, data map[string]any, strength float64, ttlSeconds int) (*Signal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fl, err := dirstore.LockExclusive(b.indexLockPath())
	if err != nil {
		return nil, fmt.Errorf("lock swarm index: %w", err)
	}
	defer fl.Close()

	idx, err := b.readIndex()
	if err != nil {
		return nil, err
	}

	for id, meta := range idx.Signals {
		if meta.Type == sigType && meta.SourceAgent == sourceAgent && meta.Target == target {
			sig, err := b.loadSignal(id)
			if err != nil || sig == nil {
				continue
			}
			sig.reinforce(data)
			if err := b.saveSignal(sig); err != nil {
				return nil, err
			}
			return sig, nil
		}
	}

	if strength <= 0 {
		strength = defaultStrength
	}
	if ttlSeconds <= 0 {
		ttlSeconds = defaultTTL
	}
	if data == nil {
		data = map[string]any{}
	}

	now := time.Now()
	sig := &Signal{
		ID:          uuid.NewString()[:8],
		Type:        sigType,
		SourceAgent: sourceAgent,
		Target:      target,
		Strength:    clamp(strength, 0, 1),
		Data:        data,
		CreatedAt:   now,
		UpdatedAt:   now,
		TTLSeconds:  ttlSeconds,
	}
	if err := b.saveSignal(sig); err != nil {
		return nil, err
	}

	idx.Signals[sig.ID] = indexEntry{Type: sigType, SourceAgent: sourceAgent, Target: target, CreatedAt: now}
	if err := b.writeIndex(idx); err != nil {
		return nil, err
	}
	return sig, nil
}

// SenseFilter narrows a Sense call.
type SenseFilter struct {
	Types       []SignalType
	Target      string
	MinStrength float64
	Limit       int
}

// Sense lazily triggers a decay cycle if enough time has passed, then
// returns signals matching filter, strongest first.
func (b *Board) Sense(filter SenseFilter) ([]*Signal, error) {
	b.mu.Lock()
	b.maybeDecayLocked()
	b.mu.Unlock()

	fl, err := dirstore.LockShared(b.indexLockPath())
	if err != nil {
		return nil, fmt.Errorf("lock swarm index: %w", err)
	}
	defer fl.Close()

	idx, err := b.readIndex()
	if err != nil {
		return nil, err
	}

	typeSet := make(map[SignalType]struct{}, len(filter.Types))
	for _, t := range filter.Types {
		typeSet[t] = struct{}{}
	}

	var out []*Signal
	for id := range idx.Signals {
		sig, err := b.loadSignal(id)
		if err != nil || sig == nil {
			continue
		}
		if sig.Expired() || sig.Strength < filter.MinStrength {
			continue
		}
		if len(typeSet) > 0 {
			if _, ok := typeSet[sig.Type]; !ok {
				continue
			}
		}
		if filter.Target != "" && sig.Target != filter.Target {
			continue
		}
		out = append(out, sig)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Consensus summarizes signals about target into a verdict.
type Consensus struct {
	Sentiment      string  `json:"sentiment"`
	Confidence     float64 `json:"confidence"`
	Recommendation string  `json:"recommendation"`
	SignalsCount   int     `json:"signals_count"`
	PositiveScore  float64 `json:"positive_score"`
	NegativeScore  float64 `json:"negative_score"`
}

// Consensus computes the §4.8 verdict for target: net = positive -
// negative score; net > 0.5 => proceed, net < -0.5 => avoid, else
// caution; no signals at all => explore. Confidence = min(1,
// count/10).
func (b *Board) Consensus(target string) (*Consensus, error) {
	signals, err := b.Sense(SenseFilter{Target: target})
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return &Consensus{Sentiment: "unknown", Recommendation: "explore"}, nil
	}

	var pos, neg float64
	for _, s := range signals {
		if _, ok := positiveTypes[s.Type]; ok {
			pos += s.Strength
		} else if _, ok := negativeTypes[s.Type]; ok {
			neg += s.Strength
		}
	}

	net := pos - neg
	c := &Consensus{
		SignalsCount:  len(signals),
		PositiveScore: pos,
		NegativeScore: neg,
		Confidence:    minFloat(1.0, float64(len(signals))/10.0),
	}
	switch {
	case net > 0.5:
		c.Sentiment, c.Recommendation = "positive", "proceed"
	case net < -0.5:
		c.Sentiment, c.Recommendation = "negative", "avoid"
	default:
		c.Sentiment, c.Recommendation = "neutral", "caution"
	}
	return c, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// DecayCounts reports the outcome of a decay cycle.
type DecayCounts struct {
	Decayed int `json:"decayed"`
	Removed int `json:"removed"`
}

// DecayAll runs one decay cycle unconditionally (ignoring the cadence
// gate maybeDecayLocked applies from Sense).
func (b *Board) DecayAll() (*DecayCounts, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.decayLocked()
}

func (b *Board) maybeDecayLocked() {
	idx, err := b.readIndex()
	if err != nil {
		return
	}
	if time.Since(idx.LastDecay) < decayInterval {
		return
	}
	_, _ = b.decayLocked()
}

func (b *Board) decayLocked() (*DecayCounts, error) {
	fl, err := dirstore.LockExclusive(b.indexLockPath())
	if err != nil {
		return nil, fmt.Errorf("lock swarm index: %w", err)
	}
	defer fl.Close()

	idx, err := b.readIndex()
	if err != nil {
		return nil, err
	}

	counts := &DecayCounts{}
	for id := range idx.Signals {
		sig, err := b.loadSignal(id)
		if err != nil || sig == nil {
			delete(idx.Signals, id)
			continue
		}
		if sig.Expired() || sig.Weak(weakThreshold) {
			b.deleteSignal(id)
			delete(idx.Signals, id)
			counts.Removed++
			continue
		}
		sig.decay(decayRate)
		if err := b.saveSignal(sig); err != nil {
			return nil, err
		}
		counts.Decayed++
	}

	idx.LastDecay = time.Now()
	if err := b.writeIndex(idx); err != nil {
		return nil, err
	}
	return counts, nil
}

// Clear removes every signal from the board.
func (b *Board) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	fl, err := dirstore.LockExclusive(b.indexLockPath())
	if err != nil {
		return fmt.Errorf("lock swarm index: %w", err)
	}
	defer fl.Close()

	idx, err := b.readIndex()
	if err != nil {
		return err
	}
	for id := range idx.Signals {
		b.deleteSignal(id)
	}
	return b.writeIndex(&signalIndex{Signals: map[string]indexEntry{}, LastDecay: time.Now()})
}

// Stats summarizes the board's current state.
type Stats struct {
	TotalSignals int            `json:"total_signals"`
	ByType       map[string]int `json:"by_type"`
	LastDecay    time.Time      `json:"last_decay"`
}

// Stats reports summary counts over every non-expired signal.
func (b *Board) Stats() (*Stats, error) {
	signals, err := b.Sense(SenseFilter{Limit: 1 << 30})
	if err != nil {
		return nil, err
	}
	idx, err := b.readIndex()
	if err != nil {
		return nil, err
	}
	st := &Stats{TotalSignals: len(signals), ByType: map[string]int{}, LastDecay: idx.LastDecay}
	for _, s := range signals {
		st.ByType[string(s.Type)]++
	}
	return st, nil
}
