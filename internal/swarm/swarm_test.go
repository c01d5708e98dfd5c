package swarm

import (
	"testing"
	"time"
)

func TestEmitReinforcesInsteadOfDuplicating(t *testing.T) {
	board := NewBoard(t.TempDir())
	emitter := NewEmitter(board, "build_agent")

	for i := 0; i < 3; i++ {
		if _, err := emitter.ReportSuccess("pkg.install", map[string]any{"iteration": i}); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}

	signals, err := board.Sense(SenseFilter{Types: []SignalType{TypeSuccess}, Target: "pkg.install"})
	if err != nil {
		t.Fatalf("sense: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected exactly one signal, got %d", len(signals))
	}
	if signals[0].ReinforcementCount != 2 {
		t.Errorf("expected reinforcement_count 2 after 3 emits, got %d", signals[0].ReinforcementCount)
	}
}

func TestExpiredSignalsNeverReturnedBySense(t *testing.T) {
	board := NewBoard(t.TempDir())
	sig, err := board.Emit(TypeWorking, "agent_a", "task_x", nil, 0.8, 1)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	sig.CreatedAt = time.Now().Add(-10 * time.Second)
	if err := board.saveSignal(sig); err != nil {
		t.Fatalf("save: %v", err)
	}

	signals, err := board.Sense(SenseFilter{Target: "task_x"})
	if err != nil {
		t.Fatalf("sense: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("expected expired signal to be filtered, got %d", len(signals))
	}
}

func TestClearThenSenseReturnsEmpty(t *testing.T) {
	board := NewBoard(t.TempDir())
	if _, err := board.Emit(TypeSuccess, "a", "t", nil, 0, 0); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if err := board.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	signals, err := board.Sense(SenseFilter{})
	if err != nil {
		t.Fatalf("sense: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("expected empty board after clear, got %d", len(signals))
	}
}

func TestConsensusProceedWhenPositiveDominates(t *testing.T) {
	board := NewBoard(t.TempDir())
	if _, err := board.Emit(TypeSuccess, "a", "target", nil, 1.0, 0); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if _, err := board.Emit(TypePathClear, "b", "target", nil, 1.0, 0); err != nil {
		t.Fatalf("emit: %v", err)
	}

	c, err := board.Consensus("target")
	if err != nil {
		t.Fatalf("consensus: %v", err)
	}
	if c.Recommendation != "proceed" {
		t.Errorf("expected proceed, got %s (net %f)", c.Recommendation, c.PositiveScore-c.NegativeScore)
	}
}

func TestConsensusAvoidWhenNegativeDominates(t *testing.T) {
	board := NewBoard(t.TempDir())
	if _, err := board.Emit(TypeFailure, "a", "target", nil, 1.0, 0); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if _, err := board.Emit(TypeDanger, "b", "target", nil, 1.0, 0); err != nil {
		t.Fatalf("emit: %v", err)
	}

	c, err := board.Consensus("target")
	if err != nil {
		t.Fatalf("consensus: %v", err)
	}
	if c.Recommendation != "avoid" {
		t.Errorf("expected avoid, got %s", c.Recommendation)
	}
}

func TestConsensusExploreWhenNoSignals(t *testing.T) {
	board := NewBoard(t.TempDir())
	c, err := board.Consensus("nothing_here")
	if err != nil {
		t.Fatalf("consensus: %v", err)
	}
	if c.Recommendation != "explore" {
		t.Errorf("expected explore for unsensed target, got %s", c.Recommendation)
	}
}

func TestConsensusCautionOnNearBalance(t *testing.T) {
	board := NewBoard(t.TempDir())
	if _, err := board.Emit(TypeSuccess, "a", "target", nil, 0.5, 0); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if _, err := board.Emit(TypeFailure, "b", "target", nil, 0.4, 0); err != nil {
		t.Fatalf("emit: %v", err)
	}

	c, err := board.Consensus("target")
	if err != nil {
		t.Fatalf("consensus: %v", err)
	}
	if c.Recommendation != "caution" {
		t.Errorf("expected caution for near-balanced signals, got %s", c.Recommendation)
	}
}

func TestDecayAllReducesStrengthAndRemovesWeak(t *testing.T) {
	board := NewBoard(t.TempDir())
	if _, err := board.Emit(TypeWorking, "a", "task", nil, 0.08, 3600); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if _, err := board.Emit(TypeWorking, "b", "other", nil, 0.9, 3600); err != nil {
		t.Fatalf("emit: %v", err)
	}

	counts, err := board.DecayAll()
	if err != nil {
		t.Fatalf("decay: %v", err)
	}
	if counts.Removed != 1 {
		t.Errorf("expected the weak signal to be removed, got removed=%d", counts.Removed)
	}
	if counts.Decayed != 1 {
		t.Errorf("expected the strong signal to decay in place, got decayed=%d", counts.Decayed)
	}

	remaining, err := board.Sense(SenseFilter{Target: "other"})
	if err != nil {
		t.Fatalf("sense: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Strength >= 0.9 {
		t.Errorf("expected remaining signal to have decayed strength, got %+v", remaining)
	}
}

func TestIsTaskClaimedExcludesOwnAgent(t *testing.T) {
	board := NewBoard(t.TempDir())
	emitter := NewEmitter(board, "agent_a")
	if _, err := emitter.ClaimTask("shared_task", 60); err != nil {
		t.Fatalf("claim: %v", err)
	}

	selfSensor := NewSensor(board, "agent_a")
	claimed, _, err := selfSensor.IsTaskClaimed("shared_task")
	if err != nil {
		t.Fatalf("is claimed: %v", err)
	}
	if claimed {
		t.Errorf("agent should not see its own claim as a conflict")
	}

	otherSensor := NewSensor(board, "agent_b")
	claimed, by, err := otherSensor.IsTaskClaimed("shared_task")
	if err != nil {
		t.Fatalf("is claimed: %v", err)
	}
	if !claimed || by != "agent_a" {
		t.Errorf("expected agent_b to see agent_a's claim, got claimed=%v by=%q", claimed, by)
	}
}

func TestShouldProceedWaitsOnClaim(t *testing.T) {
	board := NewBoard(t.TempDir())
	emitter := NewEmitter(board, "agent_a")
	if _, err := emitter.ClaimTask("shared_task", 60); err != nil {
		t.Fatalf("claim: %v", err)
	}

	sensor := NewSensor(board, "agent_b")
	rec, err := sensor.ShouldProceed("shared_task")
	if err != nil {
		t.Fatalf("should proceed: %v", err)
	}
	if rec.Proceed {
		t.Errorf("expected agent_b to wait on agent_a's claim")
	}
	if rec.Action != "wait_or_help" {
		t.Errorf("expected wait_or_help action, got %q", rec.Action)
	}
}

func TestFindHelpRequestsFiltersByCapability(t *testing.T) {
	board := NewBoard(t.TempDir())
	emitter := NewEmitter(board, "agent_a")
	if _, err := emitter.RequestHelp("stuck_task", "need a hand", []string{"exec.build"}); err != nil {
		t.Fatalf("request help: %v", err)
	}

	sensor := NewSensor(board, "agent_b")
	matches, err := sensor.FindHelpRequests([]string{"exec.build"})
	if err != nil {
		t.Fatalf("find help: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one matching help request, got %d", len(matches))
	}

	noMatches, err := sensor.FindHelpRequests([]string{"filesystem.read"})
	if err != nil {
		t.Fatalf("find help: %v", err)
	}
	if len(noMatches) != 0 {
		t.Errorf("expected no match for unrelated capability, got %d", len(noMatches))
	}
}
