package swarm

// Sensor offers pattern-based interpretation over Board.Sense and
// Board.Consensus: claim checks, proceed/avoid recommendations, and
// filtered views of the board for common agent questions.
type Sensor struct {
	board *Board
	agent string
}

// NewSensor binds a Sensor to agent's name (used to exclude the
// agent's own claims from IsTaskClaimed).
func NewSensor(board *Board, agent string) *Sensor {
	return &Sensor{board: board, agent: agent}
}

// IsTaskClaimed reports whether another agent currently claims or is
// working on target.
func (s *Sensor) IsTaskClaimed(target string) (claimed bool, byAgent string, err error) {
	claims, err := s.board.Sense(SenseFilter{
		Types:       []SignalType{TypeClaiming, TypeWorking},
		Target:      target,
		MinStrength: 0.3,
	})
	if err != nil {
		return false, "", err
	}
	for _, c := range claims {
		if c.SourceAgent != s.agent {
			return true, c.SourceAgent, nil
		}
	}
	return false, "", nil
}

// Recommendation is the combined claim+consensus verdict for a target.
type Recommendation struct {
	Proceed   bool       `json:"proceed"`
	Reason    string     `json:"reason"`
	Action    string     `json:"action"`
	Consensus *Consensus `json:"consensus,omitempty"`
}

// ShouldProceed combines a claim check with consensus to recommend
// whether the agent should proceed against target.
func (s *Sensor) ShouldProceed(target string) (*Recommendation, error) {
	claimed, claimer, err := s.IsTaskClaimed(target)
	if err != nil {
		return nil, err
	}
	if claimed {
		return &Recommendation{Proceed: false, Reason: "claimed by " + claimer, Action: "wait_or_help"}, nil
	}

	consensus, err := s.board.Consensus(target)
	if err != nil {
		return nil, err
	}

	if consensus.Sentiment == "negative" && consensus.Confidence > 0.5 {
		return &Recommendation{Proceed: false, Reason: "swarm reports failures", Action: "investigate", Consensus: consensus}, nil
	}
	if consensus.Sentiment == "unknown" {
		return &Recommendation{Proceed: true, Reason: "unexplored territory", Action: "explore_cautiously", Consensus: consensus}, nil
	}
	return &Recommendation{Proceed: true, Reason: consensus.Recommendation, Action: consensus.Recommendation, Consensus: consensus}, nil
}

// FindHelpRequests returns outstanding help requests, optionally
// filtered to those whose needed_capabilities intersect capabilities
// (a request with no declared capabilities matches everyone).
func (s *Sensor) FindHelpRequests(capabilities []string) ([]*Signal, error) {
	helpSignals, err := s.board.Sense(SenseFilter{Types: []SignalType{TypeHelpNeeded}, MinStrength: 0.2})
	if err != nil {
		return nil, err
	}
	if len(capabilities) == 0 {
		return helpSignals, nil
	}

	have := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		have[c] = struct{}{}
	}

	var matching []*Signal
	for _, sig := range helpSignals {
		needed, _ := sig.Data["needed_capabilities"].([]any)
		if len(needed) == 0 {
			matching = append(matching, sig)
			continue
		}
		for _, n := range needed {
			if nc, ok := n.(string); ok {
				if _, ok := have[nc]; ok {
					matching = append(matching, sig)
					break
				}
			}
		}
	}
	return matching, nil
}

// GetSuccessfulApproaches returns positive signals about target.
func (s *Sensor) GetSuccessfulApproaches(target string) ([]*Signal, error) {
	return s.board.Sense(SenseFilter{
		Types:       []SignalType{TypeSuccess, TypePathClear, TypeOptimized},
		Target:      target,
		MinStrength: 0.2,
	})
}

// GetFailures returns failure/blocked signals about target.
func (s *Sensor) GetFailures(target string) ([]*Signal, error) {
	return s.board.Sense(SenseFilter{
		Types:       []SignalType{TypeFailure, TypeBlocked},
		Target:      target,
		MinStrength: 0.1,
	})
}

// GetDangers returns danger signals, optionally filtered by target
// (pass "" for every danger signal on the board).
func (s *Sensor) GetDangers(target string) ([]*Signal, error) {
	return s.board.Sense(SenseFilter{Types: []SignalType{TypeDanger}, Target: target, MinStrength: 0.3})
}

// GetDiscoveries returns recent learned/optimized/resource_found signals.
func (s *Sensor) GetDiscoveries(limit int) ([]*Signal, error) {
	return s.board.Sense(SenseFilter{
		Types:       []SignalType{TypeLearned, TypeOptimized, TypeResourceFound},
		MinStrength: 0.3,
		Limit:       limit,
	})
}

// GetDeprecations returns deprecation notices.
func (s *Sensor) GetDeprecations() ([]*Signal, error) {
	return s.board.Sense(SenseFilter{Types: []SignalType{TypeDeprecated}, MinStrength: 0.2})
}

// Activity summarizes which agents are currently working on what.
type Activity struct {
	ActiveAgentCount  int                 `json:"active_agent_count"`
	ActiveTargetCount int                 `json:"active_target_count"`
	Agents            map[string][]string `json:"agents"`
	Targets           map[string][]string `json:"targets"`
}

// GetSwarmActivity reports an overview of working/claiming signals
// across the whole board.
func (s *Sensor) GetSwarmActivity() (*Activity, error) {
	working, err := s.board.Sense(SenseFilter{Types: []SignalType{TypeWorking, TypeClaiming}})
	if err != nil {
		return nil, err
	}

	activeAgents := map[string][]string{}
	activeTargets := map[string][]string{}
	for _, sig := range working {
		activeAgents[sig.SourceAgent] = append(activeAgents[sig.SourceAgent], sig.Target)
		activeTargets[sig.Target] = append(activeTargets[sig.Target], sig.SourceAgent)
	}

	return &Activity{
		ActiveAgentCount:  len(activeAgents),
		ActiveTargetCount: len(activeTargets),
		Agents:            activeAgents,
		Targets:           activeTargets,
	}, nil
}
