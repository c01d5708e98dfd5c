package swarm

import "time"

// Emitter offers semantic, single-purpose helpers over Board.Emit so
// callers don't have to remember each signal type's strength/ttl
// convention.
type Emitter struct {
	board *Board
	agent string
}

// NewEmitter binds an Emitter to agent's name.
func NewEmitter(board *Board, agent string) *Emitter {
	return &Emitter{board: board, agent: agent}
}

func timestamped(data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	data["timestamp"] = time.Now().Unix()
	return data
}

// ReportSuccess signals successful completion of target.
func (e *Emitter) ReportSuccess(target string, details map[string]any) (*Signal, error) {
	return e.board.Emit(TypeSuccess, e.agent, target, timestamped(map[string]any{"details": details}), 0, 0)
}

// ReportFailure signals failure on target.
func (e *Emitter) ReportFailure(target, errMsg string, recoverable bool) (*Signal, error) {
	data := timestamped(map[string]any{"error": errMsg, "recoverable": recoverable})
	return e.board.Emit(TypeFailure, e.agent, target, data, 0, 0)
}

// ReportBlocked signals a blocked approach; lasts 2 hours.
func (e *Emitter) ReportBlocked(target, reason string) (*Signal, error) {
	data := timestamped(map[string]any{"reason": reason})
	return e.board.Emit(TypeBlocked, e.agent, target, data, 0, 7200)
}

// ReportDanger signals a dangerous condition at max strength; lasts 24 hours.
func (e *Emitter) ReportDanger(target, severity, description string) (*Signal, error) {
	data := timestamped(map[string]any{"severity": severity, "description": description})
	return e.board.Emit(TypeDanger, e.agent, target, data, 1.0, 86400)
}

// ClaimTask claims exclusive work on target; ttl is 2x estimatedDuration.
func (e *Emitter) ClaimTask(target string, estimatedDurationSeconds int) (*Signal, error) {
	data := map[string]any{"estimated_duration": estimatedDurationSeconds, "started_at": time.Now().Unix()}
	return e.board.Emit(TypeClaiming, e.agent, target, data, 0, estimatedDurationSeconds*2)
}

// ReleaseTask releases a claim; short-lived (60s).
func (e *Emitter) ReleaseTask(target, reason string) (*Signal, error) {
	if reason == "" {
		reason = "completed"
	}
	data := timestamped(map[string]any{"reason": reason})
	return e.board.Emit(TypeReleasing, e.agent, target, data, 0, 60)
}

// ReportWorking signals active work on target; expires quickly (120s)
// unless refreshed by a subsequent call (which reinforces).
func (e *Emitter) ReportWorking(target string) (*Signal, error) {
	data := timestamped(map[string]any{})
	return e.board.Emit(TypeWorking, e.agent, target, data, 0, 120)
}

// RequestHelp asks for help at max strength; lasts 30 minutes.
func (e *Emitter) RequestHelp(target, problem string, neededCapabilities []string) (*Signal, error) {
	if neededCapabilities == nil {
		neededCapabilities = []string{}
	}
	data := timestamped(map[string]any{"problem": problem, "needed_capabilities": neededCapabilities})
	return e.board.Emit(TypeHelpNeeded, e.agent, target, data, 1.0, 1800)
}

// ShareDiscovery shares a learned resource/pattern; lasts 12 hours.
func (e *Emitter) ShareDiscovery(target, discoveryType string, details map[string]any) (*Signal, error) {
	data := timestamped(map[string]any{"discovery_type": discoveryType, "details": details})
	return e.board.Emit(TypeLearned, e.agent, target, data, 0, 43200)
}

// ReportOptimization reports an improvement to an approach.
func (e *Emitter) ReportOptimization(target, improvement string, metrics map[string]any) (*Signal, error) {
	data := timestamped(map[string]any{"improvement": improvement, "metrics": metrics})
	return e.board.Emit(TypeOptimized, e.agent, target, data, 0, 0)
}

// MarkDeprecated marks target as deprecated; lasts 24 hours.
func (e *Emitter) MarkDeprecated(target, reason, replacement string) (*Signal, error) {
	data := timestamped(map[string]any{"reason": reason, "replacement": replacement})
	return e.board.Emit(TypeDeprecated, e.agent, target, data, 0, 86400)
}

// ReportResource shares a found resource.
func (e *Emitter) ReportResource(target, resourceType, location string, metadata map[string]any) (*Signal, error) {
	data := timestamped(map[string]any{"resource_type": resourceType, "location": location, "metadata": metadata})
	return e.board.Emit(TypeResourceFound, e.agent, target, data, 0, 0)
}
