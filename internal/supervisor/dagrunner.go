package supervisor

import (
	"context"

	"github.com/dohr-michael/ozymandias/internal/dag"
	"github.com/dohr-michael/ozymandias/internal/ozerrors"
)

// DAGRunner returns a dag.Runner that executes each node as an
// ordinary task call through RunTask, giving the DAG orchestrator
// access to the same ten-step pipeline (capability gating, sandbox,
// memory, history) every other task call goes through.
func (s *Supervisor) DAGRunner() dag.Runner {
	return func(ctx context.Context, n *dag.Node) (any, bool, error) {
		result := s.RunTask(ctx, n.Agent, n.Task, n.Args)
		if result.Status == "success" {
			return result.Result, true, nil
		}
		if result.Error == nil {
			return result.Result, false, nil
		}
		rec := ozerrors.New(ozerrors.Kind(result.Error.ErrorType), result.Error.Agent, result.Error.Message).
			WithDetails(result.Error.Details)
		if result.Error.Required != "" {
			rec = rec.WithRequired(result.Error.Required)
		}
		return result.Result, false, rec
	}
}
