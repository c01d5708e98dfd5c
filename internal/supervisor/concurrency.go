package supervisor

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrentTasks bounds the worker pool RunTasksConcurrently
// uses, per §5's "bounded worker pool" requirement. The DAG orchestrator
// bounds its waves separately, with dag.DefaultMaxWaveConcurrency.
const DefaultMaxConcurrentTasks = 8

// TaskCall is one task invocation to run as part of a concurrent batch.
type TaskCall struct {
	Agent string
	Task  string
	Args  map[string]any
}

// RunTasksConcurrently runs calls on a worker pool bounded to maxWorkers
// (DefaultMaxConcurrentTasks if <= 0), returning one TaskResult per call
// in the same order as calls. Each per-agent serialization point
// (memory, sandbox, log) still applies within the individual RunTask
// calls; this only bounds how many run at once.
func (s *Supervisor) RunTasksConcurrently(ctx context.Context, calls []TaskCall, maxWorkers int) ([]*TaskResult, error) {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxConcurrentTasks
	}

	results := make([]*TaskResult, len(calls))
	sem := semaphore.NewWeighted(int64(maxWorkers))
	g, gctx := errgroup.WithContext(ctx)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			results[i] = s.RunTask(gctx, call.Agent, call.Task, call.Args)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
