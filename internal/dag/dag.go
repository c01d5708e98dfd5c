// Package dag implements the dependency graph that orchestrates a
// batch of per-agent tasks: cycle/missing-dependency validation, and
// wave-based execution where each wave runs every node whose
// dependencies have already succeeded.
package dag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dohr-michael/ozymandias/internal/ozerrors"
)

// DefaultMaxWaveConcurrency bounds how many ready nodes within one
// wave run at once, mirroring internal/supervisor's own worker-pool
// bound (§5's "bounded worker pool" requirement applies here too).
const DefaultMaxWaveConcurrency = 8

// Status is a node's execution state.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Node is one unit of work in the graph: run Task against Agent once
// every entry in Dependencies has succeeded.
type Node struct {
	ID           string
	Agent        string
	Task         string
	Args         map[string]any
	Dependencies []string

	Status Status
	Result any
	Error  *ozerrors.Record
}

// Graph is a set of nodes plus the edges implied by their
// dependencies.
type Graph struct {
	nodes map[string]*Node
	order []string
}

// NewGraph builds an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: map[string]*Node{}}
}

// AddNode registers a node. Later calls with the same ID overwrite
// the earlier one.
func (g *Graph) AddNode(id, agent, task string, args map[string]any, deps []string) *Node {
	n := &Node{ID: id, Agent: agent, Task: task, Args: args, Dependencies: deps, Status: StatusPending}
	if _, exists := g.nodes[id]; !exists {
		g.order = append(g.order, id)
	}
	g.nodes[id] = n
	return n
}

// Node looks up a node by ID.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Validate checks for missing dependencies and cycles, exactly as
// graph_engine.py's validate()/_has_cycle() do: DFS with a
// recursion-stack set, reporting every missing dependency it finds
// before checking for cycles.
func (g *Graph) Validate() (bool, []string) {
	var issues []string

	for _, n := range g.nodes {
		for _, dep := range n.Dependencies {
			if _, ok := g.nodes[dep]; !ok {
				issues = append(issues, fmt.Sprintf("node %q depends on missing node %q", n.ID, dep))
			}
		}
	}

	if g.hasCycle() {
		issues = append(issues, "graph contains a cycle")
	}

	return len(issues) == 0, issues
}

func (g *Graph) hasCycle() bool {
	visited := map[string]bool{}
	inStack := map[string]bool{}

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		inStack[id] = true

		for _, n := range g.nodes {
			for _, dep := range n.Dependencies {
				if dep != id {
					continue
				}
				// edge id -> n.ID (n depends on id)
				if !visited[n.ID] {
					if dfs(n.ID) {
						return true
					}
				} else if inStack[n.ID] {
					return true
				}
			}
		}

		inStack[id] = false
		return false
	}

	for id := range g.nodes {
		if !visited[id] {
			if dfs(id) {
				return true
			}
		}
	}
	return false
}

// readyNodes returns pending nodes whose every dependency has
// succeeded. A node with a failed dependency never becomes ready —
// matching get_ready_nodes, which requires every dependency's status
// to be exactly SUCCESS.
func (g *Graph) readyNodes() []*Node {
	var ready []*Node
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Status != StatusPending {
			continue
		}
		allSucceeded := true
		for _, dep := range n.Dependencies {
			if g.nodes[dep].Status != StatusSuccess {
				allSucceeded = false
				break
			}
		}
		if allSucceeded {
			ready = append(ready, n)
		}
	}
	return ready
}

// Runner executes one node's task and reports whether it succeeded.
type Runner func(ctx context.Context, n *Node) (result any, succeeded bool, err error)

// Report is the execution outcome, shaped exactly like
// graph_engine.py's execute() return value.
type Report struct {
	Status   string         `json:"status"`
	Executed []string       `json:"executed"`
	Pending  []string       `json:"pending"`
	Results  map[string]any `json:"results"`
}

// Execute runs the graph wave by wave: every wave runs all currently
// ready nodes concurrently (bounded by DefaultMaxWaveConcurrency via
// an errgroup/semaphore pair), then recomputes readiness. Nodes left
// unreached when no further node is ready are reported pending. A
// failed node does not by itself force status "partial" — only
// unreached (pending) nodes do, since a failure only blocks nodes
// that depend on it. One node's error never aborts its wave-mates:
// run's error is recorded on that node only, never returned to the
// errgroup, so every ready node in a wave always gets to run.
func (g *Graph) Execute(ctx context.Context, run Runner) (*Report, error) {
	if ok, issues := g.Validate(); !ok {
		return nil, ozerrors.New(ozerrors.ExecutionError, "", fmt.Sprintf("invalid graph: %v", issues))
	}

	var executed []string
	results := map[string]any{}
	var mu sync.Mutex
	sem := semaphore.NewWeighted(DefaultMaxWaveConcurrency)

	for {
		ready := g.readyNodes()
		if len(ready) == 0 {
			break
		}

		g2, gctx := errgroup.WithContext(ctx)
		for _, n := range ready {
			n := n
			n.Status = StatusRunning
			g2.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					mu.Lock()
					n.Status = StatusFailed
					n.Error = ozerrors.New(ozerrors.ExecutionError, n.Agent, err.Error())
					mu.Unlock()
					return nil
				}
				defer sem.Release(1)

				result, succeeded, err := run(ctx, n)

				mu.Lock()
				defer mu.Unlock()
				n.Result = result
				if err != nil {
					var rec *ozerrors.Record
					if errors.As(err, &rec) {
						n.Error = rec
					} else {
						n.Error = ozerrors.New(ozerrors.ExecutionError, n.Agent, err.Error())
					}
					n.Status = StatusFailed
				} else if succeeded {
					n.Status = StatusSuccess
				} else {
					n.Status = StatusFailed
				}
				executed = append(executed, n.ID)
				if n.Result != nil {
					results[n.ID] = n.Result
				}
				return nil
			})
		}
		_ = g2.Wait()
	}

	var pending []string
	for _, id := range g.order {
		if g.nodes[id].Status == StatusPending {
			pending = append(pending, id)
		}
	}

	status := "success"
	if len(pending) > 0 {
		status = "partial"
	}

	return &Report{Status: status, Executed: executed, Pending: pending, Results: results}, nil
}
