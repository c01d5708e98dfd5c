package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ozymandias/internal/config"
	"github.com/dohr-michael/ozymandias/internal/dag"
	"github.com/dohr-michael/ozymandias/internal/supervisor"
)

// planNode is the on-disk shape of one DAG node, as read from the
// file argument or stdin.
type planNode struct {
	ID           string         `json:"id"`
	Agent        string         `json:"agent"`
	Task         string         `json:"task"`
	Args         map[string]any `json:"args,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

type planDocument struct {
	Nodes []planNode `json:"nodes"`
}

// NewPlanCommand returns the plan subcommand: it loads a DAG of
// (agent, task) nodes and runs it wave by wave.
func NewPlanCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Execute a dependency graph of agent tasks",
		ArgsUsage: "[file]",
		Action:    runPlan,
	}
}

func runPlan(ctx context.Context, cmd *cli.Command) error {
	var r io.Reader = os.Stdin
	if path := cmd.Args().First(); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var doc planDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("decode graph: %w", err)
	}

	g := dag.NewGraph()
	for _, n := range doc.Nodes {
		g.AddNode(n.ID, n.Agent, n.Task, n.Args, n.Dependencies)
	}

	if ok, issues := g.Validate(); !ok {
		for _, issue := range issues {
			fmt.Fprintln(os.Stderr, issue)
		}
		os.Exit(1)
	}

	sup := supervisor.New(rootFromCmd(cmd), config.DefaultMemoryLimitBytes)
	report, err := g.Execute(ctx, sup.DAGRunner())
	if err != nil {
		return fmt.Errorf("execute graph: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if report.Status != "success" {
		os.Exit(1)
	}
	return nil
}
