package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ozymandias/internal/config"
	"github.com/dohr-michael/ozymandias/internal/introspect"
	"github.com/dohr-michael/ozymandias/internal/supervisor"
)

// NewListAgentsCommand returns the list-agents subcommand.
func NewListAgentsCommand() *cli.Command {
	return &cli.Command{
		Name:   "list-agents",
		Usage:  "List every loaded agent",
		Action: runListAgents,
	}
}

func runListAgents(_ context.Context, cmd *cli.Command) error {
	sup := supervisor.New(rootFromCmd(cmd), config.DefaultMemoryLimitBytes)
	intr := introspect.New(sup)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(intr.ListAgents()); err != nil {
		return fmt.Errorf("encode agents: %w", err)
	}
	return nil
}
