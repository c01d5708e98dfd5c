package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ozymandias/internal/config"
	"github.com/dohr-michael/ozymandias/internal/introspect"
	"github.com/dohr-michael/ozymandias/internal/ozerrors"
	"github.com/dohr-michael/ozymandias/internal/supervisor"
)

// NewAgentInfoCommand returns the agent-info subcommand.
func NewAgentInfoCommand() *cli.Command {
	return &cli.Command{
		Name:      "agent-info",
		Usage:     "Show one agent's full record, memory stats, and sandbox usage",
		ArgsUsage: "<agent>",
		Action:    runAgentInfo,
	}
}

func runAgentInfo(_ context.Context, cmd *cli.Command) error {
	agentName := cmd.Args().First()
	if agentName == "" {
		return fmt.Errorf("usage: ozymandias agent-info <agent>")
	}

	sup := supervisor.New(rootFromCmd(cmd), config.DefaultMemoryLimitBytes)
	intr := introspect.New(sup)

	info, ok := intr.AgentInfo(agentName)
	if !ok {
		fmt.Fprintf(os.Stderr, "agent not found: %s\n", agentName)
		os.Exit(exitCodeFor(string(ozerrors.UnknownError)))
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
