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

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Print the supervisor's root paths, agent count, and version",
		Action: runStatus,
	}
}

func runStatus(_ context.Context, cmd *cli.Command) error {
	sup := supervisor.New(rootFromCmd(cmd), config.DefaultMemoryLimitBytes)
	intr := introspect.New(sup)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(intr.SystemStatus()); err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return nil
}
