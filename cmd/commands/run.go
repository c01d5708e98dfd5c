package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ozymandias/internal/config"
	"github.com/dohr-michael/ozymandias/internal/supervisor"
)

// NewRunCommand returns the run subcommand.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a task against an agent",
		ArgsUsage: "<agent> <task>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "args",
				Usage: "JSON object of task arguments",
				Value: "{}",
			},
		},
		Action: runRun,
	}
}

func runRun(ctx context.Context, cmd *cli.Command) error {
	agentName := cmd.Args().Get(0)
	task := cmd.Args().Get(1)
	if agentName == "" || task == "" {
		return fmt.Errorf("usage: ozymandias run <agent> <task>")
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(cmd.String("args")), &args); err != nil {
		return fmt.Errorf("parse --args: %w", err)
	}

	sup := supervisor.New(rootFromCmd(cmd), config.DefaultMemoryLimitBytes)
	result := sup.RunTask(ctx, agentName, task, args)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if result.Status != "success" && result.Error != nil {
		os.Exit(exitCodeFor(result.Error.ErrorType))
	}
	return nil
}
