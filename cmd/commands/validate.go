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

// NewValidateCommand returns the validate subcommand.
func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:   "validate",
		Usage:  "Validate every agent's capabilities and every discovered skill",
		Action: runValidate,
	}
}

func runValidate(_ context.Context, cmd *cli.Command) error {
	sup := supervisor.New(rootFromCmd(cmd), config.DefaultMemoryLimitBytes)
	intr := introspect.New(sup)

	report := intr.ValidateAll()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if len(report.Skills.Invalid) > 0 {
		os.Exit(1)
	}
	for _, v := range report.Agents {
		if len(v.SkillIssues) > 0 {
			os.Exit(1)
		}
	}
	return nil
}
