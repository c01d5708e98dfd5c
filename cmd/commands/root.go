package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ozymandias/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand(version, commit string) *cli.Command {
	return &cli.Command{
		Name:    "ozymandias",
		Usage:   "Offline, single-host agent supervisor",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "agents-root",
				Usage: "Override the agents root directory",
				Value: config.Root(),
			},
		},
		Commands: []*cli.Command{
			NewRunCommand(),
			NewListAgentsCommand(),
			NewAgentInfoCommand(),
			NewValidateCommand(),
			NewStatusCommand(),
			NewServeCommand(),
			NewPlanCommand(),
		},
	}
}

func rootFromCmd(cmd *cli.Command) string {
	if root := cmd.String("agents-root"); root != "" {
		return root
	}
	return config.Root()
}
