package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ozymandias/internal/config"
	"github.com/dohr-michael/ozymandias/internal/httpapi"
	"github.com/dohr-michael/ozymandias/internal/introspect"
	"github.com/dohr-michael/ozymandias/internal/supervisor"
)

// NewServeCommand returns the serve subcommand: it starts the
// introspection HTTP server and the background maintenance loop, and
// blocks until interrupted.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the introspection HTTP server and maintenance loop",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address for the HTTP server",
			},
			&cli.StringFlag{
				Name:  "cron",
				Usage: "Cron schedule for the maintenance loop",
			},
			&cli.BoolFlag{
				Name:  "no-maintenance",
				Usage: "Disable the background maintenance loop",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	sup := supervisor.New(rootFromCmd(cmd), config.DefaultMemoryLimitBytes)
	intr := introspect.New(sup)

	addr := cmd.String("addr")
	if addr == "" {
		addr = config.HTTPConfig{}.ListenAddr()
	}

	if !cmd.Bool("no-maintenance") {
		schedule := cmd.String("cron")
		if schedule == "" {
			schedule = config.MaintenanceConfig{}.Schedule()
		}
		c, err := sup.StartMaintenance(schedule)
		if err != nil {
			return fmt.Errorf("start maintenance loop: %w", err)
		}
		defer c.Stop()
	}

	srv := httpapi.NewServer(intr, addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	slog.Info("serving", "addr", addr)

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
