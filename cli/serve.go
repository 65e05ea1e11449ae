package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-sqlio/logger"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Open the database, run init statements and keep running",
		Long: `Open the database with the extension installed, run the init
statements from the config file in order and block until SIGINT or SIGTERM.

Init statements typically create callback tables and start listeners:

  init:
    - CREATE TABLE IF NOT EXISTS conn_cb (token TEXT, remote_addr TEXT)
    - CREATE TABLE IF NOT EXISTS data_cb (token TEXT, byte INTEGER)
    - SELECT tcp_listen('127.0.0.1:7000', 'conn_cb', 'data_cb')`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, rootOpts)
		},
	}
}

func serve(ctx context.Context, opts *RootOptions) error {
	cfg, ext, log, err := opts.open()
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()
	defer func() { _ = ext.Close() }()

	for i, stmt := range cfg.Init {
		if _, err := ext.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init statement %d: %w", i+1, err)
		}
	}

	log.Info("serving",
		logger.Field{Key: "db", Value: cfg.Database.Path},
		logger.Field{Key: "init_statements", Value: len(cfg.Init)},
	)

	<-ctx.Done()
	log.Info("shutting down", logger.Field{Key: "connections", Value: ext.Server().Registry.Len()})
	return nil
}
