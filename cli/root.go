// Package cli implements the sqlio command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-sqlio/config"
	"github.com/cyberinferno/go-sqlio/extension"
	"github.com/cyberinferno/go-sqlio/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Database   string
	LogLevel   string
}

// NewRootCommand creates the root command for the sqlio CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sqlio",
		Short: "sqlio - network and timer I/O inside SQLite",
		Long: `sqlio opens a SQLite database with TCP listeners, timers and file
sinks available from SQL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (overrides config)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewModulesCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// load resolves the configuration: file (or defaults), then flags.
func (o *RootOptions) load() (config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return config.Config{}, err
		}
	}

	if o.Database != "" {
		cfg.Database.Path = o.Database
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}

	return cfg, cfg.Validate()
}

// open loads the configuration and opens the extension with a logger built
// from it. The caller closes both.
func (o *RootOptions) open() (config.Config, *extension.Extension, logger.Logger, error) {
	cfg, err := o.load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	logOpts := cfg.LoggerOptions()
	logOpts.Console = logOpts.File == ""
	log, err := logger.New(logOpts)
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	ext, err := extension.Open(cfg.Database, log)
	if err != nil {
		_ = log.Close()
		return config.Config{}, nil, nil, err
	}

	return cfg, ext, log, nil
}
