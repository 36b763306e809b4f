// Package cli contains the civicscanner commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"CivicScanner/internal/app"
	"CivicScanner/internal/config"
	"CivicScanner/internal/logging"
)

var version = "dev"

// SetVersion sets the version string printed by the version command.
func SetVersion(v string) {
	version = v
}

// options carries persistent flags and the state loaded before each command.
type options struct {
	configPath string
	verbose    bool
	cfg        config.Config
	logger     *slog.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "civicscanner",
		Short: "Discover and summarize local government documents",
		Long: `civicscanner crawls municipal sites for agendas, minutes, and notices,
summarizes them with an LLM, and keeps a per-user feed.

Example usage:
  civicscanner serve                          # HTTP API plus cron runs
  civicscanner run --url https://city.gov/a.pdf
  civicscanner discover https://city.gov/council
  civicscanner feed --user alice --limit 5
  civicscanner user upsert alice --city Orlando --region FL`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.cfg = config.LoadFile(opts.configPath)
			level := opts.cfg.Logging.Level
			if opts.verbose {
				level = "debug"
			}
			opts.logger = logging.NewWithFormat(cmd.ErrOrStderr(), level, opts.cfg.Logging.Format)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default $CIVIC_SCANNER_CONFIG)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCommand(opts),
		newRunCommand(opts),
		newDiscoverCommand(opts),
		newFeedCommand(opts),
		newUserCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// withApp builds the application for one command and closes it afterwards.
func (o *options) withApp(ctx context.Context, fn func(*app.Application) error) error {
	application, err := app.New(ctx, o.cfg, o.logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			o.logger.Warn("close application", "error", err)
		}
	}()
	return fn(application)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
