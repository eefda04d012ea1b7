// Package cli wires the zdbackup commands.
package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/zdbackup/internal/config"
	"github.com/dmitrijs2005/zdbackup/internal/logging"
)

// RootOptions carries what every command shares once flags are parsed.
type RootOptions struct {
	Config *config.Config
	Logger logging.Logger

	closer io.Closer
}

// NewRootCommand creates the zdbackup command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "zdbackup",
		Short: "Incremental helpdesk backup into a SQL database",
		Long: `zdbackup mirrors users, organizations, tickets with their comments and
attachments, and configuration (views, triggers, trigger categories, macros)
into PostgreSQL or SQLite. Runs are resumable: each entity family continues
from its last persisted checkpoint.

Settings come from defaults, an optional JSON file (--config), the
environment and flags, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, closer := logging.New(logging.Options{Level: c.LogLevel, File: c.LogFile, MaxSizeMB: 50, MaxBackups: 5})
			opts.Config, opts.Logger, opts.closer = c, logger, closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closer != nil {
				return opts.closer.Close()
			}
			return nil
		},
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}
