package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/zdbackup/internal/server"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP sync trigger",
		Long: `Listen on --addr and run one sync pass per POST /sync carrying a valid
bearer token (see "zdbackup token"). A second request while a pass is
running gets 409. GET /healthz reports liveness.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.Config
			if c.TriggerSecret == "" {
				return errors.New("serve needs a trigger secret (TRIGGER_SECRET or --trigger-secret)")
			}
			if err := c.Validate(); err != nil {
				return err
			}
			a, err := server.NewApp(cmd.Context(), c, opts.Logger)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}
