package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/zdbackup/internal/server/auth"
)

func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP sync trigger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.Config
			if c.TriggerSecret == "" {
				return errors.New("token needs a trigger secret (TRIGGER_SECRET or --trigger-secret)")
			}
			tok, err := auth.GenerateToken(caller, []byte(c.TriggerSecret), c.TriggerTokenTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "scheduler", "name recorded in the token")
	return cmd
}
