package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unclebandit/campaign-studio/internal/repository"
)

func newMigrateCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the posts table for SQL vault backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := app.vault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			migrated, err := repository.MigrateIfSupported(cmd.Context(), v)
			if err != nil {
				return fmt.Errorf("migrate %s: %w", app.cfg.VaultBackend, err)
			}
			if !migrated {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s backend has no schema to migrate\n", app.cfg.VaultBackend)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", app.cfg.VaultBackend)
			return err
		},
	}
}
