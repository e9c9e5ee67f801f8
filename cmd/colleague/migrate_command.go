package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --down, revert) the embedded SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			db, err := database.NewPostgresDB(cfg, ctx.log())
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			n, err := database.Migrate(db, "postgres", down, ctx.log())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Revert migrations instead of applying them")
	return cmd
}
