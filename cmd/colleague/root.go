package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "colleague",
		Short:         "AI meeting colleague: consent-aware capture, decisions, actions and briefs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&ctx.dev, "dev", false, "Use the human-readable development logger")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newPurgeUserCommand(ctx))
	rootCmd.AddCommand(newDLQCommand(ctx))
	rootCmd.AddCommand(newVerifyReceiptCommand(ctx))

	return rootCmd
}
