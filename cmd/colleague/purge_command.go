package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newPurgeUserCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-user <email>",
		Short: "Delete every meeting organized by a user and print the signed receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.ToLower(strings.TrimSpace(args[0]))
			return ctx.withApp(func(a *app) error {
				result, err := a.retention.DeleteAllDataForUser(cmd.Context(), email)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Deleted %d row(s) for %s (audit %s)\n", result.Counts.Total(), email, result.AuditHash)

				var receipt json.RawMessage = result.ConsentReceipt
				pretty, err := json.MarshalIndent(receipt, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(pretty))
				return nil
			})
		},
	}
}
