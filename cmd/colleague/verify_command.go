package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/retention"
)

var errReceiptInvalid = errors.New("receipt signature does not match")

func newVerifyReceiptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-receipt <file|->",
		Short: "Check the signature of a deletion receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			receipt, err := readReceipt(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return verifyReceipt(cmd.OutOrStdout(), retention.NewManager(retention.Options{
				ReceiptSecret: cfg.Retention.ReceiptSecret,
				Logger:        ctx.log(),
			}), receipt)
		},
	}
}

func readReceipt(stdin io.Reader, path string) (entities.ConsentReceipt, error) {
	var receipt entities.ConsentReceipt
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return receipt, err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&receipt); err != nil {
		return receipt, fmt.Errorf("decode receipt: %w", err)
	}
	return receipt, nil
}

func verifyReceipt(out io.Writer, m *retention.Manager, receipt entities.ConsentReceipt) error {
	if !m.VerifyReceipt(receipt) {
		return fmt.Errorf("receipt %s: %w", receipt.ReceiptID, errReceiptInvalid)
	}
	fmt.Fprintf(out, "Receipt %s is valid (subject %s, audit %s)\n", receipt.ReceiptID, receipt.Subject, receipt.AuditHash)
	return nil
}
