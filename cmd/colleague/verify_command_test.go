package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/retention"
)

func TestVerifyReceipt(t *testing.T) {
	m := retention.NewManager(retention.Options{ReceiptSecret: "receipt-secret"})
	receipt := entities.ConsentReceipt{
		ReceiptID: "r-1",
		Subject:   "org@example.com",
		AuditHash: "abc123",
		Signature: m.Sign("org@example.com", "abc123"),
	}
	body, err := json.Marshal(receipt)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Run("file", func(t *testing.T) {
		got, err := readReceipt(strings.NewReader(""), path)
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, verifyReceipt(&out, m, got))
		assert.Contains(t, out.String(), "Receipt r-1 is valid")
	})

	t.Run("stdin", func(t *testing.T) {
		got, err := readReceipt(bytes.NewReader(body), "-")
		require.NoError(t, err)
		assert.Equal(t, receipt.Signature, got.Signature)
	})

	t.Run("tampered subject", func(t *testing.T) {
		tampered := receipt
		tampered.Subject = "other@example.com"
		var out bytes.Buffer
		err := verifyReceipt(&out, m, tampered)
		assert.ErrorIs(t, err, errReceiptInvalid)
		assert.Empty(t, out.String())
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := retention.NewManager(retention.Options{ReceiptSecret: "other"})
		assert.ErrorIs(t, verifyReceipt(&bytes.Buffer{}, other, receipt), errReceiptInvalid)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := readReceipt(strings.NewReader("{"), "-")
		assert.Error(t, err)
	})
}
