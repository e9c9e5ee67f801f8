package repository

import (
	"testing"

	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-colleague/internal/testutil"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.NewSQLiteDB(t)
}
