package repositories

import (
	"context"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// RetentionRepository loads and atomically removes everything owned by meetings
type RetentionRepository interface {
	// LoadBundle returns the meeting with every dependent row, or nil when the meeting is gone.
	LoadBundle(ctx context.Context, meetingID string) (*entities.MeetingBundle, error)

	// DeleteMeetings removes all dependents and then the meetings in one transaction,
	// appending audit inside the same transaction. Nothing is removed on error.
	DeleteMeetings(ctx context.Context, meetingIDs []string, audit *entities.AuditEntry) (entities.DeletedCounts, error)
}
