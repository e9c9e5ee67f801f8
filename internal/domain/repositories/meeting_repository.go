package repositories

import (
	"context"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// MeetingRepository persists meeting metadata. Getters return (nil, nil) when nothing matches.
type MeetingRepository interface {
	Create(ctx context.Context, meeting *entities.Meeting) error
	Update(ctx context.Context, meeting *entities.Meeting) error
	GetByID(ctx context.Context, id string) (*entities.Meeting, error)
	GetByExternalID(ctx context.Context, externalID string) (*entities.Meeting, error)
	ListByOrganizer(ctx context.Context, email string) ([]entities.Meeting, error)
}

// SummaryRepository persists post-meeting summaries
type SummaryRepository interface {
	UpsertSummary(ctx context.Context, summary *entities.MeetingSummary) error
	GetSummary(ctx context.Context, meetingID string) (*entities.MeetingSummary, error)
}

// StakeholderRepository persists stakeholder profiles
type StakeholderRepository interface {
	UpsertStakeholder(ctx context.Context, s *entities.Stakeholder) error
	ListByMeeting(ctx context.Context, meetingID string) ([]entities.Stakeholder, error)
}

// AuditRepository appends compliance records
type AuditRepository interface {
	Append(ctx context.Context, entry *entities.AuditEntry) error
	ListByMeeting(ctx context.Context, meetingID string) ([]entities.AuditEntry, error)
}
