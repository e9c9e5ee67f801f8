package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// MeetingRepository handles meeting metadata
type MeetingRepository struct {
	db *gorm.DB
}

// NewMeetingRepository creates a new meeting repository
func NewMeetingRepository(db *gorm.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// Create inserts a meeting
func (r *MeetingRepository) Create(ctx context.Context, meeting *entities.Meeting) error {
	if meeting == nil {
		return errors.New("meeting cannot be nil")
	}
	return r.db.WithContext(ctx).Create(meeting).Error
}

// Update saves every field of the meeting
func (r *MeetingRepository) Update(ctx context.Context, meeting *entities.Meeting) error {
	if meeting == nil {
		return errors.New("meeting cannot be nil")
	}
	return r.db.WithContext(ctx).Save(meeting).Error
}

// GetByID retrieves a meeting by ID
func (r *MeetingRepository) GetByID(ctx context.Context, id string) (*entities.Meeting, error) {
	return first[entities.Meeting](r.db.WithContext(ctx).Where("id = ?", id))
}

// GetByExternalID retrieves a meeting by its provider-side id
func (r *MeetingRepository) GetByExternalID(ctx context.Context, externalID string) (*entities.Meeting, error) {
	return first[entities.Meeting](r.db.WithContext(ctx).Where("external_id = ?", externalID))
}

// ListByOrganizer lists every meeting organized by email
func (r *MeetingRepository) ListByOrganizer(ctx context.Context, email string) ([]entities.Meeting, error) {
	var meetings []entities.Meeting
	if err := r.db.WithContext(ctx).
		Where("organizer_email = ?", email).
		Order("start_time ASC").
		Find(&meetings).Error; err != nil {
		return nil, err
	}
	return meetings, nil
}

// SummaryRepository handles meeting summaries
type SummaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository creates a new summary repository
func NewSummaryRepository(db *gorm.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// UpsertSummary replaces the summary of the meeting
func (r *SummaryRepository) UpsertSummary(ctx context.Context, summary *entities.MeetingSummary) error {
	if summary == nil {
		return errors.New("summary cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(summary).Error
}

// GetSummary retrieves the summary of a meeting
func (r *SummaryRepository) GetSummary(ctx context.Context, meetingID string) (*entities.MeetingSummary, error) {
	return first[entities.MeetingSummary](r.db.WithContext(ctx).Where("meeting_id = ?", meetingID))
}

// StakeholderRepository handles stakeholder profiles
type StakeholderRepository struct {
	db *gorm.DB
}

// NewStakeholderRepository creates a new stakeholder repository
func NewStakeholderRepository(db *gorm.DB) *StakeholderRepository {
	return &StakeholderRepository{db: db}
}

// UpsertStakeholder inserts or replaces a stakeholder by id
func (r *StakeholderRepository) UpsertStakeholder(ctx context.Context, s *entities.Stakeholder) error {
	if s == nil {
		return errors.New("stakeholder cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(s).Error
}

// ListByMeeting lists the stakeholders of a meeting
func (r *StakeholderRepository) ListByMeeting(ctx context.Context, meetingID string) ([]entities.Stakeholder, error) {
	var out []entities.Stakeholder
	if err := r.db.WithContext(ctx).Where("meeting_id = ?", meetingID).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// AuditRepository handles the audit log
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes an audit entry
func (r *AuditRepository) Append(ctx context.Context, entry *entities.AuditEntry) error {
	if entry == nil {
		return errors.New("audit entry cannot be nil")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByMeeting lists the audit entries of a meeting, oldest first
func (r *AuditRepository) ListByMeeting(ctx context.Context, meetingID string) ([]entities.AuditEntry, error) {
	var out []entities.AuditEntry
	if err := r.db.WithContext(ctx).Where("meeting_id = ?", meetingID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// first runs the query and maps gorm.ErrRecordNotFound to (nil, nil)
func first[T any](query *gorm.DB) (*T, error) {
	var out T
	if err := query.First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
