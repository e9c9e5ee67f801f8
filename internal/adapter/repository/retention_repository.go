package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// RetentionRepository reads and deletes whole meetings
type RetentionRepository struct {
	db *gorm.DB
}

// NewRetentionRepository creates a new retention repository
func NewRetentionRepository(db *gorm.DB) *RetentionRepository {
	return &RetentionRepository{db: db}
}

// LoadBundle loads the meeting together with every dependent row
func (r *RetentionRepository) LoadBundle(ctx context.Context, meetingID string) (*entities.MeetingBundle, error) {
	db := r.db.WithContext(ctx)

	meeting, err := first[entities.Meeting](db.Where("id = ?", meetingID))
	if err != nil || meeting == nil {
		return nil, err
	}
	bundle := &entities.MeetingBundle{Meeting: *meeting}

	if bundle.Consent, err = first[entities.Consent](db.Where("meeting_id = ?", meetingID)); err != nil {
		return nil, err
	}
	if bundle.Summary, err = first[entities.MeetingSummary](db.Where("meeting_id = ?", meetingID)); err != nil {
		return nil, err
	}

	lists := []struct {
		name string
		dst  any
	}{
		{"decision_cards", &bundle.Decisions},
		{"action_items", &bundle.Actions},
		{"briefs", &bundle.Briefs},
		{"stakeholders", &bundle.Stakeholders},
		{"audit_entries", &bundle.AuditEntries},
	}
	for _, l := range lists {
		if err := db.Where("meeting_id = ?", meetingID).Find(l.dst).Error; err != nil {
			return nil, fmt.Errorf("load %s: %w", l.name, err)
		}
	}

	return bundle, nil
}

// DeleteMeetings removes children before parents and appends the audit entry, all in one transaction
func (r *RetentionRepository) DeleteMeetings(ctx context.Context, meetingIDs []string, audit *entities.AuditEntry) (entities.DeletedCounts, error) {
	if len(meetingIDs) == 0 {
		return entities.DeletedCounts{}, errors.New("no meetings to delete")
	}

	var counts entities.DeletedCounts
	steps := []struct {
		model  any
		column string
		count  *int64
	}{
		{&entities.AuditEntry{}, "meeting_id", &counts.AuditEntries},
		{&entities.DecisionCard{}, "meeting_id", &counts.Decisions},
		{&entities.ActionItem{}, "meeting_id", &counts.Actions},
		{&entities.Brief{}, "meeting_id", &counts.Briefs},
		{&entities.Stakeholder{}, "meeting_id", &counts.Stakeholders},
		{&entities.MeetingSummary{}, "meeting_id", &counts.Summaries},
		{&entities.Consent{}, "meeting_id", &counts.Consents},
		{&entities.Meeting{}, "id", &counts.Meetings},
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, step := range steps {
			res := tx.Where(step.column+" IN ?", meetingIDs).Delete(step.model)
			if res.Error != nil {
				return fmt.Errorf("delete %T: %w", step.model, res.Error)
			}
			*step.count = res.RowsAffected
		}
		if audit != nil {
			if err := tx.Create(audit).Error; err != nil {
				return fmt.Errorf("write audit entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return entities.DeletedCounts{}, err
	}
	return counts, nil
}
