package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// DecisionRepository handles decision cards
type DecisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(db *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// UpsertDecisionCard inserts or replaces a card by id
func (r *DecisionRepository) UpsertDecisionCard(ctx context.Context, card *entities.DecisionCard) error {
	if card == nil {
		return errors.New("decision card cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(card).Error
}

// ListByMeeting lists the decisions of a meeting in the order they were taken
func (r *DecisionRepository) ListByMeeting(ctx context.Context, meetingID string) ([]entities.DecisionCard, error) {
	var cards []entities.DecisionCard
	if err := r.db.WithContext(ctx).Where("meeting_id = ?", meetingID).Order("decided_at ASC").Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// ActionRepository handles action items
type ActionRepository struct {
	db *gorm.DB
}

// NewActionRepository creates a new action repository
func NewActionRepository(db *gorm.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// UpsertActionItem inserts or replaces an action item by id
func (r *ActionRepository) UpsertActionItem(ctx context.Context, item *entities.ActionItem) error {
	if item == nil {
		return errors.New("action item cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(item).Error
}

// GetActionItemByID retrieves an action item by ID
func (r *ActionRepository) GetActionItemByID(ctx context.Context, id string) (*entities.ActionItem, error) {
	return first[entities.ActionItem](r.db.WithContext(ctx).Where("id = ?", id))
}

// ListByMeeting lists the action items of a meeting
func (r *ActionRepository) ListByMeeting(ctx context.Context, meetingID string) ([]entities.ActionItem, error) {
	var items []entities.ActionItem
	if err := r.db.WithContext(ctx).Where("meeting_id = ?", meetingID).Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CountOpenByOwners counts open action items owned by any of owners
func (r *ActionRepository) CountOpenByOwners(ctx context.Context, owners []string) (int64, error) {
	if len(owners) == 0 {
		return 0, nil
	}
	var n int64
	err := r.db.WithContext(ctx).
		Model(&entities.ActionItem{}).
		Where("status = ? AND owner IN ?", entities.ActionStatusOpen, owners).
		Count(&n).Error
	return n, err
}

// BriefRepository handles briefs
type BriefRepository struct {
	db *gorm.DB
}

// NewBriefRepository creates a new brief repository
func NewBriefRepository(db *gorm.DB) *BriefRepository {
	return &BriefRepository{db: db}
}

// UpsertBrief overwrites the brief of the same meeting and type
func (r *BriefRepository) UpsertBrief(ctx context.Context, brief *entities.Brief) error {
	if brief == nil {
		return errors.New("brief cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(brief).Error
}

// GetBrief retrieves the brief of the given type
func (r *BriefRepository) GetBrief(ctx context.Context, meetingID string, briefType entities.BriefType) (*entities.Brief, error) {
	return first[entities.Brief](r.db.WithContext(ctx).Where("meeting_id = ? AND type = ?", meetingID, briefType))
}

// ConsentRepository handles consent records
type ConsentRepository struct {
	db *gorm.DB
}

// NewConsentRepository creates a new consent repository
func NewConsentRepository(db *gorm.DB) *ConsentRepository {
	return &ConsentRepository{db: db}
}

// SaveConsent replaces the active consent of the meeting
func (r *ConsentRepository) SaveConsent(ctx context.Context, consent *entities.Consent) error {
	if consent == nil {
		return errors.New("consent cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(consent).Error
}

// GetConsent retrieves the active consent of a meeting
func (r *ConsentRepository) GetConsent(ctx context.Context, meetingID string) (*entities.Consent, error) {
	return first[entities.Consent](r.db.WithContext(ctx).Where("meeting_id = ?", meetingID))
}
