package repositories

import (
	"context"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// DecisionRepository persists decision cards, upserting by id
type DecisionRepository interface {
	UpsertDecisionCard(ctx context.Context, card *entities.DecisionCard) error
	ListByMeeting(ctx context.Context, meetingID string) ([]entities.DecisionCard, error)
}

// ActionRepository persists action items, upserting by id
type ActionRepository interface {
	UpsertActionItem(ctx context.Context, item *entities.ActionItem) error
	GetActionItemByID(ctx context.Context, id string) (*entities.ActionItem, error)
	ListByMeeting(ctx context.Context, meetingID string) ([]entities.ActionItem, error)
	CountOpenByOwners(ctx context.Context, owners []string) (int64, error)
}

// BriefRepository persists briefs keyed by (meetingID, type)
type BriefRepository interface {
	UpsertBrief(ctx context.Context, brief *entities.Brief) error
	GetBrief(ctx context.Context, meetingID string, briefType entities.BriefType) (*entities.Brief, error)
}

// ConsentRepository persists the active consent of a meeting
type ConsentRepository interface {
	SaveConsent(ctx context.Context, consent *entities.Consent) error
	GetConsent(ctx context.Context, meetingID string) (*entities.Consent, error)
}
