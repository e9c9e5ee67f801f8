package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/domain/repositories"
)

// Publisher is the part of the event bus the extractor needs
type Publisher interface {
	Publish(ctx context.Context, event entities.MeetingEvent) error
}

// Service turns speech segments into decision cards and commitments
type Service struct {
	decisions repositories.DecisionRepository
	publisher Publisher
	rules     []Rule
	logger    *zap.Logger
}

// NewService creates an extractor. Without rules, DefaultRules is used.
func NewService(decisions repositories.DecisionRepository, publisher Publisher, logger *zap.Logger, rules ...Rule) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Service{
		decisions: decisions,
		publisher: publisher,
		rules:     rules,
		logger:    logger,
	}
}

// Extract runs every rule over the segment in order. Redacted or empty segments yield nothing.
func (s *Service) Extract(seg entities.TranscriptSegment, spokenAt time.Time) []Result {
	if seg.Redacted || strings.TrimSpace(seg.Text) == "" {
		return nil
	}

	lowered := strings.ToLower(seg.Text)
	var results []Result
	for _, rule := range s.rules {
		if rule.Match(lowered) {
			results = append(results, rule.Build(seg, spokenAt))
		}
	}
	return results
}

// HandleSegment is the speech.segment subscriber. Decision cards are upserted
// before decision.finalized is published; commitments are only published.
func (s *Service) HandleSegment(ctx context.Context, event entities.MeetingEvent) error {
	seg, ok := event.Payload.(entities.TranscriptSegment)
	if !ok {
		return fmt.Errorf("extractor: unexpected payload %T", event.Payload)
	}
	if seg.MeetingID == "" {
		seg.MeetingID = event.MeetingID
	}

	for _, res := range s.Extract(seg, event.OccurredAt) {
		switch res.Kind {
		case KindDecision:
			card := res.Decision
			if err := s.decisions.UpsertDecisionCard(ctx, card); err != nil {
				return fmt.Errorf("upsert decision card %s: %w", card.ID, err)
			}
			s.logger.Info("📌 Decision detected",
				zap.String("meeting_id", card.MeetingID),
				zap.String("card_id", card.ID),
				zap.String("owner", card.Owner),
			)
			out := entities.NewMeetingEvent(card.MeetingID, *card, card.DecidedAt).WithCorrelation(event.ID)
			if err := s.publisher.Publish(ctx, out); err != nil {
				return err
			}

		case KindCommitment:
			c := res.Commitment
			s.logger.Info("🤝 Commitment detected",
				zap.String("meeting_id", seg.MeetingID),
				zap.String("owner", c.Owner),
				zap.Timep("due_date", c.DueDate),
			)
			out := entities.NewMeetingEvent(seg.MeetingID, *c, c.SpokenAt).WithCorrelation(event.ID)
			if err := s.publisher.Publish(ctx, out); err != nil {
				return err
			}
		}
	}
	return nil
}
