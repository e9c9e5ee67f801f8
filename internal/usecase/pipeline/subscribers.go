package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// HandleStakeholder is the stakeholder.profile subscriber
func (s *Service) HandleStakeholder(ctx context.Context, event entities.MeetingEvent) error {
	profile, ok := event.Payload.(entities.Stakeholder)
	if !ok {
		return fmt.Errorf("stakeholders: unexpected payload %T", event.Payload)
	}
	profile.MeetingID = event.MeetingID
	if profile.ID == "" {
		profile.ID = StakeholderID(event.MeetingID, profile)
	}

	if err := s.stakeholders.UpsertStakeholder(ctx, &profile); err != nil {
		return fmt.Errorf("upsert stakeholder %s: %w", profile.ID, err)
	}
	s.logger.Debug("Stakeholder profile stored",
		zap.String("meeting_id", profile.MeetingID),
		zap.String("stakeholder_id", profile.ID),
	)
	return nil
}

// HandleRegulation is the regulation.change subscriber
func (s *Service) HandleRegulation(_ context.Context, event entities.MeetingEvent) error {
	change, ok := event.Payload.(entities.RegulationChange)
	if !ok {
		return fmt.Errorf("regwatch: unexpected payload %T", event.Payload)
	}

	source := change.Source
	if source == "" {
		source = "unknown"
	}
	s.metrics.RegulationChanges.WithLabelValues(source).Inc()

	fields := []zap.Field{
		zap.String("meeting_id", event.MeetingID),
		zap.String("source", source),
		zap.String("title", change.Title),
	}
	if change.EffectiveAt != nil {
		fields = append(fields, zap.Time("effective_at", *change.EffectiveAt))
	}
	s.logger.Info("⚖️ Regulation change", fields...)
	return nil
}
