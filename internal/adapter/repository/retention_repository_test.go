package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

func seedMeeting(t *testing.T, db *gorm.DB, id, organizer string, decisions, actions int) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, NewMeetingRepository(db).Create(ctx, &entities.Meeting{
		ID: id, Title: "Styrgrupp " + id, OrganizerEmail: organizer,
		StartTime: start, EndTime: start.Add(time.Hour), Profile: entities.ProfilePlus,
		Status: entities.MeetingStatusScheduled,
	}))
	require.NoError(t, NewConsentRepository(db).SaveConsent(ctx, &entities.Consent{
		MeetingID: id, Profile: entities.ProfilePlus, RetentionDays: 90,
		DataResidency: entities.RegionEU, AcceptedAt: start,
	}))
	for i := 0; i < decisions; i++ {
		require.NoError(t, NewDecisionRepository(db).UpsertDecisionCard(ctx, &entities.DecisionCard{
			ID: id + "-d" + string(rune('a'+i)), MeetingID: id, Headline: "beslut", DecidedAt: start,
		}))
	}
	for i := 0; i < actions; i++ {
		require.NoError(t, NewActionRepository(db).UpsertActionItem(ctx, &entities.ActionItem{
			ID: id + "-a" + string(rune('a'+i)), MeetingID: id, Title: "åtgärd",
			Source: entities.ActionSourceSpeech, Status: entities.ActionStatusOpen,
		}))
	}
	require.NoError(t, NewAuditRepository(db).Append(ctx, &entities.AuditEntry{
		ID: id + "-audit", MeetingID: id, Action: "meeting.scheduled", CreatedAt: start,
	}))
}

func TestRetentionRepositoryLoadBundle(t *testing.T) {
	db := newTestDB(t)
	seedMeeting(t, db, "m-1", "org@example.com", 2, 3)
	repo := NewRetentionRepository(db)

	bundle, err := repo.LoadBundle(context.Background(), "m-1")
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Equal(t, "m-1", bundle.Meeting.ID)
	assert.NotNil(t, bundle.Consent)
	assert.Nil(t, bundle.Summary)
	assert.Len(t, bundle.Decisions, 2)
	assert.Len(t, bundle.Actions, 3)
	assert.Len(t, bundle.AuditEntries, 1)

	gone, err := repo.LoadBundle(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRetentionRepositoryDeleteMeetings(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedMeeting(t, db, "m-1", "org@example.com", 2, 3)
	seedMeeting(t, db, "m-2", "other@example.com", 1, 1)
	repo := NewRetentionRepository(db)

	counts, err := repo.DeleteMeetings(ctx, []string{"m-1"}, &entities.AuditEntry{
		ID: "audit-retention", MeetingID: "m-1", Action: "retention.executed", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), counts.Decisions)
	assert.Equal(t, int64(3), counts.Actions)
	assert.Equal(t, int64(1), counts.Consents)
	assert.Equal(t, int64(1), counts.AuditEntries)
	assert.Equal(t, int64(1), counts.Meetings)
	assert.Equal(t, int64(8), counts.Total())

	meeting, err := NewMeetingRepository(db).GetByID(ctx, "m-1")
	require.NoError(t, err)
	assert.Nil(t, meeting)

	// the other meeting is untouched
	other, err := repo.LoadBundle(ctx, "m-2")
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Len(t, other.Decisions, 1)

	// exactly one audit entry records the deletion
	entries, err := NewAuditRepository(db).ListByMeeting(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "retention.executed", entries[0].Action)
}

func TestRetentionRepositoryDeleteIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedMeeting(t, db, "m-1", "org@example.com", 2, 3)

	// fail once the transaction reaches the briefs table, after decisions and actions are gone
	errInjected := errors.New("injected failure")
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register("test:fail_briefs", func(tx *gorm.DB) {
		if tx.Statement.Table == "briefs" {
			_ = tx.AddError(errInjected)
		}
	}))

	_, err := NewRetentionRepository(db).DeleteMeetings(ctx, []string{"m-1"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)

	require.NoError(t, db.Callback().Delete().Remove("test:fail_briefs"))

	bundle, err := NewRetentionRepository(db).LoadBundle(ctx, "m-1")
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Len(t, bundle.Decisions, 2)
	assert.Len(t, bundle.Actions, 3)
	assert.Len(t, bundle.AuditEntries, 1)
	assert.NotNil(t, bundle.Consent)
}
