package retention

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-colleague/internal/adapter/repository"
	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/queue"
	"github.com/johnquangdev/meeting-colleague/internal/testutil"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/policy"
	"github.com/johnquangdev/meeting-colleague/pkg/jobcontext"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func (o *fakeObjects) PutObject(_ context.Context, name string, data []byte, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.objects == nil {
		o.objects = make(map[string][]byte)
	}
	o.objects[name] = data
	return nil
}

func (o *fakeObjects) RemovePrefix(_ context.Context, prefix string) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removed = append(o.removed, prefix)
	return 0, nil
}

type fixture struct {
	db      *gorm.DB
	manager *Manager
	cache   *cache.MemoryStore
	objects *fakeObjects
	jobs    *queue.Manager
	clock   *clock.Mock
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	f := &fixture{
		db:      db,
		cache:   cache.NewMemoryStore(clk),
		objects: &fakeObjects{},
		jobs:    queue.NewManager(queue.Options{Clock: clk}),
		clock:   clk,
	}
	t.Cleanup(func() { _ = f.cache.Close() })

	f.manager = NewManager(Options{
		Retention:     repository.NewRetentionRepository(db),
		Meetings:      repository.NewMeetingRepository(db),
		Cache:         f.cache,
		Objects:       f.objects,
		Jobs:          f.jobs,
		Clock:         clk,
		ReceiptSecret: secret,
	})
	opts, _ := queue.DefaultQueueOptions(queue.QueueRetention)
	require.NoError(t, f.jobs.Register(opts, f.manager.HandleJob))
	return f
}

func (f *fixture) seed(t *testing.T, id, organizer string, decisions, actions int) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repository.NewMeetingRepository(f.db).Create(ctx, &entities.Meeting{
		ID: id, Title: "Styrgrupp " + id, OrganizerEmail: organizer,
		StartTime: start, Profile: entities.ProfilePlus, Status: entities.MeetingStatusScheduled,
	}))
	consent, err := policy.BuildConsent(id, entities.ProfilePlus, start)
	require.NoError(t, err)
	require.NoError(t, repository.NewConsentRepository(f.db).SaveConsent(ctx, consent))
	for i := 0; i < decisions; i++ {
		require.NoError(t, repository.NewDecisionRepository(f.db).UpsertDecisionCard(ctx, &entities.DecisionCard{
			ID: id + "-d" + string(rune('a'+i)), MeetingID: id, Headline: "beslut", DecidedAt: start,
		}))
	}
	for i := 0; i < actions; i++ {
		require.NoError(t, repository.NewActionRepository(f.db).UpsertActionItem(ctx, &entities.ActionItem{
			ID: id + "-a" + string(rune('a'+i)), MeetingID: id, Title: "åtgärd",
			Source: entities.ActionSourceSpeech, Status: entities.ActionStatusOpen,
		}))
	}
	require.NoError(t, repository.NewBriefRepository(f.db).UpsertBrief(ctx, &entities.Brief{
		MeetingID: id, Type: entities.BriefTypePre, Subject: "Inför", GeneratedAt: start,
	}))

	require.NoError(t, f.cache.Set(ctx, cache.MeetingKey(id), "{}", time.Hour))
	require.NoError(t, f.cache.Set(ctx, cache.OverviewKey(organizer), "{}", time.Hour))
}

func plusConfig(t *testing.T) entities.RetentionConfig {
	cfg, ok := entities.RetentionConfigFor(entities.ProfilePlus)
	require.True(t, ok)
	return cfg
}

func TestExecuteDeletesMeetingAndDependents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "receipt-secret")
	f.seed(t, "m-1", "org@example.com", 2, 3)
	f.seed(t, "m-2", "org@example.com", 1, 0)

	result, err := f.manager.Execute(ctx, "m-1", plusConfig(t))
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Counts.Decisions)
	assert.Equal(t, int64(3), result.Counts.Actions)
	assert.Equal(t, int64(1), result.Counts.Consents)
	assert.Equal(t, int64(1), result.Counts.Briefs)
	assert.Equal(t, int64(1), result.Counts.Meetings)
	assert.Equal(t, int64(2+3+1+1+1), result.Counts.Total())

	meeting, err := repository.NewMeetingRepository(f.db).GetByID(ctx, "m-1")
	require.NoError(t, err)
	assert.Nil(t, meeting)

	other, err := repository.NewRetentionRepository(f.db).LoadBundle(ctx, "m-2")
	require.NoError(t, err)
	require.NotNil(t, other)

	entries, err := repository.NewAuditRepository(f.db).ListByMeeting(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "retention.executed", entries[0].Action)

	var receipt entities.ConsentReceipt
	require.NoError(t, json.Unmarshal(result.ConsentReceipt, &receipt))
	assert.Equal(t, result.AuditHash, receipt.AuditHash)
	assert.Equal(t, []string{"m-1"}, receipt.MeetingIDs)
	assert.Equal(t, entities.ProfilePlus, receipt.Profile)
	assert.Equal(t, 90, receipt.RetentionDays)
	assert.True(t, f.manager.VerifyReceipt(receipt))

	receipt.AuditHash = "tampered"
	assert.False(t, f.manager.VerifyReceipt(receipt))

	exists, err := f.cache.Exists(ctx, cache.MeetingKey("m-1"))
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = f.cache.Exists(ctx, cache.MeetingKey("m-2"))
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Contains(t, f.objects.objects, "receipts/"+receipt.ReceiptID+".json")
	assert.Equal(t, []string{"recordings/m-1/"}, f.objects.removed)
}

func TestExecuteIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	f.seed(t, "m-1", "org@example.com", 2, 3)

	errInjected := errors.New("injected failure")
	require.NoError(t, f.db.Callback().Delete().Before("gorm:delete").Register("test:fail_stakeholders", func(tx *gorm.DB) {
		if tx.Statement.Table == "stakeholders" {
			_ = tx.AddError(errInjected)
		}
	}))

	_, err := f.manager.Execute(ctx, "m-1", plusConfig(t))
	require.ErrorIs(t, err, errInjected)
	assert.ErrorIs(t, err, usecaseErrors.ErrRetentionFailed)

	_, err = f.manager.DeleteAllDataForUser(ctx, "org@example.com")
	assert.ErrorIs(t, err, usecaseErrors.ErrRetentionFailed)

	// a failed deletion goes straight to the dead-letter queue
	job := &entities.Job{ID: "retention:m-1", Queue: queue.QueueRetention, Payload: []byte(`{"meetingId":"m-1","profile":"plus"}`)}
	err = f.manager.HandleJob(ctx, job)
	assert.ErrorIs(t, err, usecaseErrors.ErrRetentionFailed)
	assert.True(t, jobcontext.IsPermanent(err))
	require.NoError(t, f.db.Callback().Delete().Remove("test:fail_stakeholders"))

	bundle, err := repository.NewRetentionRepository(f.db).LoadBundle(ctx, "m-1")
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Len(t, bundle.Decisions, 2)
	assert.Len(t, bundle.Actions, 3)
	assert.Len(t, bundle.Briefs, 1)
	assert.NotNil(t, bundle.Consent)
	assert.Empty(t, bundle.AuditEntries)

	// the cache is only touched after a successful deletion
	exists, err := f.cache.Exists(ctx, cache.MeetingKey("m-1"))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Empty(t, f.objects.objects)
}

func TestAuditHashIsStable(t *testing.T) {
	meeting := &entities.Meeting{ID: "m-1", Title: "Styrgrupp", OrganizerEmail: "org@example.com"}
	cfg := plusConfig(t)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	h := AuditHash(meeting, cfg, at)
	assert.Len(t, h, 64)
	assert.Equal(t, h, AuditHash(meeting, cfg, at.In(time.FixedZone("CET", 3600))))
	assert.NotEqual(t, h, AuditHash(meeting, cfg, at.Add(time.Second)))

	juridik, _ := entities.RetentionConfigFor(entities.ProfileJuridik)
	assert.NotEqual(t, h, AuditHash(meeting, juridik, at))
}

func TestUnsignedReceiptUsesDigest(t *testing.T) {
	f := newFixture(t, "")
	signed := newFixture(t, "secret")

	sig := f.manager.Sign("m-1", "abc")
	assert.Len(t, sig, 64)
	assert.NotEqual(t, sig, signed.manager.Sign("m-1", "abc"))
	assert.Equal(t, sig, f.manager.Sign("m-1", "abc"))

	receipt := entities.ConsentReceipt{Subject: "m-1", AuditHash: "abc", Signature: sig}
	assert.True(t, f.manager.VerifyReceipt(receipt))
	assert.False(t, signed.manager.VerifyReceipt(receipt))

	receipt.Signature = signed.manager.Sign("m-1", "abc")
	assert.True(t, signed.manager.VerifyReceipt(receipt))
	assert.False(t, newFixture(t, "other").manager.VerifyReceipt(receipt))
}

func TestDeleteAllDataForUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "secret")
	f.seed(t, "m-1", "org@example.com", 2, 1)
	f.seed(t, "m-2", "org@example.com", 1, 2)
	f.seed(t, "m-3", "someone@example.com", 1, 1)

	result, err := f.manager.DeleteAllDataForUser(ctx, "org@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Counts.Meetings)
	assert.Equal(t, int64(3), result.Counts.Decisions)
	assert.Equal(t, int64(3), result.Counts.Actions)
	assert.Equal(t, int64(2), result.Counts.Consents)

	var receipt entities.ConsentReceipt
	require.NoError(t, json.Unmarshal(result.ConsentReceipt, &receipt))
	assert.ElementsMatch(t, []string{"m-1", "m-2"}, receipt.MeetingIDs)
	assert.Equal(t, "org@example.com", receipt.Subject)
	assert.True(t, f.manager.VerifyReceipt(receipt))

	remaining, err := repository.NewMeetingRepository(f.db).ListByOrganizer(ctx, "org@example.com")
	require.NoError(t, err)
	assert.Empty(t, remaining)
	kept, err := repository.NewMeetingRepository(f.db).GetByID(ctx, "m-3")
	require.NoError(t, err)
	assert.NotNil(t, kept)

	exists, err := f.cache.Exists(ctx, cache.OverviewKey("org@example.com"))
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = f.manager.DeleteAllDataForUser(ctx, "org@example.com")
	assert.ErrorIs(t, err, usecaseErrors.ErrNothingToDelete)
}

func TestScheduleUsesProfileWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	runAt, err := f.manager.Schedule(ctx, "m-1", entities.ProfileJuridik)
	require.NoError(t, err)
	assert.True(t, runAt.Equal(f.clock.Now().Add(365*24*time.Hour)))

	// a new consent replaces the pending deletion
	runAt, err = f.manager.Schedule(ctx, "m-1", entities.ProfileBas)
	require.NoError(t, err)
	assert.True(t, runAt.Equal(f.clock.Now().Add(30*24*time.Hour)))

	job, err := f.jobs.Get(ctx, "retention:m-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.True(t, job.RunAt.Equal(runAt))
	payload, err := queue.DecodePayload[Payload](job)
	require.NoError(t, err)
	assert.Equal(t, entities.ProfileBas, payload.Profile)

	_, err = f.manager.Schedule(ctx, "m-1", "gold")
	assert.ErrorIs(t, err, usecaseErrors.ErrUnknownProfile)
}

func TestHandleJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	f.seed(t, "m-1", "org@example.com", 1, 1)

	job := &entities.Job{ID: "retention:m-1", Queue: queue.QueueRetention, Payload: []byte(`{"meetingId":"m-1","profile":"plus"}`)}
	require.NoError(t, f.manager.HandleJob(ctx, job))

	// already deleted
	require.NoError(t, f.manager.HandleJob(ctx, job))

	bad := &entities.Job{ID: "retention:m-2", Queue: queue.QueueRetention, Payload: []byte(`{"meetingId":"m-2","profile":"gold"}`)}
	err := f.manager.HandleJob(ctx, bad)
	assert.ErrorIs(t, err, usecaseErrors.ErrUnknownProfile)
	assert.True(t, jobcontext.IsPermanent(err))
}
