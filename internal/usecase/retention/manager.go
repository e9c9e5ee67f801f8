package retention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/domain/repositories"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/queue"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
	"github.com/johnquangdev/meeting-colleague/pkg/signing"
)

// Jobs is the part of the queue runtime used for retention timers
type Jobs interface {
	Enqueue(ctx context.Context, queueName, name string, payload any, opts queue.EnqueueOptions) (*entities.Job, error)
	Remove(ctx context.Context, queueName, jobID string) (bool, error)
}

// Cache is invalidated after a deletion
type Cache interface {
	Delete(ctx context.Context, keys ...string) error
}

// ObjectStore archives receipts and holds recordings
type ObjectStore interface {
	PutObject(ctx context.Context, objectName string, data []byte, contentType string) error
	RemovePrefix(ctx context.Context, prefix string) (int, error)
}

// Payload is the payload of a retention job
type Payload struct {
	MeetingID string                  `json:"meetingId"`
	Profile   entities.ConsentProfile `json:"profile"`
}

// Options wires a Manager
type Options struct {
	Retention       repositories.RetentionRepository
	Meetings        repositories.MeetingRepository
	Cache           Cache
	Objects         ObjectStore
	Jobs            Jobs
	Clock           clock.Clock
	Logger          *zap.Logger
	ReceiptSecret   string
	ReceiptPrefix   string
	RecordingPrefix string
}

// Manager schedules and executes retention deletions
type Manager struct {
	retention       repositories.RetentionRepository
	meetings        repositories.MeetingRepository
	cache           Cache
	objects         ObjectStore
	jobs            Jobs
	clock           clock.Clock
	logger          *zap.Logger
	secret          string
	receiptPrefix   string
	recordingPrefix string
}

// NewManager creates a retention manager. Cache and Objects are optional.
func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReceiptPrefix == "" {
		opts.ReceiptPrefix = "receipts/"
	}
	if opts.RecordingPrefix == "" {
		opts.RecordingPrefix = "recordings/"
	}
	return &Manager{
		retention:       opts.Retention,
		meetings:        opts.Meetings,
		cache:           opts.Cache,
		objects:         opts.Objects,
		jobs:            opts.Jobs,
		clock:           opts.Clock,
		logger:          opts.Logger,
		secret:          opts.ReceiptSecret,
		receiptPrefix:   opts.ReceiptPrefix,
		recordingPrefix: opts.RecordingPrefix,
	}
}

func jobID(meetingID string) string { return "retention:" + meetingID }

// Schedule queues the deletion of a meeting at now + the profile's retention days.
// A pending deletion for the meeting is replaced.
func (m *Manager) Schedule(ctx context.Context, meetingID string, profile entities.ConsentProfile) (time.Time, error) {
	cfg, ok := entities.RetentionConfigFor(profile)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", usecaseErrors.ErrUnknownProfile, profile)
	}

	if _, err := m.jobs.Remove(ctx, queue.QueueRetention, jobID(meetingID)); err != nil {
		return time.Time{}, fmt.Errorf("replace retention job of %s: %w", meetingID, err)
	}

	runAt := m.clock.Now().Add(cfg.RetentionWindow())
	_, err := m.jobs.Enqueue(ctx, queue.QueueRetention, "retention.execute", Payload{
		MeetingID: meetingID,
		Profile:   profile,
	}, queue.EnqueueOptions{
		JobID:          jobID(meetingID),
		IdempotencyKey: fmt.Sprintf("retention:%s:%d", meetingID, runAt.Unix()),
		Delay:          cfg.RetentionWindow(),
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule retention of %s: %w", meetingID, err)
	}

	m.logger.Info("🗓️ Retention scheduled",
		zap.String("meeting_id", meetingID),
		zap.String("profile", string(profile)),
		zap.Time("run_at", runAt),
	)
	return runAt, nil
}

// HandleJob is the retention queue handler. A failed deletion is not retried
// automatically; it goes to the dead-letter queue for an operator.
func (m *Manager) HandleJob(ctx context.Context, job *entities.Job) error {
	payload, err := queue.DecodePayload[Payload](job)
	if err != nil {
		return err
	}
	cfg, ok := entities.RetentionConfigFor(payload.Profile)
	if !ok {
		return backoff.Permanent(fmt.Errorf("%w: %s", usecaseErrors.ErrUnknownProfile, payload.Profile))
	}

	_, err = m.Execute(ctx, payload.MeetingID, cfg)
	if errors.Is(err, usecaseErrors.ErrMeetingNotFound) {
		m.logger.Info("Retention skipped, meeting already gone", zap.String("meeting_id", payload.MeetingID))
		return nil
	}
	if err != nil {
		return backoff.Permanent(err)
	}
	return nil
}

// auditFields is hashed in this field order
type auditFields struct {
	MeetingID      string                  `json:"meetingId"`
	DeletedAt      time.Time               `json:"deletedAt"`
	Profile        entities.ConsentProfile `json:"profile"`
	RetentionDays  int                     `json:"retentionDays"`
	DataResidency  entities.Region         `json:"dataResidency"`
	OrganizerEmail string                  `json:"organizerEmail"`
	Title          string                  `json:"title"`
}

type signedFields struct {
	Subject   string `json:"subject"`
	AuditHash string `json:"auditHash"`
}

// AuditHash is the stable sha256 of the deletion facts
func AuditHash(meeting *entities.Meeting, cfg entities.RetentionConfig, deletedAt time.Time) string {
	b, _ := json.Marshal(auditFields{
		MeetingID:      meeting.ID,
		DeletedAt:      deletedAt.UTC(),
		Profile:        cfg.Profile,
		RetentionDays:  cfg.RetentionDays,
		DataResidency:  cfg.DataResidency,
		OrganizerEmail: meeting.OrganizerEmail,
		Title:          meeting.Title,
	})
	return signing.Digest(b)
}

// Sign returns the receipt signature over subject and audit hash. Without a
// secret it is the plain sha256 of the same document.
func (m *Manager) Sign(subject, auditHash string) string {
	b, _ := json.Marshal(signedFields{Subject: subject, AuditHash: auditHash})
	if sig := signing.Sign(m.secret, b); sig != "" {
		return sig
	}
	return signing.Digest(b)
}

// VerifyReceipt checks the signature of a receipt
func (m *Manager) VerifyReceipt(r entities.ConsentReceipt) bool {
	b, _ := json.Marshal(signedFields{Subject: r.Subject, AuditHash: r.AuditHash})
	if m.secret != "" {
		return signing.Verify(m.secret, b, r.Signature)
	}
	return r.Signature != "" && r.Signature == signing.Digest(b)
}

// Execute deletes a meeting and everything it owns in one transaction and
// returns the counts, audit hash and signed receipt.
func (m *Manager) Execute(ctx context.Context, meetingID string, cfg entities.RetentionConfig) (*entities.RetentionResult, error) {
	bundle, err := m.retention.LoadBundle(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("load meeting %s: %w", meetingID, err)
	}
	if bundle == nil {
		return nil, fmt.Errorf("%w: %s", usecaseErrors.ErrMeetingNotFound, meetingID)
	}

	deletedAt := m.clock.Now().UTC()
	auditHash := AuditHash(&bundle.Meeting, cfg, deletedAt)

	audit, err := m.auditEntry(meetingID, "retention.executed", deletedAt, map[string]any{
		"auditHash":     auditHash,
		"profile":       cfg.Profile,
		"retentionDays": cfg.RetentionDays,
		"decisions":     len(bundle.Decisions),
		"actions":       len(bundle.Actions),
	})
	if err != nil {
		return nil, err
	}

	counts, err := m.retention.DeleteMeetings(ctx, []string{meetingID}, audit)
	if err != nil {
		m.logger.Error("Retention deletion failed, nothing removed",
			zap.String("meeting_id", meetingID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: delete meeting %s: %w", usecaseErrors.ErrRetentionFailed, meetingID, err)
	}

	receipt := entities.ConsentReceipt{
		ReceiptID:     uuid.NewString(),
		MeetingIDs:    []string{meetingID},
		Subject:       meetingID,
		Profile:       cfg.Profile,
		RetentionDays: cfg.RetentionDays,
		DataResidency: cfg.DataResidency,
		Deleted:       counts,
		DeletedAt:     deletedAt,
		AuditHash:     auditHash,
		Signature:     m.Sign(meetingID, auditHash),
	}
	receiptJSON, err := json.Marshal(receipt)
	if err != nil {
		return nil, err
	}

	m.afterDelete(ctx, []entities.Meeting{bundle.Meeting}, receipt.ReceiptID, receiptJSON)

	m.logger.Info("🧹 Retention executed",
		zap.String("meeting_id", meetingID),
		zap.Int64("rows_deleted", counts.Total()),
		zap.String("audit_hash", auditHash),
	)
	return &entities.RetentionResult{
		MeetingID:      meetingID,
		Counts:         counts,
		AuditHash:      auditHash,
		ConsentReceipt: receiptJSON,
	}, nil
}

type userAuditFields struct {
	Subject    string    `json:"subject"`
	DeletedAt  time.Time `json:"deletedAt"`
	MeetingIDs []string  `json:"meetingIds"`
	Titles     []string  `json:"titles"`
}

// DeleteAllDataForUser removes every meeting organized by email in one transaction
func (m *Manager) DeleteAllDataForUser(ctx context.Context, email string) (*entities.RetentionResult, error) {
	meetings, err := m.meetings.ListByOrganizer(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list meetings of %s: %w", email, err)
	}
	if len(meetings) == 0 {
		return nil, fmt.Errorf("%w: %s", usecaseErrors.ErrNothingToDelete, email)
	}

	ids := make([]string, 0, len(meetings))
	titles := make([]string, 0, len(meetings))
	for _, meeting := range meetings {
		ids = append(ids, meeting.ID)
		titles = append(titles, meeting.Title)
	}

	deletedAt := m.clock.Now().UTC()
	b, _ := json.Marshal(userAuditFields{Subject: email, DeletedAt: deletedAt, MeetingIDs: ids, Titles: titles})
	auditHash := signing.Digest(b)

	audit, err := m.auditEntry("", "retention.user_deleted", deletedAt, map[string]any{
		"auditHash":  auditHash,
		"subject":    email,
		"meetingIds": ids,
	})
	if err != nil {
		return nil, err
	}

	counts, err := m.retention.DeleteMeetings(ctx, ids, audit)
	if err != nil {
		m.logger.Error("User data deletion failed, nothing removed",
			zap.String("subject", email),
			zap.Int("meetings", len(ids)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: delete meetings of %s: %w", usecaseErrors.ErrRetentionFailed, email, err)
	}

	receipt := entities.ConsentReceipt{
		ReceiptID:  uuid.NewString(),
		MeetingIDs: ids,
		Subject:    email,
		Deleted:    counts,
		DeletedAt:  deletedAt,
		AuditHash:  auditHash,
		Signature:  m.Sign(email, auditHash),
	}
	receiptJSON, err := json.Marshal(receipt)
	if err != nil {
		return nil, err
	}

	m.afterDelete(ctx, meetings, receipt.ReceiptID, receiptJSON)

	m.logger.Info("🧹 User data deleted",
		zap.String("subject", email),
		zap.Int("meetings", len(ids)),
		zap.Int64("rows_deleted", counts.Total()),
	)
	return &entities.RetentionResult{
		Counts:         counts,
		AuditHash:      auditHash,
		ConsentReceipt: receiptJSON,
	}, nil
}

func (m *Manager) auditEntry(meetingID, action string, at time.Time, detail map[string]any) (*entities.AuditEntry, error) {
	b, err := json.Marshal(detail)
	if err != nil {
		return nil, err
	}
	return &entities.AuditEntry{
		ID:        uuid.NewString(),
		MeetingID: meetingID,
		Action:    action,
		Actor:     "retention",
		Detail:    datatypes.JSON(b),
		CreatedAt: at,
	}, nil
}

// afterDelete runs the best-effort cleanup outside the transaction
func (m *Manager) afterDelete(ctx context.Context, meetings []entities.Meeting, receiptID string, receipt []byte) {
	var keys []string
	seen := make(map[string]bool)
	for _, meeting := range meetings {
		keys = append(keys, cache.MeetingKey(meeting.ID))
		if !seen[meeting.OrganizerEmail] {
			seen[meeting.OrganizerEmail] = true
			keys = append(keys, cache.OverviewKey(meeting.OrganizerEmail))
		}
	}
	if m.cache != nil {
		if err := m.cache.Delete(ctx, keys...); err != nil {
			m.logger.Warn("Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
		}
	}

	if m.objects == nil {
		return
	}
	if err := m.objects.PutObject(ctx, m.receiptPrefix+receiptID+".json", receipt, "application/json"); err != nil {
		m.logger.Warn("Receipt archive failed", zap.String("receipt_id", receiptID), zap.Error(err))
	}
	for _, meeting := range meetings {
		n, err := m.objects.RemovePrefix(ctx, m.recordingPrefix+meeting.ID+"/")
		if err != nil {
			m.logger.Warn("Recording purge failed", zap.String("meeting_id", meeting.ID), zap.Error(err))
			continue
		}
		if n > 0 {
			m.logger.Info("Recordings purged", zap.String("meeting_id", meeting.ID), zap.Int("objects", n))
		}
	}
}
