package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

func newJob(id, queue string, runAt time.Time) *entities.Job {
	return &entities.Job{
		ID:          id,
		Queue:       queue,
		Name:        "process",
		Payload:     []byte(`{"meetingId":"m-1"}`),
		Status:      entities.JobStatusWaiting,
		MaxAttempts: 3,
		RunAt:       runAt,
		CreatedAt:   runAt,
		UpdatedAt:   runAt,
	}
}

func TestJobRepositoryAddDeduplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	created, err := repo.Add(ctx, newJob("process:m-1", "meeting-processing", now))
	require.NoError(t, err)
	assert.True(t, created)

	dup := newJob("process:m-1", "meeting-processing", now.Add(time.Hour))
	dup.Name = "other"
	created, err = repo.Add(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := repo.Get(ctx, "process:m-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "process", stored.Name)
	assert.JSONEq(t, `{"meetingId":"m-1"}`, string(stored.Payload))

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestJobRepositoryClaimNext(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	_, err := repo.Add(ctx, newJob("later", "briefing", now.Add(time.Hour)))
	require.NoError(t, err)
	_, err = repo.Add(ctx, newJob("second", "briefing", now.Add(-time.Minute)))
	require.NoError(t, err)
	_, err = repo.Add(ctx, newJob("first", "briefing", now.Add(-2*time.Minute)))
	require.NoError(t, err)
	_, err = repo.Add(ctx, newJob("elsewhere", "nudges", now.Add(-time.Hour)))
	require.NoError(t, err)

	job, err := repo.ClaimNext(ctx, "briefing", now)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "first", job.ID)
	assert.Equal(t, entities.JobStatusActive, job.Status)
	require.NotNil(t, job.LockedAt)
	assert.True(t, job.LockedAt.Equal(now))

	job, err = repo.ClaimNext(ctx, "briefing", now)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "second", job.ID)

	job, err = repo.ClaimNext(ctx, "briefing", now)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestJobRepositoryStalledAndTrim(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	_, err := repo.Add(ctx, newJob("stuck", "retention", now.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = repo.ClaimNext(ctx, "retention", now.Add(-10*time.Minute))
	require.NoError(t, err)

	stalled, err := repo.Stalled(ctx, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, "stuck", stalled[0].ID)

	for i, id := range []string{"c1", "c2", "c3"} {
		job := newJob(id, "retention", now)
		job.MarkCompleted(now.Add(time.Duration(i) * time.Second))
		_, err := repo.Add(ctx, job)
		require.NoError(t, err)
	}

	removed, err := repo.Trim(ctx, "retention", entities.JobStatusCompleted, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	left, err := repo.List(ctx, "retention", []entities.JobStatus{entities.JobStatusCompleted}, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "c3", left[0].ID)

	all, err := repo.List(ctx, "retention", nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ok, err := repo.Remove(ctx, "stuck")
	require.NoError(t, err)
	assert.True(t, ok)
}
