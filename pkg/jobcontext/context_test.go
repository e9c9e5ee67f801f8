package jobcontext

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobBeginCarriesMetadata(t *testing.T) {
	ctx, cancel := JobBegin(context.Background(), JobMetadata{
		JobID:       "prebrief:m-1",
		Queue:       "briefing",
		Name:        "pre-brief",
		WorkerID:    2,
		Attempt:     3,
		MaxAttempts: 3,
	}, 0)
	defer cancel()

	meta := GetJobMetadata(ctx)
	assert.Equal(t, "prebrief:m-1", meta.JobID)
	assert.Equal(t, "briefing", meta.Queue)
	assert.Equal(t, "pre-brief", meta.Name)
	assert.Equal(t, 2, meta.WorkerID)
	assert.False(t, meta.StartTime.IsZero())
	assert.True(t, IsFinalAttempt(ctx))

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultTimeout), deadline, time.Second)
}

func TestRunRecoversPanic(t *testing.T) {
	err := Run(context.Background(), func(context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic recovered: boom")
}

func TestRunSkipsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Run(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryableError(fmt.Errorf("clickup: status 503")))
	assert.True(t, IsRetryableError(errors.New("too many requests")))
	assert.False(t, IsRetryableError(errors.New("clickup: status 400")))
	assert.False(t, IsRetryableError(backoff.Permanent(errors.New("connection refused"))))
	assert.False(t, IsRetryableError(nil))
}

func TestIsPermanent(t *testing.T) {
	err := fmt.Errorf("brief: %w", backoff.Permanent(errors.New("metadata missing")))
	assert.True(t, IsPermanent(err))
	assert.False(t, IsPermanent(errors.New("plain")))
}

func TestCalculateBackoff(t *testing.T) {
	base := 5 * time.Second
	assert.Equal(t, 5*time.Second, CalculateBackoff(1, base, 0))
	assert.Equal(t, 10*time.Second, CalculateBackoff(2, base, 0))
	assert.Equal(t, 20*time.Second, CalculateBackoff(3, base, 0))
	assert.Equal(t, 60*time.Second, CalculateBackoff(10, base, 0))
	assert.Equal(t, 15*time.Minute, CalculateBackoff(40, time.Minute, 15*time.Minute))
	assert.Equal(t, 5*time.Second, CalculateBackoff(0, base, 0))
}
