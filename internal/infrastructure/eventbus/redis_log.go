package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// RedisLog keeps the replay log in one Redis list per meeting so every instance sees the same history
type RedisLog struct {
	client *redis.Client
	prefix string
	limit  int64
	ttl    time.Duration
	logger *zap.Logger
}

var _ Log = (*RedisLog)(nil)

// NewRedisLog creates a Redis-backed log. A zero ttl keeps lists until trimmed.
func NewRedisLog(client *redis.Client, limit int, ttl time.Duration, logger *zap.Logger) *RedisLog {
	if limit < 1 {
		limit = DefaultReplayLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLog{
		client: client,
		prefix: "bus:log:",
		limit:  int64(limit),
		ttl:    ttl,
		logger: logger,
	}
}

func (l *RedisLog) key(meetingID string) string {
	return l.prefix + meetingID
}

func (l *RedisLog) Append(ctx context.Context, event entities.MeetingEvent) error {
	data, err := entities.EncodeEvent(event)
	if err != nil {
		return err
	}

	key := l.key(event.MeetingID)
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -l.limit, -1)
		if l.ttl > 0 {
			pipe.Expire(ctx, key, l.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append to %s: %w", key, err)
	}
	return nil
}

func (l *RedisLog) Events(ctx context.Context, meetingID string) ([]entities.MeetingEvent, error) {
	raw, err := l.client.LRange(ctx, l.key(meetingID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]entities.MeetingEvent, 0, len(raw))
	for _, item := range raw {
		event, err := entities.DecodeEvent([]byte(item))
		if err != nil {
			l.logger.Warn("Skipping undecodable replay entry",
				zap.String("meeting_id", meetingID),
				zap.Error(err),
			)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// Close leaves the shared client open; its owner closes it
func (l *RedisLog) Close() error {
	return nil
}
