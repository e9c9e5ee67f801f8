package cache

import (
	"context"
	"time"
)

// Store is implemented by MemoryStore and RedisStore
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// MeetingKey is the cache key of a meeting view
func MeetingKey(meetingID string) string {
	return "meeting:" + meetingID
}

// OverviewKey is the cache key of an organizer's dashboard overview
func OverviewKey(organizerEmail string) string {
	return "overview:" + organizerEmail
}
