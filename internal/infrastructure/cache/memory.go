package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// MemoryStore is a simple in-memory key-value store with expiration
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*memoryItem
	clock clock.Clock
	stop  chan struct{}
	once  sync.Once
}

type memoryItem struct {
	value      string
	expireTime time.Time
}

// NewMemoryStore creates a new in-memory store. A nil clock uses wall time.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	store := &MemoryStore{
		items: make(map[string]*memoryItem),
		clock: clk,
		stop:  make(chan struct{}),
	}

	// Start cleanup goroutine to remove expired items
	go store.cleanupExpired()

	return store
}

// Set stores a key-value pair with expiration
func (ms *MemoryStore) Set(_ context.Context, key, value string, expiration time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.items[key] = &memoryItem{
		value:      value,
		expireTime: ms.clock.Now().Add(expiration),
	}
	return nil
}

// SetNX stores the pair only if the key is absent or expired
func (ms *MemoryStore) SetNX(_ context.Context, key, value string, expiration time.Duration) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.clock.Now()
	if item, ok := ms.items[key]; ok && now.Before(item.expireTime) {
		return false, nil
	}
	ms.items[key] = &memoryItem{value: value, expireTime: now.Add(expiration)}
	return true, nil
}

// Get retrieves a value by key
func (ms *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	item, exists := ms.items[key]
	if !exists || !ms.clock.Now().Before(item.expireTime) {
		return "", false, nil
	}
	return item.value, true, nil
}

// Exists reports whether an unexpired value is stored under key
func (ms *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := ms.Get(ctx, key)
	return ok, err
}

// Delete removes keys
func (ms *MemoryStore) Delete(_ context.Context, keys ...string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, key := range keys {
		delete(ms.items, key)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix
func (ms *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	n := 0
	for key := range ms.items {
		if strings.HasPrefix(key, prefix) {
			delete(ms.items, key)
			n++
		}
	}
	return n, nil
}

// Close stops the cleanup goroutine
func (ms *MemoryStore) Close() error {
	ms.once.Do(func() { close(ms.stop) })
	return nil
}

// cleanupExpired periodically removes expired items
func (ms *MemoryStore) cleanupExpired() {
	ticker := ms.clock.Ticker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ms.stop:
			return
		case <-ticker.C:
			ms.mu.Lock()
			now := ms.clock.Now()
			for key, item := range ms.items {
				if !now.Before(item.expireTime) {
					delete(ms.items, key)
				}
			}
			ms.mu.Unlock()
		}
	}
}
