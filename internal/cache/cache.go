// Package cache keeps ranked leaderboards in redis so repeated reads of a
// finished task skip the SQL join.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ShayCichocki/agentboard/internal/metrics"
	"github.com/ShayCichocki/agentboard/internal/state"
)

// DefaultTTL applies when no TTL is configured.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "agentboard:leaderboard:"

// Cache stores leaderboards keyed by task ID.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to redis at addr and verifies the connection.
func New(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}, nil
}

// Close closes the redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

func key(taskID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, taskID)
}

// Get returns the cached leaderboard for taskID. ok is false on a miss.
func (c *Cache) Get(ctx context.Context, taskID int64) (entries []state.LeaderboardEntry, ok bool, err error) {
	data, err := c.client.Get(ctx, key(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get leaderboard %d: %w", taskID, err)
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("decode leaderboard %d: %w", taskID, err)
	}
	return entries, true, nil
}

// Set stores entries for taskID with the cache TTL.
func (c *Cache) Set(ctx context.Context, taskID int64, entries []state.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode leaderboard %d: %w", taskID, err)
	}
	return c.client.Set(ctx, key(taskID), data, c.ttl).Err()
}

// Invalidate drops the cached leaderboard for taskID.
func (c *Cache) Invalidate(ctx context.Context, taskID int64) error {
	return c.client.Del(ctx, key(taskID)).Err()
}

// LeaderboardReader reads leaderboards through an optional cache.
type LeaderboardReader struct {
	store state.ReportStore
	cache *Cache
}

// NewLeaderboardReader wraps store. A nil cache reads straight from store.
func NewLeaderboardReader(store state.ReportStore, cache *Cache) *LeaderboardReader {
	return &LeaderboardReader{store: store, cache: cache}
}

// Leaderboard returns the ranked entries for taskID. Cache failures are
// logged and fall through to the store. Only settled leaderboards are
// cached; one read while the run is still writing is served uncached.
func (r *LeaderboardReader) Leaderboard(ctx context.Context, taskID int64) ([]state.LeaderboardEntry, error) {
	if r.cache != nil {
		entries, ok, err := r.cache.Get(ctx, taskID)
		if err != nil {
			log.Printf("[cache] %v", err)
		}
		metrics.RecordCacheLookup(ok)
		if ok {
			return entries, nil
		}
	}

	entries, err := r.store.Leaderboard(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil && Settled(entries) {
		if err := r.cache.Set(ctx, taskID, entries); err != nil {
			log.Printf("[cache] store leaderboard %d: %v", taskID, err)
		}
	}
	return entries, nil
}

// Settled reports whether no further write can change entries: there is at
// least one entry, every execution is terminal and every execution has an
// evaluation.
func Settled(entries []state.LeaderboardEntry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if !e.Execution.Status.Terminal() || e.Evaluation == nil {
			return false
		}
	}
	return true
}

// Invalidate drops any cached copy of taskID's leaderboard.
func (r *LeaderboardReader) Invalidate(ctx context.Context, taskID int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, taskID); err != nil {
		log.Printf("[cache] invalidate leaderboard %d: %v", taskID, err)
	}
}
