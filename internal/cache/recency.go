// Package cache implements the bounded, expiring recent-message log kept
// in Redis. It is non-authoritative: an empty read means "ask the store",
// never "no messages exist".
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// groupKey returns the cache key for a group conversation.
func groupKey(groupID string) string {
	return "group:messages:" + groupID
}

// privateKey returns the cache key for a private pair conversation.
func privateKey(chatID string) string {
	return "private:messages:" + chatID
}

// RecencyCache is a per-conversation capped list of serialized messages.
// Entries are stored oldest to newest; reads return newest first to match
// store pagination.
type RecencyCache struct {
	client *redis.Client
	window int
	ttl    time.Duration
}

func NewRecencyCache(client *redis.Client, window int, ttl time.Duration) *RecencyCache {
	return &RecencyCache{client: client, window: window, ttl: ttl}
}

// AppendGroup pushes one serialized message onto a group's log.
func (c *RecencyCache) AppendGroup(ctx context.Context, groupID string, entry []byte) error {
	return c.append(ctx, groupKey(groupID), entry)
}

// AppendPrivate pushes one serialized message onto a pair chat's log.
func (c *RecencyCache) AppendPrivate(ctx context.Context, chatID string, entry []byte) error {
	return c.append(ctx, privateKey(chatID), entry)
}

// append is the write-through path: push to the tail, trim to the window,
// refresh the TTL. The trim keeps the newest entries, so the log is always
// a suffix of true history.
func (c *RecencyCache) append(ctx context.Context, key string, entry []byte) error {
	pipe := c.client.Pipeline()
	pipe.RPush(ctx, key, entry)
	pipe.LTrim(ctx, key, int64(-c.window), -1)
	pipe.Expire(ctx, key, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// ReadGroup returns one page of a group's cached log, newest first.
// An empty result is ambiguous between "cold cache" and "no messages";
// callers must fall back to the store.
func (c *RecencyCache) ReadGroup(ctx context.Context, groupID string, page, limit int) ([]json.RawMessage, error) {
	return c.read(ctx, groupKey(groupID), page, limit)
}

// ReadPrivate returns one page of a pair chat's cached log, newest first.
func (c *RecencyCache) ReadPrivate(ctx context.Context, chatID string, page, limit int) ([]json.RawMessage, error) {
	return c.read(ctx, privateKey(chatID), page, limit)
}

func (c *RecencyCache) read(ctx context.Context, key string, page, limit int) ([]json.RawMessage, error) {
	if page < 1 {
		page = 1
	}
	// The list is chronological, so page N (newest first) is the N-th
	// slice counted from the tail.
	start := int64(-(page * limit))
	end := int64(-((page-1)*limit) - 1)

	entries, err := c.client.LRange(ctx, key, start, end).Result()
	if err != nil {
		return nil, err
	}

	// Reverse into newest-first order.
	out := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = json.RawMessage(e)
	}
	return out, nil
}

// ReplaceGroup repopulates a group's log from a store read. Entries are
// given newest first (store page order) and written chronologically. The
// whole list is swapped so a partial prior state never survives.
func (c *RecencyCache) ReplaceGroup(ctx context.Context, groupID string, newestFirst []json.RawMessage) error {
	return c.replace(ctx, groupKey(groupID), newestFirst)
}

// ReplacePrivate repopulates a pair chat's log from a store read.
func (c *RecencyCache) ReplacePrivate(ctx context.Context, chatID string, newestFirst []json.RawMessage) error {
	return c.replace(ctx, privateKey(chatID), newestFirst)
}

func (c *RecencyCache) replace(ctx context.Context, key string, newestFirst []json.RawMessage) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	if len(newestFirst) > 0 {
		chronological := make([]interface{}, len(newestFirst))
		for i, e := range newestFirst {
			chronological[len(newestFirst)-1-i] = []byte(e)
		}
		pipe.RPush(ctx, key, chronological...)
		pipe.LTrim(ctx, key, int64(-c.window), -1)
		pipe.Expire(ctx, key, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
