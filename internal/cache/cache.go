// Package cache keeps computed portfolio summaries in Redis.
//
// Entries are never deleted one by one. Every write to the ledger bumps a
// version counter that is part of each key, so stale summaries simply stop
// being addressed and expire on their TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-ledger/internal/report"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

const (
	keyPrefix  = "loan-ledger:summary"
	versionKey = keyPrefix + ":version"
)

// SummaryCache stores summaries per scope (all loans, or one owner) under
// a ledger version. Callers read the version before loading the ledger and
// write back under that same version, so a summary computed from data that
// was changed meanwhile lands under a key nobody reads.
type SummaryCache interface {
	Version(ctx context.Context) (string, error)
	Get(ctx context.Context, version, scope string) (*report.Summary, bool, error)
	Set(ctx context.Context, version, scope string, summary report.Summary) error
	Invalidate(ctx context.Context) error
}

type RedisSummaryCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisSummaryCache(client redis.Cmdable, ttl time.Duration) *RedisSummaryCache {
	return &RedisSummaryCache{client: client, ttl: ttl}
}

func key(version, scope string) string {
	return fmt.Sprintf("%s:v%s:%s", keyPrefix, version, scope)
}

// Version returns the current ledger version, "0" before the first write.
func (c *RedisSummaryCache) Version(ctx context.Context) (string, error) {
	version, err := c.client.Get(ctx, versionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	if err != nil {
		return "", customError.WrapCacheError(err)
	}
	return version, nil
}

func (c *RedisSummaryCache) Get(ctx context.Context, version, scope string) (*report.Summary, bool, error) {
	raw, err := c.client.Get(ctx, key(version, scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, customError.WrapCacheError(err)
	}

	var summary report.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, false, customError.WrapCacheError(err)
	}
	return &summary, true, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, version, scope string, summary report.Summary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return customError.WrapCacheError(err)
	}
	if err := c.client.Set(ctx, key(version, scope), raw, c.ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

// Noop is used when Redis is disabled: every lookup misses.
type Noop struct{}

func (Noop) Version(context.Context) (string, error) {
	return "0", nil
}

func (Noop) Get(context.Context, string, string) (*report.Summary, bool, error) {
	return nil, false, nil
}

func (Noop) Set(context.Context, string, string, report.Summary) error {
	return nil
}

func (Noop) Invalidate(context.Context) error {
	return nil
}
