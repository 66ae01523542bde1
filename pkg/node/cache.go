package node

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"deltanet/pkg/model"
)

const defaultCacheTTL = 5 * time.Minute

// ResponseCache is an optional redis read-through cache for artifact
// queries. A nil cache is a no-op, so callers never branch on whether
// caching is enabled.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResponseCache connects to redis at addr and verifies the connection.
func NewResponseCache(addr string) (*ResponseCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &ResponseCache{client: rdb, ttl: defaultCacheTTL}, nil
}

func artifactKey(id string) string {
	return "deltanet:artifact:" + id
}

// GetArtifact returns a cached artifact (with its assets already
// attached) when present.
func (c *ResponseCache) GetArtifact(ctx context.Context, id string) (*model.Artifact, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, artifactKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var a model.Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, false
	}
	return &a, true
}

func (c *ResponseCache) PutArtifact(ctx context.Context, a model.Artifact) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, artifactKey(a.ID), raw, c.ttl).Err()
}

func (c *ResponseCache) InvalidateArtifact(ctx context.Context, id string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, artifactKey(id)).Err()
}

func (c *ResponseCache) Close() {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Close()
}
