package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

const defaultNamespace = "retina:prob"

// ProbabilityCache keeps model outputs for recently seen images so repeated
// uploads skip the forward pass. Entries expire after ttl.
type ProbabilityCache struct {
	client    redisv9.Cmdable
	ttl       time.Duration
	namespace string
}

func NewProbabilityCache(client redisv9.Cmdable, ttl time.Duration, namespace string) *ProbabilityCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &ProbabilityCache{
		client:    client,
		ttl:       ttl,
		namespace: namespace,
	}
}

func (c *ProbabilityCache) Get(ctx context.Context, digest string) (float64, bool, error) {
	raw, err := c.client.Get(ctx, c.key(digest)).Result()
	if err == redisv9.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get probability failed: %w", err)
	}

	p, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse cached probability failed: %w", err)
	}
	return p, true, nil
}

func (c *ProbabilityCache) Set(ctx context.Context, digest string, p float64) error {
	value := strconv.FormatFloat(p, 'g', -1, 64)
	if err := c.client.Set(ctx, c.key(digest), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set probability failed: %w", err)
	}
	return nil
}

func (c *ProbabilityCache) key(digest string) string {
	return fmt.Sprintf("%s:%s", c.namespace, digest)
}
