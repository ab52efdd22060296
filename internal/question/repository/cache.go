package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/quizbank/quizbank/internal/question"
	"github.com/quizbank/quizbank/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// CachedRepo puts Redis in front of another Repository.
//
// Only pair existence is cached, and only positively: the store is
// append-only, so a pair seen once stays present. MostRecent always reads the
// wrapped store. Redis failures fall back to the wrapped store.
//
// The prefix must identify the backing store. Two stores sharing a prefix
// would see each other's pairs.
type CachedRepo struct {
	source Repository
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCachedRepo wraps source. A nil client returns source unchanged.
func NewCachedRepo(source Repository, client *redis.Client, prefix string, ttl time.Duration) Repository {
	if client == nil {
		return source
	}
	if prefix == "" {
		prefix = "quizbank:"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedRepo{source: source, client: client, prefix: prefix, ttl: ttl}
}

func (c *CachedRepo) pairKey(text, answer string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + answer))
	return c.prefix + "pair:" + hex.EncodeToString(sum[:])
}

func (c *CachedRepo) Exists(ctx context.Context, text, answer string) (bool, error) {
	key := c.pairKey(text, answer)
	if n, err := c.client.Exists(ctx, key).Result(); err == nil && n > 0 {
		return true, nil
	}
	ok, err := c.source.Exists(ctx, text, answer)
	if err != nil {
		return false, err
	}
	if ok {
		c.remember(ctx, key)
	}
	return ok, nil
}

func (c *CachedRepo) Insert(ctx context.Context, text, answer string, acceptedAt time.Time) (question.InsertResult, error) {
	res, err := c.source.Insert(ctx, text, answer, acceptedAt)
	if err != nil || res.Outcome != question.OutcomeInserted {
		return res, err
	}
	c.remember(ctx, c.pairKey(text, answer))
	return res, nil
}

// remember marks a pair as present. A failed write only costs a store lookup
// later.
func (c *CachedRepo) remember(ctx context.Context, key string) {
	if err := c.client.Set(ctx, key, "1", c.ttl).Err(); err != nil {
		logger.Debugf("cache pair %s: %v", key, err)
	}
}

func (c *CachedRepo) MostRecent(ctx context.Context) (*question.Record, error) {
	return c.source.MostRecent(ctx)
}
