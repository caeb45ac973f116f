package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/scribemed/clinsight/internal/infrastructure/database/redis"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
)

// Embedder is the minimal embedding surface the reranker consumes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CachedEmbedder fronts the runtime's embed capability with a redis cache.
// Terminology terms repeat heavily across runs (the lexical pool for a given
// phrase is stable), so most rerank embeddings are cache hits after warmup.
// Concurrent requests for the same text are collapsed to a single runtime
// call.
type CachedEmbedder struct {
	inner     Embedder
	cache     redis.Cache
	modelName string
	ttl       time.Duration
	group     singleflight.Group
	logger    logging.Logger
}

// NewCachedEmbedder wraps inner with a cache.  A nil cache yields a
// passthrough embedder.
func NewCachedEmbedder(inner Embedder, cache redis.Cache, modelName string, ttl time.Duration, logger logging.Logger) *CachedEmbedder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CachedEmbedder{
		inner:     inner,
		cache:     cache,
		modelName: modelName,
		ttl:       ttl,
		logger:    logger.Named("embed-cache"),
	}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache == nil {
		return e.inner.Embed(ctx, text)
	}

	key := e.cacheKey(text)
	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		var vec []float32
		cacheErr := e.cache.Get(ctx, key, &vec)
		if cacheErr == nil && len(vec) > 0 {
			return vec, nil
		}
		if cacheErr != nil && cacheErr != redis.ErrCacheMiss {
			e.logger.Warn("embedding cache read failed", logging.Err(cacheErr))
		}

		vec, err := e.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if setErr := e.cache.Set(ctx, key, vec, e.ttl); setErr != nil {
			e.logger.Warn("embedding cache write failed", logging.Err(setErr))
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// cacheKey hashes the text so arbitrary clinical phrases never appear as
// redis keys.
func (e *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(e.modelName + "\x00" + text))
	return "embed:" + hex.EncodeToString(sum[:])
}
