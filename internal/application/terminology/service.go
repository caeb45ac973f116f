package terminology

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/scribemed/clinsight/internal/domain/consult"
	"github.com/scribemed/clinsight/internal/infrastructure/database/redis"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/prometheus"
	"github.com/scribemed/clinsight/internal/intelligence/termmap"
)

const searchCacheTTL = 15 * time.Minute

// SearchService fronts the configured lexical backend (PostgreSQL or
// OpenSearch) with a read-through cache.  It satisfies the mapping stage's
// searcher contract, so the hybrid mapper benefits from the same cache.
type SearchService struct {
	backend     termmap.LexicalSearcher
	backendName string
	cache       redis.Cache
	metrics     *prometheus.AppMetrics
	logger      logging.Logger
}

var _ termmap.LexicalSearcher = (*SearchService)(nil)

// NewSearchService wires the facade.  cache and metrics may be nil.
func NewSearchService(backend termmap.LexicalSearcher, backendName string, cache redis.Cache, metrics *prometheus.AppMetrics, logger logging.Logger) *SearchService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SearchService{
		backend:     backend,
		backendName: backendName,
		cache:       cache,
		metrics:     metrics,
		logger:      logger.Named("term-search"),
	}
}

// Search returns up to limit candidates for the query, cheapest source first:
// cache, then the backend.  The result slice is never nil on success.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]consult.TerminologyCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []consult.TerminologyCandidate{}, nil
	}

	start := time.Now()
	candidates, err := s.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordLexicalSearch(s.backendName, len(candidates), time.Since(start))
	}
	if candidates == nil {
		candidates = []consult.TerminologyCandidate{}
	}
	return candidates, nil
}

func (s *SearchService) search(ctx context.Context, query string, limit int) ([]consult.TerminologyCandidate, error) {
	if s.cache == nil {
		return s.backend.Search(ctx, query, limit)
	}

	var candidates []consult.TerminologyCandidate
	var loaded []consult.TerminologyCandidate
	var backendErr error
	loaderRan := false
	err := s.cache.GetOrSet(ctx, searchCacheKey(query, limit), &candidates, searchCacheTTL,
		func(ctx context.Context) (interface{}, error) {
			loaderRan = true
			loaded, backendErr = s.backend.Search(ctx, query, limit)
			return loaded, backendErr
		})
	if err == nil {
		return candidates, nil
	}
	if loaderRan {
		// The backend already answered (or failed); never repeat the call
		// because the cache round-trip misbehaved.
		return loaded, backendErr
	}
	s.logger.Warn("search cache unavailable, querying backend directly", logging.Err(err))
	return s.backend.Search(ctx, query, limit)
}

func searchCacheKey(query string, limit int) string {
	sum := sha256.Sum256([]byte(strings.ToLower(query)))
	return "termsearch:" + hex.EncodeToString(sum[:8]) + ":" + strconv.Itoa(limit)
}
