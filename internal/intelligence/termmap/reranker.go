// Package termmap resolves free-text diagnosis phrases to standardized
// terminology codes.  Retrieval is hybrid: a cheap lexical pass against the
// terminology store supplies a small candidate pool, then embedding cosine
// similarity reorders it.  The store has no native vector capability, which
// is why the two phases exist at all.
package termmap

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
)

// TextEmbedder defines the embedding capability the reranker depends on.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Candidate is one rerank input: the term text to compare against the query,
// plus an opaque payload carried through to the output untouched.
type Candidate struct {
	Term    string
	Payload interface{}
}

// RankedCandidate is a Candidate with its similarity score.
type RankedCandidate struct {
	Candidate
	Score float64
}

// Reranker orders candidates by semantic similarity to a query phrase.
//
// Rerank never fails: embedding errors degrade it.  A candidate that cannot
// be embedded scores 0; if the query itself cannot be embedded, every
// candidate scores 1.0 and the input order is preserved.  Ties always keep
// the original relative order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) []RankedCandidate
}

type embeddingReranker struct {
	embedder    TextEmbedder
	concurrency int
	logger      logging.Logger
}

// NewEmbeddingReranker creates a Reranker backed by the given embedding
// capability.  concurrency bounds the number of in-flight candidate
// embeddings; values below 1 mean no parallelism.
func NewEmbeddingReranker(embedder TextEmbedder, concurrency int, logger logging.Logger) Reranker {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &embeddingReranker{
		embedder:    embedder,
		concurrency: concurrency,
		logger:      logger,
	}
}

func (r *embeddingReranker) Rerank(ctx context.Context, query string, candidates []Candidate) []RankedCandidate {
	if len(candidates) == 0 {
		return []RankedCandidate{}
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, preserving lexical order",
			logging.String("query", query),
			logging.Err(err),
		)
		return uniformScores(candidates)
	}

	scores := make([]float64, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			vec, err := r.embedder.Embed(gctx, c.Term)
			if err != nil {
				r.logger.Warn("candidate embedding failed, scoring 0",
					logging.String("term", c.Term),
					logging.Err(err),
				)
				scores[i] = 0
				return nil
			}
			scores[i] = cosineSimilarity(queryVec, vec)
			return nil
		})
	}
	// Workers never return an error; each failure is absorbed as score 0.
	_ = g.Wait()

	ranked := make([]RankedCandidate, len(candidates))
	for i, c := range candidates {
		ranked[i] = RankedCandidate{Candidate: c, Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func uniformScores(candidates []Candidate) []RankedCandidate {
	ranked := make([]RankedCandidate, len(candidates))
	for i, c := range candidates {
		ranked[i] = RankedCandidate{Candidate: c, Score: 1.0}
	}
	return ranked
}

// cosineSimilarity returns dot(a,b) / (||a|| * ||b||), or 0 when either
// vector has zero magnitude or the lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
