package termmap

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/scribemed/clinsight/internal/domain/consult"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
)

// LexicalSearcher is the terminology store collaborator: case-insensitive
// substring retrieval over stored descriptions.  Zero matches is an empty
// slice, never an error.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]consult.TerminologyCandidate, error)
}

// Mapper maps diagnosis phrases onto ranked terminology candidates.
//
// MapPhrase is total: storage and embedding failures degrade to an empty or
// lexically-ordered candidate set rather than an error, so callers never
// branch on failure.
type Mapper interface {
	MapPhrase(ctx context.Context, phrase string) consult.PhraseCandidateSet
	MapAll(ctx context.Context, phrases []string) []consult.PhraseCandidateSet
}

// MapperConfig bounds the two retrieval phases.
type MapperConfig struct {
	// LexicalLimit caps the first-pass candidate pool.
	LexicalLimit int
	// RerankKeep caps the final candidate count after reranking.
	RerankKeep int
}

type hybridMapper struct {
	searcher LexicalSearcher
	reranker Reranker
	config   MapperConfig
	logger   logging.Logger
}

// NewHybridMapper creates a Mapper combining lexical retrieval with
// embedding rerank.
func NewHybridMapper(searcher LexicalSearcher, reranker Reranker, config MapperConfig, logger logging.Logger) Mapper {
	if config.LexicalLimit < 1 {
		config.LexicalLimit = 10
	}
	if config.RerankKeep < 1 {
		config.RerankKeep = 3
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &hybridMapper{
		searcher: searcher,
		reranker: reranker,
		config:   config,
		logger:   logger,
	}
}

func (m *hybridMapper) MapPhrase(ctx context.Context, phrase string) consult.PhraseCandidateSet {
	set := consult.PhraseCandidateSet{
		Phrase:     phrase,
		Candidates: []consult.TerminologyCandidate{},
	}

	pool := m.lexicalPool(ctx, phrase)
	if len(pool) == 0 {
		return set
	}

	candidates := make([]Candidate, len(pool))
	for i, c := range pool {
		candidates[i] = Candidate{Term: c.Term, Payload: c}
	}

	ranked := m.reranker.Rerank(ctx, phrase, candidates)
	if len(ranked) > m.config.RerankKeep {
		ranked = ranked[:m.config.RerankKeep]
	}

	for _, rc := range ranked {
		hit := rc.Payload.(consult.TerminologyCandidate)
		hit.Score = rc.Score
		set.Candidates = append(set.Candidates, hit)
	}
	return set
}

// lexicalPool runs the two-step lexical retrieval: the full phrase first,
// then a single retry with the phrase's lead keyword.
func (m *hybridMapper) lexicalPool(ctx context.Context, phrase string) []consult.TerminologyCandidate {
	pool, err := m.searcher.Search(ctx, phrase, m.config.LexicalLimit)
	if err != nil {
		m.logger.Warn("lexical search failed",
			logging.String("phrase", phrase),
			logging.Err(err),
		)
		return nil
	}
	if len(pool) > 0 {
		return pool
	}

	keyword := consult.FirstKeyword(phrase)
	if keyword == "" || keyword == phrase {
		return nil
	}
	pool, err = m.searcher.Search(ctx, keyword, m.config.LexicalLimit)
	if err != nil {
		m.logger.Warn("lexical keyword retry failed",
			logging.String("keyword", keyword),
			logging.Err(err),
		)
		return nil
	}
	return pool
}

func (m *hybridMapper) MapAll(ctx context.Context, phrases []string) []consult.PhraseCandidateSet {
	sets := make([]consult.PhraseCandidateSet, len(phrases))
	if len(phrases) == 0 {
		return sets
	}

	// Phrases are independent; results are merged back by index so the
	// output order always matches the input order.
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range phrases {
		i, p := i, p
		g.Go(func() error {
			sets[i] = m.MapPhrase(gctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return sets
}
