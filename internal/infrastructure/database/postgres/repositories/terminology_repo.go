// Package repositories holds the pgx-backed data access layer.
package repositories

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scribemed/clinsight/internal/domain/consult"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	"github.com/scribemed/clinsight/pkg/errors"
)

// Description is one row of the SNOMED CT description table.
type Description struct {
	ID        int64
	ConceptID int64
	Term      string
	Active    bool
}

// TerminologyRepository provides lexical access to the descriptions table.
type TerminologyRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewTerminologyRepository creates the repository.
func NewTerminologyRepository(pool *pgxpool.Pool, logger logging.Logger) *TerminologyRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TerminologyRepository{pool: pool, logger: logger.Named("terminology-repo")}
}

// Search returns active descriptions whose term contains the query,
// case-insensitively.  Shorter terms sort first so the closest match leads
// the pool; zero matches is an empty slice.
func (r *TerminologyRepository) Search(ctx context.Context, query string, limit int) ([]consult.TerminologyCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []consult.TerminologyCandidate{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT concept_id, term
		FROM descriptions
		WHERE active AND term ILIKE '%' || $1 || '%'
		ORDER BY length(term), term
		LIMIT $2`,
		escapeLike(query), limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTermSearchFailed, "lexical search query")
	}
	defer rows.Close()

	results := []consult.TerminologyCandidate{}
	for rows.Next() {
		var conceptID int64
		var term string
		if err := rows.Scan(&conceptID, &term); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTermSearchFailed, "scan description row")
		}
		results = append(results, consult.TerminologyCandidate{
			Code: strconv.FormatInt(conceptID, 10),
			Term: term,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTermSearchFailed, "iterate description rows")
	}
	return results, nil
}

// ReplaceAll atomically swaps the table contents for a fresh snapshot:
// truncate plus bulk copy in one transaction.  Returns the number of rows
// written.
func (r *TerminologyRepository) ReplaceAll(ctx context.Context, descriptions []Description) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeTermImportFailed, "begin import transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE descriptions`); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeTermImportFailed, "truncate descriptions")
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"descriptions"},
		[]string{"id", "concept_id", "term", "active"},
		pgx.CopyFromSlice(len(descriptions), func(i int) ([]interface{}, error) {
			d := descriptions[i]
			return []interface{}{d.ID, d.ConceptID, d.Term, d.Active}, nil
		}),
	)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeTermImportFailed, "copy descriptions")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeTermImportFailed, "commit import")
	}

	r.logger.Info("terminology snapshot replaced", logging.Int64("rows", n))
	return n, nil
}

// InsertBatch appends a batch of descriptions, skipping rows whose id already
// exists.  Used by the streaming importer between snapshot replaces.
func (r *TerminologyRepository) InsertBatch(ctx context.Context, descriptions []Description) (int64, error) {
	if len(descriptions) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, d := range descriptions {
		batch.Queue(`
			INSERT INTO descriptions (id, concept_id, term, active)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET concept_id = $2, term = $3, active = $4`,
			d.ID, d.ConceptID, d.Term, d.Active,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var written int64
	for range descriptions {
		tag, err := results.Exec()
		if err != nil {
			return written, errors.Wrap(err, errors.ErrCodeTermImportFailed, "insert description batch")
		}
		written += tag.RowsAffected()
	}
	return written, nil
}

// Count returns the number of active descriptions.
func (r *TerminologyRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM descriptions WHERE active`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeTermSearchFailed, "count descriptions")
	}
	return n, nil
}

// escapeLike neutralizes LIKE wildcards in user input so a query like "100%"
// matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
