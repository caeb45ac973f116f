// Package terminology manages the clinical terminology store: importing
// release snapshots into PostgreSQL (and optionally OpenSearch) and serving
// lexical search to the mapping stage.
package terminology

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/scribemed/clinsight/internal/infrastructure/database/postgres/repositories"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	"github.com/scribemed/clinsight/internal/infrastructure/search/opensearch"
	"github.com/scribemed/clinsight/pkg/errors"
)

// RF2 description files carry nine tab-separated columns.
const rf2ColumnCount = 9

// column offsets within an RF2 description row
const (
	colID        = 0
	colActive    = 2
	colConceptID = 4
	colTerm      = 7
)

const importBatchSize = 5000

// DescriptionWriter is the subset of the terminology repository the importer
// needs.
type DescriptionWriter interface {
	InsertBatch(ctx context.Context, descriptions []repositories.Description) (int64, error)
}

// DescriptionIndexer mirrors imported rows into the lexical search index.
type DescriptionIndexer interface {
	IndexDescriptions(ctx context.Context, docs []opensearch.Doc) error
}

// SnapshotFetcher retrieves a release snapshot object by name.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, object string) (io.ReadCloser, error)
}

// ImportStats summarizes one snapshot import.
type ImportStats struct {
	Read             int64 `json:"read"`
	Imported         int64 `json:"imported"`
	SkippedInactive  int64 `json:"skipped_inactive"`
	SkippedMalformed int64 `json:"skipped_malformed"`
}

// Importer streams RF2 description snapshots into the terminology store.
// Only active rows are kept; inactive and malformed rows are counted and
// skipped, never fatal.
type Importer struct {
	writer  DescriptionWriter
	indexer DescriptionIndexer
	store   SnapshotFetcher
	logger  logging.Logger
}

// NewImporter wires the importer.  indexer and store may be nil: without an
// indexer rows land in PostgreSQL only, without a store only local files can
// be imported.
func NewImporter(writer DescriptionWriter, indexer DescriptionIndexer, store SnapshotFetcher, logger logging.Logger) *Importer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Importer{
		writer:  writer,
		indexer: indexer,
		store:   store,
		logger:  logger.Named("term-import"),
	}
}

// ImportFile imports an RF2 description file from the local filesystem.
func (i *Importer) ImportFile(ctx context.Context, path string) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, errors.Wrap(err, errors.ErrCodeTermSourceInvalid, "cannot open snapshot file "+path)
	}
	defer f.Close()
	return i.Import(ctx, f)
}

// ImportSnapshot imports an RF2 description file from the snapshot object
// store.
func (i *Importer) ImportSnapshot(ctx context.Context, object string) (ImportStats, error) {
	if i.store == nil {
		return ImportStats{}, errors.New(errors.ErrCodeTermSourceInvalid, "no snapshot store configured")
	}
	rc, err := i.store.Fetch(ctx, object)
	if err != nil {
		return ImportStats{}, errors.Wrap(err, errors.ErrCodeTermSourceInvalid, "cannot fetch snapshot "+object)
	}
	defer rc.Close()
	return i.Import(ctx, rc)
}

// Import streams tab-separated RF2 description rows from r into the store in
// batches.  The first line must be the RF2 header.
func (i *Importer) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	var stats ImportStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return stats, errors.New(errors.ErrCodeTermSourceInvalid, "snapshot is empty")
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) != rf2ColumnCount || header[colID] != "id" || header[colTerm] != "term" {
		return stats, errors.New(errors.ErrCodeTermSourceInvalid, "snapshot header is not an RF2 description file")
	}

	batch := make([]repositories.Description, 0, importBatchSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, errors.Wrap(err, errors.ErrCodeTermImportFailed, "import cancelled")
		}
		stats.Read++

		desc, ok, active := parseRow(scanner.Text())
		if !ok {
			stats.SkippedMalformed++
			continue
		}
		if !active {
			stats.SkippedInactive++
			continue
		}

		batch = append(batch, desc)
		if len(batch) == importBatchSize {
			if err := i.flush(ctx, batch); err != nil {
				return stats, err
			}
			stats.Imported += int64(len(batch))
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, errors.Wrap(err, errors.ErrCodeTermSourceInvalid, "snapshot read failed")
	}

	if len(batch) > 0 {
		if err := i.flush(ctx, batch); err != nil {
			return stats, err
		}
		stats.Imported += int64(len(batch))
	}

	i.logger.Info("snapshot import finished",
		logging.Int64("read", stats.Read),
		logging.Int64("imported", stats.Imported),
		logging.Int64("skipped_inactive", stats.SkippedInactive),
		logging.Int64("skipped_malformed", stats.SkippedMalformed),
	)
	return stats, nil
}

func (i *Importer) flush(ctx context.Context, batch []repositories.Description) error {
	if _, err := i.writer.InsertBatch(ctx, batch); err != nil {
		return errors.Wrap(err, errors.ErrCodeTermImportFailed, "batch insert failed")
	}
	if i.indexer == nil {
		return nil
	}
	docs := make([]opensearch.Doc, len(batch))
	for j, d := range batch {
		docs[j] = opensearch.Doc{ID: d.ID, ConceptID: strconv.FormatInt(d.ConceptID, 10), Term: d.Term}
	}
	if err := i.indexer.IndexDescriptions(ctx, docs); err != nil {
		// The relational store is authoritative; a lagging index is logged,
		// not fatal.
		i.logger.Warn("search index update failed", logging.Err(err))
	}
	return nil
}

// parseRow decodes one RF2 description row.  ok is false for malformed rows;
// active reports the row's active flag.
func parseRow(line string) (desc repositories.Description, ok bool, active bool) {
	fields := strings.Split(line, "\t")
	if len(fields) != rf2ColumnCount {
		return repositories.Description{}, false, false
	}

	id, err := strconv.ParseInt(fields[colID], 10, 64)
	if err != nil {
		return repositories.Description{}, false, false
	}
	conceptID, err := strconv.ParseInt(fields[colConceptID], 10, 64)
	if err != nil {
		return repositories.Description{}, false, false
	}
	term := strings.TrimSpace(fields[colTerm])
	if term == "" {
		return repositories.Description{}, false, false
	}

	return repositories.Description{
		ID:        id,
		ConceptID: conceptID,
		Term:      term,
		Active:    true,
	}, true, fields[colActive] == "1"
}
