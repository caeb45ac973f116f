package terminology

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribemed/clinsight/internal/infrastructure/database/postgres/repositories"
	"github.com/scribemed/clinsight/internal/infrastructure/search/opensearch"
	"github.com/scribemed/clinsight/pkg/errors"
)

const rf2Header = "id\teffectiveTime\tactive\tmoduleId\tconceptId\tlanguageCode\ttypeId\tterm\tcaseSignificanceId"

func rf2Row(id string, active string, conceptID, term string) string {
	return strings.Join([]string{id, "20240101", active, "900000000000207008", conceptID, "en", "900000000000013009", term, "900000000000448009"}, "\t")
}

type mockWriter struct {
	insertFn func(ctx context.Context, descriptions []repositories.Description) (int64, error)
	batches  [][]repositories.Description
}

func (m *mockWriter) InsertBatch(ctx context.Context, descriptions []repositories.Description) (int64, error) {
	copied := make([]repositories.Description, len(descriptions))
	copy(copied, descriptions)
	m.batches = append(m.batches, copied)
	if m.insertFn != nil {
		return m.insertFn(ctx, descriptions)
	}
	return int64(len(descriptions)), nil
}

type mockIndexer struct {
	indexFn func(ctx context.Context, docs []opensearch.Doc) error
	docs    []opensearch.Doc
}

func (m *mockIndexer) IndexDescriptions(ctx context.Context, docs []opensearch.Doc) error {
	m.docs = append(m.docs, docs...)
	if m.indexFn != nil {
		return m.indexFn(ctx, docs)
	}
	return nil
}

func TestImporter_ActiveRowsOnly(t *testing.T) {
	input := strings.Join([]string{
		rf2Header,
		rf2Row("101", "1", "22298006", "Myocardial infarction"),
		rf2Row("102", "0", "22298006", "Heart attack (retired)"),
		rf2Row("103", "1", "233604007", "Pneumonia"),
	}, "\n")

	writer := &mockWriter{}
	imp := NewImporter(writer, nil, nil, nil)

	stats, err := imp.Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Read)
	assert.Equal(t, int64(2), stats.Imported)
	assert.Equal(t, int64(1), stats.SkippedInactive)
	assert.Zero(t, stats.SkippedMalformed)

	require.Len(t, writer.batches, 1)
	batch := writer.batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, int64(101), batch[0].ID)
	assert.Equal(t, int64(22298006), batch[0].ConceptID)
	assert.Equal(t, "Myocardial infarction", batch[0].Term)
	assert.True(t, batch[0].Active)
	assert.Equal(t, "Pneumonia", batch[1].Term)
}

func TestImporter_MalformedRowsSkipped(t *testing.T) {
	input := strings.Join([]string{
		rf2Header,
		rf2Row("101", "1", "22298006", "Myocardial infarction"),
		"not\ta\tvalid\trow",
		rf2Row("bad-id", "1", "22298006", "x-ray finding"),
		rf2Row("104", "1", "22298006", "   "),
	}, "\n")

	writer := &mockWriter{}
	imp := NewImporter(writer, nil, nil, nil)

	stats, err := imp.Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Read)
	assert.Equal(t, int64(1), stats.Imported)
	assert.Equal(t, int64(3), stats.SkippedMalformed)
}

func TestImporter_RejectsBadHeader(t *testing.T) {
	writer := &mockWriter{}
	imp := NewImporter(writer, nil, nil, nil)

	_, err := imp.Import(context.Background(), strings.NewReader("code,display\n1,flu"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTermSourceInvalid))
	assert.Empty(t, writer.batches)
}

func TestImporter_EmptySource(t *testing.T) {
	imp := NewImporter(&mockWriter{}, nil, nil, nil)
	_, err := imp.Import(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTermSourceInvalid))
}

func TestImporter_InsertFailureAborts(t *testing.T) {
	writer := &mockWriter{
		insertFn: func(context.Context, []repositories.Description) (int64, error) {
			return 0, errors.New(errors.ErrCodeDatabaseError, "connection lost")
		},
	}
	imp := NewImporter(writer, nil, nil, nil)

	input := rf2Header + "\n" + rf2Row("101", "1", "22298006", "Myocardial infarction")
	stats, err := imp.Import(context.Background(), strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTermImportFailed))
	assert.Zero(t, stats.Imported)
}

func TestImporter_MirrorsToIndexer(t *testing.T) {
	writer := &mockWriter{}
	indexer := &mockIndexer{}
	imp := NewImporter(writer, indexer, nil, nil)

	input := strings.Join([]string{
		rf2Header,
		rf2Row("101", "1", "22298006", "Myocardial infarction"),
		rf2Row("103", "1", "233604007", "Pneumonia"),
	}, "\n")

	_, err := imp.Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, indexer.docs, 2)
	assert.Equal(t, int64(22298006), indexer.docs[0].ConceptID)
	assert.Equal(t, "Pneumonia", indexer.docs[1].Term)
}

func TestImporter_IndexerFailureIsNotFatal(t *testing.T) {
	writer := &mockWriter{}
	indexer := &mockIndexer{
		indexFn: func(context.Context, []opensearch.Doc) error {
			return errors.New(errors.ErrCodeTermStoreNotReady, "index down")
		},
	}
	imp := NewImporter(writer, indexer, nil, nil)

	input := rf2Header + "\n" + rf2Row("101", "1", "22298006", "Myocardial infarction")
	stats, err := imp.Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Imported)
}

type mockFetcher struct {
	fetchFn func(ctx context.Context, object string) (io.ReadCloser, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, object string) (io.ReadCloser, error) {
	return m.fetchFn(ctx, object)
}

func TestImporter_ImportSnapshot(t *testing.T) {
	input := rf2Header + "\n" + rf2Row("101", "1", "22298006", "Myocardial infarction")
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, object string) (io.ReadCloser, error) {
			assert.Equal(t, "sct/descriptions.txt", object)
			return io.NopCloser(strings.NewReader(input)), nil
		},
	}
	writer := &mockWriter{}
	imp := NewImporter(writer, nil, fetcher, nil)

	stats, err := imp.ImportSnapshot(context.Background(), "sct/descriptions.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Imported)
}

func TestImporter_ImportSnapshot_NoStore(t *testing.T) {
	imp := NewImporter(&mockWriter{}, nil, nil, nil)
	_, err := imp.ImportSnapshot(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTermSourceInvalid))
}

func TestImporter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := rf2Header + "\n" + rf2Row("101", "1", "22298006", "Myocardial infarction")
	imp := NewImporter(&mockWriter{}, nil, nil, nil)

	_, err := imp.Import(ctx, strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTermImportFailed))
}
