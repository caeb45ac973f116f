package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	"github.com/scribemed/clinsight/pkg/errors"
)

// Doc is one indexed terminology description.
type Doc struct {
	ID        int64  `json:"-"`
	ConceptID string `json:"concept_id"`
	Term      string `json:"term"`
}

// IndexDescriptions bulk-indexes a batch of descriptions, overwriting
// existing documents by id.  The importer calls this per batch when the
// OpenSearch backend is enabled.
func (c *Client) IndexDescriptions(ctx context.Context, docs []Doc) error {
	if len(docs) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, d := range docs {
		sb.WriteString(fmt.Sprintf(`{"index":{"_index":%q,"_id":"%d"}}`, c.index, d.ID))
		sb.WriteByte('\n')
		line, err := json.Marshal(d)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "encode description doc")
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}

	req := opensearchapi.BulkRequest{Body: strings.NewReader(sb.String())}
	resp, err := req.Do(ctx, c.os)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeTermImportFailed, "bulk index descriptions")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return errors.Newf(errors.ErrCodeTermImportFailed, "bulk index returned %s", resp.Status())
	}

	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.Wrap(err, errors.ErrCodeTermImportFailed, "decode bulk response")
	}
	if result.Errors {
		c.logger.Warn("bulk index completed with item errors", logging.Int("docs", len(docs)))
	}
	return nil
}
