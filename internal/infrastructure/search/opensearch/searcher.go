package opensearch

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/scribemed/clinsight/internal/domain/consult"
	"github.com/scribemed/clinsight/pkg/errors"
)

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source struct {
				ConceptID string `json:"concept_id"`
				Term      string `json:"term"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a match query against the term field and returns candidates in
// relevance order.  Satisfies the hybrid mapper's lexical collaborator
// contract: zero hits is an empty slice.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]consult.TerminologyCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []consult.TerminologyCandidate{}, nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"term": map[string]interface{}{
					"query":    query,
					"operator": "and",
				},
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode search query")
	}

	req := opensearchapi.SearchRequest{
		Index: []string{c.index},
		Body:  strings.NewReader(string(body)),
	}
	resp, err := req.Do(ctx, c.os)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTermSearchFailed, "opensearch query")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, errors.Newf(errors.ErrCodeTermSearchFailed, "opensearch returned %s", resp.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTermSearchFailed, "decode search response")
	}

	results := []consult.TerminologyCandidate{}
	for _, hit := range parsed.Hits.Hits {
		results = append(results, consult.TerminologyCandidate{
			Code: hit.Source.ConceptID,
			Term: hit.Source.Term,
		})
	}
	return results, nil
}
