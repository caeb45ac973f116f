package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/scribemed/clinsight/pkg/types/api"
)

// TerminologyClient calls the terminology endpoints.
type TerminologyClient struct {
	c *Client
}

// Search looks up terminology candidates for a query.
func (t *TerminologyClient) Search(ctx context.Context, query string, limit int) (*api.SearchResult, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var result api.SearchResult
	if err := t.c.get(ctx, "/api/v1/terminology/search?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Import loads a terminology release snapshot from the server's object store.
func (t *TerminologyClient) Import(ctx context.Context, object string) (*api.ImportStats, error) {
	body := struct {
		Object string `json:"object"`
	}{Object: object}
	var stats api.ImportStats
	if err := t.c.post(ctx, "/api/v1/terminology/import", body, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
