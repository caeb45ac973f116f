package client

import (
	"context"

	"github.com/scribemed/clinsight/pkg/types/api"
)

// ModelClient calls the model lifecycle endpoints.
type ModelClient struct {
	c *Client
}

// Status reports the model runtime readiness.
func (m *ModelClient) Status(ctx context.Context) (*api.ModelStatus, error) {
	var status api.ModelStatus
	if err := m.c.get(ctx, "/api/v1/model/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Download asks the server to start waiting for the model; poll Status for
// progress.
func (m *ModelClient) Download(ctx context.Context) error {
	return m.c.post(ctx, "/api/v1/model/download", nil, nil)
}
