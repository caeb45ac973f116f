package minio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribemed/clinsight/internal/config"
	pkgerrors "github.com/scribemed/clinsight/pkg/errors"
)

func TestNewSnapshotStore_RequiresEndpoint(t *testing.T) {
	_, err := NewSnapshotStore(context.Background(), config.MinIOConfig{}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestNewSnapshotStore_InvalidEndpoint(t *testing.T) {
	_, err := NewSnapshotStore(context.Background(), config.MinIOConfig{
		Endpoint: "not a host",
		Bucket:   "terminology-snapshots",
	}, nil)
	assert.Error(t, err)
}
