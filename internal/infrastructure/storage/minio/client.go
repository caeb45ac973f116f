// Package minio stores terminology release snapshots.  The importer streams
// SNOMED CT RF2 description files out of a bucket instead of requiring the
// multi-gigabyte release archive on local disk.
package minio

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/scribemed/clinsight/internal/config"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	"github.com/scribemed/clinsight/pkg/errors"
)

// SnapshotStore reads and writes terminology snapshot objects.
type SnapshotStore interface {
	Fetch(ctx context.Context, object string) (io.ReadCloser, error)
	Store(ctx context.Context, object string, r io.Reader, size int64) error
	Exists(ctx context.Context, object string) (bool, error)
}

type snapshotStore struct {
	client *minio.Client
	bucket string
	logger logging.Logger
}

// NewSnapshotStore connects to the object store and ensures the snapshot
// bucket exists.
func NewSnapshotStore(ctx context.Context, cfg config.MinIOConfig, logger logging.Logger) (SnapshotStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio endpoint is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "create minio client")
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "check snapshot bucket")
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "create snapshot bucket")
		}
		logger.Info("snapshot bucket created", logging.String("bucket", cfg.Bucket))
	}

	return &snapshotStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.Named("minio"),
	}, nil
}

func (s *snapshotStore) Fetch(ctx context.Context, object string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTermSourceInvalid, "fetch snapshot object")
	}
	// GetObject is lazy; surface missing objects now rather than on first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.Newf(errors.ErrCodeNotFound, "snapshot object %q not found", object)
		}
		return nil, errors.Wrap(err, errors.ErrCodeTermSourceInvalid, "stat snapshot object")
	}
	return obj, nil
}

func (s *snapshotStore) Store(ctx context.Context, object string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{
		ContentType: "text/tab-separated-values",
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "store snapshot object")
	}
	s.logger.Info("snapshot stored", logging.String("object", object), logging.Int64("bytes", size))
	return nil
}

func (s *snapshotStore) Exists(ctx context.Context, object string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, object, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeInternal, "stat snapshot object")
	}
	return true, nil
}
