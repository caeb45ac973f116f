// Package opensearch provides an alternate lexical-search backend for the
// terminology descriptions.  Deployments that already run OpenSearch point
// the hybrid mapper here instead of at the postgres ILIKE scan; the match
// query tolerates word-order and inflection differences the ILIKE baseline
// cannot.
package opensearch

import (
	"crypto/tls"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/scribemed/clinsight/internal/config"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	"github.com/scribemed/clinsight/pkg/errors"
)

// Client wraps the OpenSearch connection.
type Client struct {
	os     *opensearch.Client
	index  string
	logger logging.Logger
}

// NewClient connects to the cluster described by cfg.
func NewClient(cfg config.OpenSearchConfig, logger logging.Logger) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "opensearch addresses are required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.User,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "create opensearch client")
	}

	logger.Info("opensearch client created",
		logging.Int("addresses", len(cfg.Addresses)),
		logging.String("index", cfg.Index),
	)
	return &Client{
		os:     osClient,
		index:  cfg.Index,
		logger: logger.Named("opensearch"),
	}, nil
}
