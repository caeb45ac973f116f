package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	"github.com/scribemed/clinsight/pkg/errors"
)

// httpRuntime talks to an OpenAI-compatible local inference server.
type httpRuntime struct {
	config     Config
	httpClient *http.Client
	logger     logging.Logger
}

// NewHTTPRuntime creates a Runtime backed by the HTTP server at
// config.BaseURL.
func NewHTTPRuntime(config Config, logger logging.Logger) Runtime {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 2 * time.Minute
	}
	if config.EmbedTimeout <= 0 {
		config.EmbedTimeout = 15 * time.Second
	}
	if config.DownloadPollPeriod <= 0 {
		config.DownloadPollPeriod = 2 * time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &httpRuntime{
		config: config,
		// Per-call deadlines are set via context; the client itself has no
		// global timeout so completion and embed limits can differ.
		httpClient: &http.Client{},
		logger:     logger.Named("model"),
	}
}

type chatCompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (r *httpRuntime) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	var resp chatCompletionResponse
	err := r.postJSON(ctx, "/v1/chat/completions", chatCompletionRequest{
		Model:       r.config.CompletionModel,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      false,
	}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New(errors.ErrCodeModelResponseEmpty, "model returned no content")
	}

	r.logger.Debug("completion finished",
		logging.Duration("elapsed", time.Since(start)),
		logging.Int("messages", len(messages)),
	)
	return resp.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (r *httpRuntime) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.EmbedTimeout)
	defer cancel()

	var resp embeddingResponse
	err := r.postJSON(ctx, "/v1/embeddings", embeddingRequest{
		Model: r.config.EmbeddingModel,
		Input: text,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "runtime returned an empty embedding")
	}
	return resp.Data[0].Embedding, nil
}

type healthResponse struct {
	Status string `json:"status"`
}

func (r *httpRuntime) Status(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.config.BaseURL+"/health", nil)
	if err != nil {
		return Status{}, errors.Wrap(err, errors.ErrCodeModelCallFailed, "build health request")
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Status{}, errors.Wrap(err, errors.ErrCodeModelNotReady, "model runtime unreachable")
	}
	defer resp.Body.Close()

	var health healthResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&health)

	switch {
	case resp.StatusCode == http.StatusOK:
		return Status{Downloaded: true}, nil
	case resp.StatusCode == http.StatusServiceUnavailable:
		// llama.cpp-style servers answer 503 while the model loads.
		return Status{Downloading: true}, nil
	default:
		return Status{}, errors.Newf(errors.ErrCodeModelCallFailed,
			"unexpected health status %d (%s)", resp.StatusCode, health.Status)
	}
}

// Download waits until the runtime reports ready, polling /health.  The
// server loads its model on startup, so "download" here is waiting for load
// completion rather than initiating a transfer.
func (r *httpRuntime) Download(ctx context.Context) error {
	ticker := time.NewTicker(r.config.DownloadPollPeriod)
	defer ticker.Stop()

	for {
		status, err := r.Status(ctx)
		if err == nil && status.Ready() {
			return nil
		}
		if err != nil {
			r.logger.Debug("runtime not ready yet", logging.Err(err))
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrCodeModelDownload, "model never became ready")
		case <-ticker.C:
		}
	}
}

func (r *httpRuntime) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeModelCallFailed, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeModelCallFailed, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeModelCallFailed, fmt.Sprintf("POST %s", path))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf(errors.ErrCodeModelCallFailed,
			"POST %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeModelCallFailed, "decode response")
	}
	return nil
}
