// Package model adapts a locally-hosted generative model runtime.  The
// pipeline depends only on the capability interfaces here; the concrete
// adapter speaks the OpenAI-compatible HTTP surface that llama.cpp-style
// servers expose.
package model

import (
	"context"
	"time"
)

// Message is one turn of a chat-completion prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Capability is the inference surface the pipeline consumes.  Complete and
// Embed must not be invoked before the runtime reports ready; callers gate
// on Lifecycle.
type Capability interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Status reports the runtime's readiness.
type Status struct {
	Downloaded  bool
	Downloading bool
}

// Ready reports whether inference calls may be issued.
func (s Status) Ready() bool { return s.Downloaded && !s.Downloading }

// Lifecycle manages model availability.  Download blocks until the model is
// loaded and serving, or the context expires.
type Lifecycle interface {
	Status(ctx context.Context) (Status, error)
	Download(ctx context.Context) error
}

// Runtime is the full collaborator contract.
type Runtime interface {
	Capability
	Lifecycle
}

// Config configures the HTTP adapter.
type Config struct {
	BaseURL         string
	CompletionModel string
	EmbeddingModel  string
	RequestTimeout  time.Duration
	EmbedTimeout    time.Duration
	// DownloadPollPeriod is the interval between readiness probes while
	// Download waits for the model to load.
	DownloadPollPeriod time.Duration
}
