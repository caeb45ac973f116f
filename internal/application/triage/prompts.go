// Package triage orchestrates the four-stage pipeline: extract structured
// facts from a consultation transcript, propose candidate diagnoses, map
// them onto terminology codes, and explain the final selection.  Every model
// interaction degrades to a documented fallback; the pipeline never aborts a
// run because the model misbehaved.
package triage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
)

// Stage prompt names double as the override file names (<name>.txt) in the
// prompt directory.
const (
	promptExtract = "extract"
	promptPropose = "propose"
	promptExplain = "explain"
)

const defaultExtractPrompt = `You are a clinical information extraction engine.
Read the consultation transcript and extract the patient's facts.

Respond with a single JSON object and nothing else. No markdown, no code
fences, no commentary. Use exactly these fields, omitting any you cannot
determine:

{
  "age": <number>,
  "sex": "<male|female|other>",
  "symptoms": [
    {
      "name": "<symptom name>",
      "onset": "<when it started>",
      "duration": "<how long>",
      "character": "<what it feels like>",
      "location": "<where>",
      "severity": "<mild|moderate|severe or description>",
      "aggravating_factors": "<what makes it worse>",
      "relieving_factors": "<what makes it better>"
    }
  ],
  "past_medical_history": ["<condition>"],
  "medications": ["<medication>"],
  "red_flags": ["<urgent warning sign>"]
}

Only include facts stated in the transcript. Never invent values.`

const defaultProposePrompt = `You are a clinical triage assistant.
Based on the patient record below, propose exactly three candidate diagnoses.

Respond with plain text only: the three diagnosis names separated by commas
or newlines. No numbering, no bullets, no JSON, no explanations, no extra
words.`

const defaultExplainPrompt = `You are a clinical coding assistant.
For each proposed diagnosis phrase you are given candidate terminology
matches as code and term pairs. Select the code or codes that best represent
each phrase, estimate your confidence, and explain the choice briefly.

Respond with a JSON array and nothing else, one entry per phrase, in the
same order as given:

[
  {
    "phrase": "<the diagnosis phrase>",
    "chosen_codes": ["<code>"],
    "confidence": <0.0 to 1.0>,
    "explanation": "<one or two sentences>"
  }
]`

// PromptStore serves stage prompts.  Built-in defaults are used unless a
// <stage>.txt file exists in the configured directory; files are re-read on
// change so prompt tuning needs no restart.
type PromptStore struct {
	dir     string
	logger  logging.Logger
	watcher *fsnotify.Watcher

	mu        sync.RWMutex
	overrides map[string]string
}

// NewPromptStore creates the store.  An empty dir disables overrides
// entirely; a dir that does not exist is treated the same with a warning.
func NewPromptStore(dir string, logger logging.Logger) *PromptStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &PromptStore{
		dir:       dir,
		logger:    logger.Named("prompts"),
		overrides: map[string]string{},
	}
	if dir == "" {
		return s
	}
	if _, err := os.Stat(dir); err != nil {
		s.logger.Warn("prompt directory unavailable, using built-in prompts",
			logging.String("dir", dir), logging.Err(err))
		return s
	}

	s.loadAll()
	s.watch()
	return s
}

// Get returns the current prompt for the named stage.
func (s *PromptStore) Get(name string) string {
	s.mu.RLock()
	override, ok := s.overrides[name]
	s.mu.RUnlock()
	if ok {
		return override
	}
	switch name {
	case promptExtract:
		return defaultExtractPrompt
	case promptPropose:
		return defaultProposePrompt
	case promptExplain:
		return defaultExplainPrompt
	default:
		return ""
	}
}

// Close stops the file watcher.
func (s *PromptStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

func (s *PromptStore) loadAll() {
	for _, name := range []string{promptExtract, promptPropose, promptExplain} {
		s.loadFile(name)
	}
}

func (s *PromptStore) loadFile(name string) {
	path := filepath.Join(s.dir, name+".txt")
	data, err := os.ReadFile(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil || strings.TrimSpace(string(data)) == "" {
		delete(s.overrides, name)
		return
	}
	s.overrides[name] = string(data)
	s.logger.Info("prompt override loaded", logging.String("stage", name))
}

func (s *PromptStore) watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("prompt watcher unavailable", logging.Err(err))
		return
	}
	if err := watcher.Add(s.dir); err != nil {
		s.logger.Warn("cannot watch prompt directory", logging.Err(err))
		_ = watcher.Close()
		return
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				base := filepath.Base(event.Name)
				if !strings.HasSuffix(base, ".txt") {
					continue
				}
				s.loadFile(strings.TrimSuffix(base, ".txt"))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("prompt watcher error", logging.Err(err))
			}
		}
	}()
}
