package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// DefaultOllamaHost is Ollama's default local API endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// DefaultOllamaModel is the default summarization model, a small
// instruction-tuned model well suited to short code descriptions.
const DefaultOllamaModel = "qwen2.5-coder:1.5b"

// OllamaConfig configures an OllamaSummarizer.
type OllamaConfig struct {
	Host  string
	Model string
}

// OllamaSummarizer generates code summaries using Ollama's /api/generate
// endpoint, grounded on internal/embed.OllamaEmbedder's HTTP client
// and request/response shape.
type OllamaSummarizer struct {
	client *http.Client
	host   string
	model  string

	mu     sync.RWMutex
	closed bool
}

var _ Summarizer = (*OllamaSummarizer)(nil)
var _ Provider = (*OllamaSummarizer)(nil)

// NewOllamaSummarizer builds a summarizer against cfg, applying defaults
// for unset fields.
func NewOllamaSummarizer(cfg OllamaConfig) *OllamaSummarizer {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	return &OllamaSummarizer{
		client: &http.Client{Timeout: DefaultTimeout},
		host:   cfg.Host,
		model:  cfg.Model,
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Summarize sends code to Ollama's generate endpoint and returns the
// model's response, trimmed of surrounding whitespace.
func (o *OllamaSummarizer) Summarize(ctx context.Context, code, language string) (string, error) {
	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		return "", fmt.Errorf("summarizer is closed")
	}
	o.mu.RUnlock()

	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", nil
	}
	if len(trimmed) > MaxSourceChars {
		trimmed = trimmed[:MaxSourceChars]
	}

	prompt := buildPrompt(trimmed, language)
	reqBody := ollamaGenerateRequest{Model: o.model, Prompt: prompt, Stream: false}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal summarize request: %w", err)
	}

	url := o.host + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("summarize failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode summarize response: %w", err)
	}
	return strings.TrimSpace(result.Response), nil
}

func buildPrompt(code, language string) string {
	if language == "" {
		language = "code"
	}
	return fmt.Sprintf("Summarize in one sentence what this %s does:\n\n%s", language, code)
}

// ModelName returns the configured model identifier.
func (o *OllamaSummarizer) ModelName() string {
	return o.model
}

// Available reports whether Ollama is reachable.
func (o *OllamaSummarizer) Available(ctx context.Context) bool {
	return o.Ping(ctx) == nil
}

// Ping checks that Ollama is reachable at o.host.
func (o *OllamaSummarizer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable at %s: %w", o.host, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// Close marks the summarizer closed; subsequent calls to Summarize fail.
func (o *OllamaSummarizer) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}
