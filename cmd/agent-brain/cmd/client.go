package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/agent-brain/brain/internal/config"
	"github.com/agent-brain/brain/internal/lifecycle"
)

const defaultBaseURL = "http://127.0.0.1:8000"

// apiClient is a thin JSON/HTTP client over a running agent-brain server,
// grounded on daemon.Client's request/response shape but speaking HTTP
// instead of a length-prefixed Unix-socket protocol.
type apiClient struct {
	baseURL string
	http    *http.Client
}

// resolveBaseURL implements spec.md section 6's server discovery order:
// --url flag, then AGENT_BRAIN_URL, then the nearest project's runtime
// descriptor, then the project's config file, then the hardcoded default.
func resolveBaseURL() string {
	if flagBaseURL != "" {
		return flagBaseURL
	}
	if v := os.Getenv("AGENT_BRAIN_URL"); v != "" {
		return v
	}

	cwd, err := os.Getwd()
	if err == nil {
		if d, ok, derr := lifecycle.DiscoverDescriptor(cwd); derr == nil && ok && d.BaseURL != "" {
			return d.BaseURL
		}
		if root, rerr := config.FindProjectRoot(cwd); rerr == nil {
			if cfg, cerr := config.Load(root); cerr == nil && cfg.Server.URL != "" {
				return cfg.Server.URL
			}
		}
	}

	return defaultBaseURL
}

func newAPIClient() *apiClient {
	return &apiClient{
		baseURL: resolveBaseURL(),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is the structured error body every non-2xx agent-brain response
// returns (internal/httpapi/respond.go's errorResponse).
type apiError struct {
	Status     int
	Message    string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (e *apiError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Suggestion)
	}
	return e.Message
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to %s: %w (is the server running? try 'agent-brain start')", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *apiClient) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *apiClient) delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
