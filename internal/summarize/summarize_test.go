package summarize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSummarizer_ReturnsFirstNonBlankLine(t *testing.T) {
	s := NewStaticSummarizer()
	defer s.Close()

	summary, err := s.Summarize(context.Background(), "\n\n  func Foo() {}\nmore", "go")
	require.NoError(t, err)
	assert.Equal(t, "func Foo() {}", summary)
}

func TestStaticSummarizer_EmptyInputReturnsEmptySummary(t *testing.T) {
	s := NewStaticSummarizer()
	summary, err := s.Summarize(context.Background(), "   \n  ", "go")
	require.NoError(t, err)
	assert.Equal(t, "", summary)
}

func TestStaticSummarizer_AlwaysAvailable(t *testing.T) {
	s := NewStaticSummarizer()
	assert.True(t, s.Available(context.Background()))
}

func TestOllamaSummarizer_SummarizeCallsGenerateEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response": "  it adds two numbers  "}`))
	}))
	defer server.Close()

	s := NewOllamaSummarizer(OllamaConfig{Host: server.URL})
	summary, err := s.Summarize(context.Background(), "func Add(a, b int) int { return a + b }", "go")
	require.NoError(t, err)
	assert.Equal(t, "it adds two numbers", summary)
}

func TestOllamaSummarizer_EmptyCodeSkipsRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	s := NewOllamaSummarizer(OllamaConfig{Host: server.URL})
	summary, err := s.Summarize(context.Background(), "   ", "go")
	require.NoError(t, err)
	assert.Equal(t, "", summary)
	assert.False(t, called)
}

func TestOllamaSummarizer_ClosedReturnsError(t *testing.T) {
	s := NewOllamaSummarizer(OllamaConfig{Host: "http://127.0.0.1:0"})
	require.NoError(t, s.Close())

	_, err := s.Summarize(context.Background(), "func Foo() {}", "go")
	assert.Error(t, err)
}

func TestOllamaSummarizer_PingFailsWhenUnreachable(t *testing.T) {
	s := NewOllamaSummarizer(OllamaConfig{Host: "http://127.0.0.1:1"})
	assert.False(t, s.Available(context.Background()))
}
