package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_ChatReturnsUsage(t *testing.T) {
	var got openAIChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":"three posts"}}],
			"usage":{"prompt_tokens":120,"completion_tokens":45,"total_tokens":165}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1/", "sk-test", "gpt-test")
	out, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "event"},
	})
	require.NoError(t, err)

	assert.Equal(t, "three posts", out.Content)
	assert.Equal(t, Usage{PromptTokens: 120, CompletionTokens: 45}, out.Usage)
	assert.Equal(t, "gpt-test", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
}

func TestOpenAIProvider_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Title") {
		case "status":
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		case "body":
			_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
		default:
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}
	}))
	defer srv.Close()

	for _, tc := range []struct {
		title string
		want  string
	}{
		{"status", "openrouter: rate limited"},
		{"body", "model overloaded"},
		{"", "openrouter: empty response"},
	} {
		p := NewOpenRouterProvider(srv.URL, "key", "m", "", tc.title)
		_, err := p.Chat(context.Background(), nil)
		require.Error(t, err)
		assert.Equal(t, tc.want, err.Error())
	}
}

func TestOpenAIProvider_RequiresKeyAndModel(t *testing.T) {
	_, err := NewOpenAIProvider("", "", "m").Chat(context.Background(), nil)
	assert.EqualError(t, err, "openai: api key is required")

	_, err = NewOpenAIProvider("", "k", " ").Chat(context.Background(), nil)
	assert.EqualError(t, err, "openai: model is required")
}

func TestOllamaProvider_ChatReturnsUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"summary"},"done":true,"prompt_eval_count":30,"eval_count":12}`))
	}))
	defer srv.Close()

	out, err := NewOllamaProvider(srv.URL, "").Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "summary", out.Content)
	assert.Equal(t, Usage{PromptTokens: 30, CompletionTokens: 12}, out.Usage)
}

func TestOllamaProvider_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "m").Chat(context.Background(), nil)
	assert.EqualError(t, err, "ollama: status 502")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Ollama ", func(ctx context.Context, model string) (Provider, error) {
		return NewOllamaProvider("", model), nil
	})

	p, err := reg.Get(context.Background(), "ollama", "phi3")
	require.NoError(t, err)
	assert.Equal(t, "phi3", p.(*OllamaProvider).Model)

	_, err = reg.Get(context.Background(), "nope", "")
	assert.EqualError(t, err, "unknown ai provider: nope")
	assert.Equal(t, []string{"ollama"}, reg.Names())
}

func TestProviders_BoundedOnlyByContext(t *testing.T) {
	assert.Zero(t, NewOpenAIProvider("", "k", "m").Client.Timeout)
	assert.Zero(t, NewOpenRouterProvider("", "k", "m", "", "").Client.Timeout)
	assert.Zero(t, NewOllamaProvider("", "").Client.Timeout)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	providers := map[string]Provider{
		"openai": NewOpenAIProvider(srv.URL, "k", "m"),
		"ollama": NewOllamaProvider(srv.URL, "m"),
	}
	for name, p := range providers {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err := p.Chat(ctx, []Message{{Role: RoleUser, Content: "hi"}})
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}
