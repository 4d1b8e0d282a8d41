package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postwright/postwright/pkg/errors"
)

func newFakeOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	o, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	return o
}

func TestOpenAIGenerate(t *testing.T) {
	var got map[string]any
	o := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "  A post about Go.  "}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 30, "total_tokens": 42}
		}`)
	})

	res, err := o.Generate(context.Background(), "be brief", "write about Go")
	require.NoError(t, err)
	assert.Equal(t, "A post about Go.", res.Content)
	assert.Equal(t, "gpt-4o-mini", res.Model)
	assert.Equal(t, 12, res.PromptTokens)
	assert.Equal(t, 30, res.CompletionTokens)
	assert.Equal(t, 42, res.TokensUsed)
	assert.False(t, res.Cached)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIGenerateProviderError(t *testing.T) {
	calls := 0
	o := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error": {"message": "upstream down", "type": "server_error"}}`)
	})

	_, err := o.Generate(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProvider))
	assert.Equal(t, 1, calls, "expected a single attempt")
}

func TestOpenAITranscribe(t *testing.T) {
	o := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text": "hello from the reel"}`)
	})
	o.model = "whisper-1"

	path := filepath.Join(t.TempDir(), "reel.m4a")
	require.NoError(t, os.WriteFile(path, make([]byte, 32000), 0o644))

	tr, err := o.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello from the reel", tr.Text)
	assert.InDelta(t, 2.4, tr.DurationSeconds, 1e-9)
}

func TestOpenAITranscribeTooLarge(t *testing.T) {
	called := false
	o := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	o.maxAudio = 10

	path := filepath.Join(t.TempDir(), "reel.m4a")
	require.NoError(t, os.WriteFile(path, make([]byte, 11), 0o644))

	_, err := o.Transcribe(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTranscription))
	assert.False(t, called)
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
