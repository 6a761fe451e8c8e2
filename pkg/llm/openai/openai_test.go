package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/entrhq/tiptranslate/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{"id":"chatcmpl-1","object":"chat.completion","created":1694268190,"model":"gpt-3.5-turbo","choices":[{"index":0,"message":{"role":"assistant","content":"  你好 \n"},"finish_reason":"stop"}]}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewProvider("test-key", WithBaseURL(server.URL))
	require.NoError(t, err)
	return p
}

func TestNewProvider(t *testing.T) {
	t.Run("requires API key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		_, err := NewProvider("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key is required")
	})

	t.Run("reads API key and base URL from environment", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "env-key")
		t.Setenv("OPENAI_BASE_URL", "http://localhost:8080/v1/")
		p, err := NewProvider("")
		require.NoError(t, err)
		assert.Equal(t, "env-key", p.apiKey)
		assert.Equal(t, "http://localhost:8080/v1", p.GetBaseURL())
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("OPENAI_BASE_URL", "")
		p, err := NewProvider("key")
		require.NoError(t, err)
		assert.Equal(t, DefaultModel, p.GetModel())
		assert.Equal(t, DefaultBaseURL, p.GetBaseURL())
		assert.Equal(t, DefaultMaxTokens, p.maxTokens)
	})

	t.Run("empty options keep defaults", func(t *testing.T) {
		p, err := NewProvider("key", WithModel(""), WithMaxTokens(0))
		require.NoError(t, err)
		assert.Equal(t, DefaultModel, p.GetModel())
		assert.Equal(t, DefaultMaxTokens, p.maxTokens)
	})
}

func TestTranslate_Success(t *testing.T) {
	var captured map[string]interface{}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody)
	})

	text, err := p.Translate(context.Background(), "translate hello")
	require.NoError(t, err)
	assert.Equal(t, "你好", text)

	assert.Equal(t, DefaultModel, captured["model"])
	assert.EqualValues(t, DefaultMaxTokens, captured["max_tokens"])

	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok, "messages should be an array")
	require.Len(t, messages, 2)

	system := messages[0].(map[string]interface{})
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, DefaultSystemPrompt, system["content"])

	user := messages[1].(map[string]interface{})
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, "translate hello", user["content"])
}

func TestTranslate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "non-success status",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"bad key"}}`,
			check: func(t *testing.T, err error) {
				var statusErr *llm.StatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
				assert.Contains(t, statusErr.Error(), "API call failed with status: 401")
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, llm.ErrNoTranslation)
			},
		},
		{
			name:   "blank content",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"role":"assistant","content":"   "}}]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, llm.ErrNoTranslation)
			},
		},
		{
			name:   "malformed payload",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, llm.ErrNoTranslation)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			text, err := p.Translate(context.Background(), "x")
			require.Error(t, err)
			assert.Empty(t, text)
			tt.check(t, err)
		})
	}
}

func TestTranslate_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p, err := NewProvider("key", WithBaseURL(url))
	require.NoError(t, err)

	_, err = p.Translate(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrTransport)
}

func TestTranslate_SingleCallPerRequest(t *testing.T) {
	calls := 0
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := p.Translate(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "gateway must not retry")
}

func TestTranslate_CustomOptions(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		io.WriteString(w, completionBody)
	}))
	defer server.Close()

	p, err := NewProvider("key",
		WithBaseURL(server.URL),
		WithModel("gpt-4o-mini"),
		WithMaxTokens(64),
		WithSystemPrompt(""),
		WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)

	_, err = p.Translate(context.Background(), "x")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	assert.EqualValues(t, 64, captured["max_tokens"])
	assert.Len(t, captured["messages"], 1, "empty system prompt should be omitted")
}
