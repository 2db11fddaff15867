package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeminiClient_GenerateContent(t *testing.T) {
	ctx := context.Background()

	t.Run("returns candidate text", func(t *testing.T) {
		var gotPath string
		var gotBody generateRequest

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			require.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "[]"}]}}]}`))
		}))
		defer ts.Close()

		client, err := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: ts.URL})
		require.NoError(t, err)

		text, err := client.GenerateContent(ctx, "analyze this")
		require.NoError(t, err)
		require.Equal(t, "[]", text)
		require.Equal(t, "/models/gemini-2.0-flash-exp:generateContent", gotPath)
		require.Equal(t, "application/json", gotBody.GenerationConfig.ResponseMIMEType)
		require.NotEmpty(t, gotBody.GenerationConfig.ResponseSchema, "response schema pins the output shape")
		require.Equal(t, "analyze this", gotBody.Contents[0].Parts[0].Text)
	})

	t.Run("429 maps to RateLimitError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer ts.Close()

		client, err := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: ts.URL})
		require.NoError(t, err)

		_, err = client.GenerateContent(ctx, "analyze this")

		var rateLimited *RateLimitError
		require.ErrorAs(t, err, &rateLimited)
		require.Equal(t, http.StatusTooManyRequests, rateLimited.StatusCode)
	})

	t.Run("other HTTP errors are terminal", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer ts.Close()

		client, err := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: ts.URL})
		require.NoError(t, err)

		_, err = client.GenerateContent(ctx, "analyze this")
		require.Error(t, err)

		var rateLimited *RateLimitError
		require.False(t, errors.As(err, &rateLimited))
	})

	t.Run("empty candidate list is an error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates": []}`))
		}))
		defer ts.Close()

		client, err := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: ts.URL})
		require.NoError(t, err)

		_, err = client.GenerateContent(ctx, "analyze this")
		require.Error(t, err)
	})

	t.Run("missing API key rejected", func(t *testing.T) {
		_, err := NewGeminiClient(GeminiConfig{})
		require.Error(t, err)
	})
}
