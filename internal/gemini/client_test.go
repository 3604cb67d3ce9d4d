package gemini_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bananaslides/internal/config"
	"bananaslides/internal/gemini"
	"bananaslides/internal/retry"
)

func newTestClient(serverURL string) *gemini.Client {
	return gemini.NewClient(&config.EndpointConfig{
		URL:         serverURL,
		APIKey:      "test-gemini-key",
		TimeoutSecs: 30,
	}, "gemini-2.5-flash")
}

func TestGenerate_SendsInlineDataAndPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-gemini-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		contents := reqBody["contents"].([]interface{})
		require.Len(t, contents, 1)
		msg := contents[0].(map[string]interface{})
		assert.Equal(t, "user", msg["role"])

		parts := msg["parts"].([]interface{})
		require.Len(t, parts, 2)
		inline := parts[0].(map[string]interface{})["inline_data"].(map[string]interface{})
		assert.Equal(t, "image/png", inline["mime_type"])
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), inline["data"])
		assert.Equal(t, "describe", parts[1].(map[string]interface{})["text"])

		genConfig := reqBody["generationConfig"].(map[string]interface{})
		assert.Equal(t, "application/json", genConfig["responseMimeType"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]interface{}{{"text": `{"ok":true}`}}}, "finishReason": "STOP"},
			},
		})
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Generate(context.Background(),
		[]gemini.Part{gemini.ImagePart([]byte{1, 2, 3}), gemini.TextPart("describe")}, "application/json", nil)

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out.Text)
	assert.Empty(t, out.Images)
}

func TestGenerate_DecodesImageParts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]interface{}{
					{"inlineData": map[string]interface{}{"mimeType": "image/png", "data": base64.StdEncoding.EncodeToString([]byte("png"))}},
				}}},
			},
		})
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Generate(context.Background(), []gemini.Part{gemini.TextPart("x")}, "", []string{"IMAGE"})

	require.NoError(t, err)
	require.Len(t, out.Images, 1)
	assert.Equal(t, []byte("png"), out.Images[0])
}

func TestGenerate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), []gemini.Part{gemini.TextPart("x")}, "", nil)

	require.Error(t, err)
	assert.True(t, retry.Retryable(err))
	assert.Contains(t, err.Error(), "429")
}

func TestGenerate_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), []gemini.Part{gemini.TextPart("x")}, "", nil)

	assert.ErrorIs(t, err, gemini.ErrNoContent)
	assert.False(t, retry.Retryable(err))
}
