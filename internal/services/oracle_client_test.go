package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newTestGeminiClient(t *testing.T, cfg OracleConfig) *GeminiClient {
	t.Helper()
	c, err := NewGeminiClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	return c
}

type generateRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

func TestGeminiClientComplete(t *testing.T) {
	var (
		mu                         sync.Mutex
		gotPath, gotKey, gotPrompt string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"a\":"},{"text":"1}"}]}}]}`))
	}))
	defer srv.Close()

	c := newTestGeminiClient(t, OracleConfig{APIKey: "secret", BaseURL: srv.URL + "/"})

	text, err := c.Complete(context.Background(), TierPro, "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)
	mu.Lock()
	assert.Equal(t, "/v1beta/models/gemini-2.5-pro:generateContent", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "hello", gotPrompt)
	mu.Unlock()

	_, err = c.Complete(context.Background(), TierFlash, "hi")
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", gotPath)
	mu.Unlock()
}

func TestGeminiClientErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		code   int
	}{
		{"quota", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`, http.StatusTooManyRequests},
		{"auth", http.StatusUnauthorized, `{"error":{"code":401,"message":"denied","status":"UNAUTHENTICATED"}}`, http.StatusUnauthorized},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, 0},
		{"empty text", http.StatusOK, `{"candidates":[{"content":{"parts":[]}}]}`, 0},
		{"garbage", http.StatusOK, `<html>`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := newTestGeminiClient(t, OracleConfig{APIKey: "k", BaseURL: srv.URL})
			_, err := c.Complete(context.Background(), TierFlash, "p")

			var oracleErr *OracleError
			require.ErrorAs(t, err, &oracleErr)
			assert.Equal(t, TierFlash, oracleErr.Tier)
			assert.Equal(t, tc.code, oracleErr.StatusCode)
		})
	}
}

func TestGeminiClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestGeminiClient(t, OracleConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := c.Complete(context.Background(), TierPro, "p")
	var oracleErr *OracleError
	require.ErrorAs(t, err, &oracleErr)
	assert.Zero(t, oracleErr.StatusCode)
}

func TestClientConfigBackend(t *testing.T) {
	gemini := clientConfig(OracleConfig{APIKey: "k", Location: "global"})
	assert.Equal(t, genai.BackendGeminiAPI, gemini.Backend)
	assert.Equal(t, "k", gemini.APIKey)
	assert.Empty(t, gemini.Project)

	vertex := clientConfig(OracleConfig{APIKey: "k", Project: "proj", Location: "us-central1"})
	assert.Equal(t, genai.BackendVertexAI, vertex.Backend)
	assert.Equal(t, "proj", vertex.Project)
	assert.Equal(t, "us-central1", vertex.Location)
	assert.Empty(t, vertex.APIKey, "vertex authenticates with credentials, not the api key")
}
