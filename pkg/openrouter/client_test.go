package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantErr    string
		wantText   string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{
				"id": "gen-1",
				"model": "google/gemini-2.5-flash-lite",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"summary\":\"ok\"}"}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
			}`,
			wantText: `{"summary":"ok"}`,
		},
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"error":{"message":"User not found.","code":401}}`,
			wantStatus: 401,
		},
		{
			name:       "rate_limit",
			status:     http.StatusTooManyRequests,
			body:       `{"error":"slow down"}`,
			wantStatus: 429,
		},
		{
			name:       "embedded_error",
			status:     http.StatusOK,
			body:       `{"error":{"message":"provider returned error","code":"503"}}`,
			wantStatus: 503,
		},
		{
			name:       "embedded_error_without_code",
			status:     http.StatusOK,
			body:       `{"error":{"message":"upstream failed"}}`,
			wantStatus: 502,
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL+"/"))
			resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
				Model:    "m",
				Messages: []Message{{Role: "user", Content: "hi"}},
			})

			switch {
			case tt.wantStatus != 0:
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr), "want APIError, got %v", err)
				assert.Equal(t, tt.wantStatus, apiErr.StatusCode())
				assert.Nil(t, resp)
			case tt.wantErr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantText, resp.Text())
				assert.Equal(t, 30, resp.Usage.CompletionTokens)
			}
		})
	}
}

func TestChatCompletion_MultimodalWireFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "competitor-monitor", r.Header.Get("X-Title"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer srv.Close()

	temp := 0.7
	maxTokens := 2000
	client := NewClient("k", WithBaseURL(srv.URL), WithAppName("competitor-monitor", "https://example.com"))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Model:          "vision",
		Temperature:    &temp,
		MaxTokens:      &maxTokens,
		ResponseFormat: JSONObject,
		Messages: []Message{{
			Role:    "user",
			Content: []ContentPart{TextPart("describe"), ImagePart("data:image/png;base64,AAAA")},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "vision", got["model"])
	assert.InDelta(t, 0.7, got["temperature"], 1e-9)
	assert.EqualValues(t, 2000, got["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])

	msgs := got["messages"].([]any)
	parts := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, map[string]any{"type": "text", "text": "describe"}, parts[0])
	assert.Equal(t, map[string]any{
		"type":      "image_url",
		"image_url": map[string]any{"url": "data:image/png;base64,AAAA"},
	}, parts[1])
}

func TestChatCompletion_OmitsUnsetOptionalFields(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	resp, err := NewClient("k", WithBaseURL(srv.URL)).ChatCompletion(context.Background(), ChatCompletionRequest{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "", resp.Text())
	assert.NotContains(t, raw, "max_tokens")
	assert.NotContains(t, raw, "temperature")
	assert.NotContains(t, raw, "response_format")
}

func TestChatCompletion_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(1))
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	req := ChatCompletionRequest{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}}
	_, err := client.ChatCompletion(ctx, req)
	require.NoError(t, err)

	// Burst of one is spent; the second call cannot get a token before the deadline.
	_, err = client.ChatCompletion(ctx, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatCompletion_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient("k", WithBaseURL(srv.URL)).ChatCompletion(ctx, ChatCompletionRequest{Model: "m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
