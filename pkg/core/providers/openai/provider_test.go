package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const okBody = `{
	"id":"chatcmpl_1",
	"model":"gpt-4o-mini",
	"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}],
	"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}
}`

func TestCreateChatCompletion_SendsRequestAndParsesResponse(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, okBody)
	}))
	defer server.Close()

	p := New(
		"test-key",
		WithBaseURL(server.URL+"/v1/"),
	)

	resp, err := p.CreateChatCompletion(t.Context(), &Request{
		Model:       "gpt-4o-mini",
		Messages:    []Message{{Role: "user", Content: "hello"}},
		Temperature: Float(0.8),
		TopP:        Float(0.9),
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion() error = %v", err)
	}

	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path = %q, want /v1/chat/completions", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("Authorization header = %q, want Bearer test-key", gotAuth)
	}
	if gotBody["max_completion_tokens"] != float64(DefaultMaxTokens) {
		t.Fatalf("max_completion_tokens = %v, want %d", gotBody["max_completion_tokens"], DefaultMaxTokens)
	}
	if gotBody["temperature"] != 0.8 || gotBody["top_p"] != 0.9 {
		t.Fatalf("sampling = %v/%v, want 0.8/0.9", gotBody["temperature"], gotBody["top_p"])
	}
	if resp.Content != "ok" || resp.FinishReason != "stop" || resp.Model != "openai/gpt-4o-mini" {
		t.Fatalf("response = %#v", resp)
	}
	if resp.Usage.TotalTokens != 2 {
		t.Fatalf("usage = %#v, want total 2", resp.Usage)
	}
}

func TestCreateChatCompletion_LegacyMaxTokensField(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, okBody)
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL), WithMaxTokensField(MaxTokensFieldMaxTokens))
	if _, err := p.CreateChatCompletion(t.Context(), &Request{Model: "m", MaxTokens: 500}); err != nil {
		t.Fatalf("CreateChatCompletion() error = %v", err)
	}
	if gotBody["max_tokens"] != float64(500) {
		t.Fatalf("max_tokens = %v, want 500", gotBody["max_tokens"])
	}
	if _, ok := gotBody["max_completion_tokens"]; ok {
		t.Fatal("max_completion_tokens should not be sent")
	}
}

func TestCreateChatCompletion_KeySourceResolvedPerRequest(t *testing.T) {
	var auths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		fmt.Fprint(w, okBody)
	}))
	defer server.Close()

	key := "first"
	p := New("", WithBaseURL(server.URL), WithKeySource(func() (string, error) { return key, nil }))
	for _, k := range []string{"first", "second"} {
		key = k
		if _, err := p.CreateChatCompletion(t.Context(), &Request{Model: "m"}); err != nil {
			t.Fatalf("CreateChatCompletion() error = %v", err)
		}
	}
	if len(auths) != 2 || auths[0] != "Bearer first" || auths[1] != "Bearer second" {
		t.Fatalf("auth headers = %v", auths)
	}
}

func TestCreateChatCompletion_MissingKey(t *testing.T) {
	p := New("", WithBaseURL("http://127.0.0.1:1"))
	_, err := p.CreateChatCompletion(t.Context(), &Request{Model: "m"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("error = %v, want ErrMissingAPIKey", err)
	}

	sourceErr := errors.New("store unavailable")
	p = New("", WithKeySource(func() (string, error) { return "", sourceErr }))
	_, err = p.CreateChatCompletion(t.Context(), &Request{Model: "m"})
	if !errors.Is(err, sourceErr) {
		t.Fatalf("error = %v, want wrapped source error", err)
	}
}

func TestCreateChatCompletion_ParsesErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantType ErrorType
	}{
		{"rate limit", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"requests"}}`, ErrRateLimit},
		{"auth", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`, ErrAuthentication},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad model","type":"invalid_request_error","param":"model"}}`, ErrInvalidRequest},
		{"server", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, ErrAPI},
		{"unparseable", http.StatusBadGateway, `<html>bad gateway</html>`, ErrProvider},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			p := New("k", WithBaseURL(server.URL))
			_, err := p.CreateChatCompletion(t.Context(), &Request{Model: "m"})
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %T %v, want *Error", err, err)
			}
			if apiErr.Type != tc.wantType || apiErr.StatusCode != tc.status {
				t.Fatalf("error = %#v, want type %s status %d", apiErr, tc.wantType, tc.status)
			}
		})
	}
}

func TestCreateChatCompletion_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"x","choices":[]}`)
	}))
	defer server.Close()

	_, err := New("k", WithBaseURL(server.URL)).CreateChatCompletion(t.Context(), &Request{Model: "m"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
