// Package openai implements an OpenAI-compatible Chat Completions client.
// The cerebras package reuses it with a different base URL and key source.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultMaxTokens is the default max tokens if not specified.
	DefaultMaxTokens = 4096
)

// ErrMissingAPIKey is returned when no key is configured for a request.
var ErrMissingAPIKey = errors.New("openai: API key not configured")

// Provider implements the Chat Completions API.
type Provider struct {
	apiKey         string
	keySource      func() (string, error)
	baseURL        string
	httpClient     *http.Client
	maxTokensField MaxTokensField
	name           string
}

// New creates a new provider. apiKey may be empty when WithKeySource is used.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:         apiKey,
		baseURL:        DefaultBaseURL,
		httpClient:     &http.Client{},
		maxTokensField: MaxTokensFieldMaxCompletionTokens,
		name:           "openai",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// CreateChatCompletion sends a non-streaming chat completion request and
// returns the first choice.
func (p *Provider) CreateChatCompletion(ctx context.Context, req *Request) (*Response, error) {
	apiKey, err := p.resolveKey()
	if err != nil {
		return nil, err
	}

	respBody, err := p.doRequest(ctx, apiKey, p.buildRequest(req))
	if err != nil {
		return nil, err
	}

	return p.parseResponse(respBody)
}

func (p *Provider) resolveKey() (string, error) {
	key := p.apiKey
	if p.keySource != nil {
		k, err := p.keySource()
		if err != nil {
			return "", fmt.Errorf("resolve API key: %w", err)
		}
		key = k
	}
	if key == "" {
		return "", ErrMissingAPIKey
	}
	return key, nil
}
