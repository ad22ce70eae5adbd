// Package cerebras implements the Cerebras API provider.
// Cerebras uses an OpenAI-compatible API, so this provider wraps the OpenAI provider
// with a different base URL and reads its key from a credential source.
package cerebras

import (
	"context"
	"net/http"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/core/credentials"
	"github.com/vango-go/vai-council/pkg/core/providers/openai"
)

const (
	// DefaultBaseURL is the Cerebras API endpoint.
	DefaultBaseURL = "https://api.cerebras.ai/v1"

	// DefaultModel is the model used for council dialogue.
	DefaultModel = "llama-3.3-70b"
)

// Provider implements the Cerebras API using the OpenAI-compatible client.
type Provider struct {
	keys       credentials.Provider
	baseURL    string
	httpClient *http.Client
	inner      *openai.Provider
}

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// New creates a new Cerebras provider. The API key is looked up on every
// request so a key entered mid-session is picked up immediately.
func New(keys credentials.Provider, opts ...Option) *Provider {
	p := &Provider{
		keys:       keys,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}

	p.inner = openai.New("",
		openai.WithBaseURL(p.baseURL),
		openai.WithHTTPClient(p.httpClient),
		openai.WithName("cerebras"),
		openai.WithMaxTokensField(openai.MaxTokensFieldMaxTokens),
		openai.WithKeySource(p.apiKey),
	)

	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "cerebras"
}

// Configured reports whether an LLM key is available.
func (p *Provider) Configured() bool {
	key, err := p.apiKey()
	return err == nil && key != ""
}

// CreateChatCompletion sends a non-streaming request to Cerebras.
func (p *Provider) CreateChatCompletion(ctx context.Context, req *openai.Request) (*openai.Response, error) {
	if !p.Configured() {
		return nil, core.NewConfigurationError("LLM API key not configured")
	}
	resp, err := p.inner.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, core.NewGenerationError("cerebras request failed", err)
	}
	return resp, nil
}

func (p *Provider) apiKey() (string, error) {
	if p.keys == nil {
		return "", nil
	}
	set, err := p.keys.Credentials()
	if err != nil {
		return "", err
	}
	return set.LLM, nil
}
