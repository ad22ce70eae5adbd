// Package dialogue generates council dialogue with a chat-completions model:
// whole scripts in batch mode and single turns in incremental mode.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/core/providers/cerebras"
	"github.com/vango-go/vai-council/pkg/core/providers/openai"
	"github.com/vango-go/vai-council/pkg/metrics"
)

const (
	// ApologyText is spoken when an incremental turn cannot be generated.
	ApologyText = "I'm having trouble generating a response right now. Please try again."

	// MissingKeyText is returned when no language model key is configured.
	MissingKeyText = "API key not configured. Please add your Cerebras API key to continue."
)

// Params are the sampling parameters for one completion.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

var (
	// BatchParams are used for whole-script generation.
	BatchParams = Params{MaxTokens: 4000, Temperature: 0.85, TopP: 0.9}

	// IncrementalParams are used for single turns and opening lines.
	IncrementalParams = Params{MaxTokens: 500, Temperature: 0.8, TopP: 0.9}
)

// ChatClient is the completion transport. *cerebras.Provider satisfies it.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req *openai.Request) (*openai.Response, error)
}

// Speaker is the part of a panelist that prompts need.
type Speaker struct {
	ID      int
	Name    string
	Role    string
	Persona string
}

// Line is one generated utterance.
type Line struct {
	SpeakerID int
	Text      string
}

// Client generates dialogue.
type Client struct {
	chat    ChatClient
	model   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records script sources.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a Client over chat.
func New(chat ChatClient, opts ...Option) *Client {
	c := &Client{
		chat:   chat,
		model:  cerebras.DefaultModel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateScript asks the model for a complete round-robin script about
// topic lasting duration minutes. It never fails: a transport error, a
// missing key or an unparseable reply yields FallbackScript.
func (c *Client) GenerateScript(ctx context.Context, topic string, duration int, roster []Speaker) []Line {
	totalTurns := duration * 4

	content, err := c.complete(ctx, scriptSystemPrompt(topic, duration, roster), scriptUserPrompt(topic, duration), BatchParams)
	if err != nil {
		c.logger.Warn("script generation failed, using fallback", "topic", topic, "error", err)
		c.metrics.RecordScriptGeneration("fallback")
		return FallbackScript(topic, totalTurns, roster)
	}

	switch res := ParseScript(content, roster).(type) {
	case Parsed:
		c.logger.Info("script generated", "topic", topic, "lines", len(res.Lines))
		c.metrics.RecordScriptGeneration("model")
		return res.Lines
	case Malformed:
		c.logger.Warn("script reply malformed, using fallback", "topic", topic, "error", res.Err)
		c.metrics.RecordScriptGeneration("fallback")
	}
	return FallbackScript(topic, totalTurns, roster)
}

// OpeningLines asks for one opening statement per panelist for a live
// discussion. A malformed reply collapses to a single generic opening by the
// first panelist.
func (c *Client) OpeningLines(ctx context.Context, topic string, roster []Speaker) []Line {
	content := c.Respond(ctx, openingSystemPrompt(topic, roster), "Generate opening statements for discussion about: "+topic)

	if res, ok := ParseScript(content, roster).(Parsed); ok {
		return res.Lines
	}
	c.logger.Warn("opening lines malformed, using generic opening", "topic", topic)
	if len(roster) == 0 {
		return nil
	}
	return []Line{{SpeakerID: roster[0].ID, Text: GenericOpening}}
}

// Respond generates one incremental turn. Failures are reported in-band:
// MissingKeyText when no key is configured, ApologyText otherwise.
func (c *Client) Respond(ctx context.Context, system, user string) string {
	text, err := c.RespondErr(ctx, system, user)
	switch {
	case err == nil:
		return text
	case core.IsType(err, core.ErrConfiguration):
		return MissingKeyText
	default:
		return ApologyText
	}
}

// RespondPrompt is Respond for a prebuilt Prompt.
func (c *Client) RespondPrompt(ctx context.Context, p Prompt) (string, error) {
	return c.RespondErr(ctx, p.System, p.User)
}

// RespondErr is Respond with the failure returned instead of spoken.
func (c *Client) RespondErr(ctx context.Context, system, user string) (string, error) {
	text, err := c.complete(ctx, system, user, IncrementalParams)
	if err != nil {
		c.logger.Warn("incremental generation failed", "error", err)
		return "", err
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, system, user string, p Params) (string, error) {
	if c.chat == nil {
		return "", core.NewConfigurationError("no language model configured")
	}
	resp, err := c.chat.CreateChatCompletion(ctx, &openai.Request{
		Model: c.model,
		Messages: []openai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   p.MaxTokens,
		Temperature: openai.Float(p.Temperature),
		TopP:        openai.Float(p.TopP),
	})
	if err != nil {
		if core.IsType(err, core.ErrConfiguration) || core.IsType(err, core.ErrGeneration) {
			return "", err
		}
		return "", core.NewGenerationError("completion failed", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", core.NewGenerationError(fmt.Sprintf("empty completion (finish reason %q)", resp.FinishReason), nil)
	}
	return text, nil
}
