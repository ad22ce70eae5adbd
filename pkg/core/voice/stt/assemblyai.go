package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/core/credentials"
	"github.com/vango-go/vai-council/pkg/metrics"
)

const (
	assemblyAIBaseURL = "https://api.assemblyai.com"

	// DefaultPollInterval and DefaultMaxPolls bound a transcription job to
	// about one minute.
	DefaultPollInterval = time.Second
	DefaultMaxPolls     = 60
)

// AssemblyAIProvider implements Provider with AssemblyAI's upload and
// transcript job API.
type AssemblyAIProvider struct {
	keys         credentials.Provider
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	maxPolls     int
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures an AssemblyAIProvider.
type Option func(*AssemblyAIProvider)

// WithBaseURL sets a custom base URL (for testing or proxying).
func WithBaseURL(url string) Option {
	return func(p *AssemblyAIProvider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *AssemblyAIProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithPolling sets the status poll interval and the maximum number of polls.
func WithPolling(interval time.Duration, maxPolls int) Option {
	return func(p *AssemblyAIProvider) {
		if interval > 0 {
			p.pollInterval = interval
		}
		if maxPolls > 0 {
			p.maxPolls = maxPolls
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *AssemblyAIProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records transcription outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *AssemblyAIProvider) {
		p.metrics = m
	}
}

// NewAssemblyAI creates a provider that reads its API key from keys.
func NewAssemblyAI(keys credentials.Provider, opts ...Option) *AssemblyAIProvider {
	p := &AssemblyAIProvider{
		keys:         keys,
		baseURL:      assemblyAIBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: DefaultPollInterval,
		maxPolls:     DefaultMaxPolls,
		sleep:        sleepContext,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *AssemblyAIProvider) Name() string {
	return "assemblyai"
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL          string `json:"audio_url"`
	LanguageDetection bool   `json:"language_detection,omitempty"`
	LanguageCode      string `json:"language_code,omitempty"`
}

type transcriptResponse struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"` // "queued", "processing", "completed", "error"
	Text         string   `json:"text"`
	Error        string   `json:"error"`
	LanguageCode string   `json:"language_code"`
	Confidence   *float64 `json:"confidence"`
}

// Transcribe uploads audio, starts a transcript job and polls it until it
// completes, fails or the poll budget runs out.
func (p *AssemblyAIProvider) Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error) {
	t, err := p.transcribe(ctx, audio, opts)
	switch {
	case err == nil:
		p.metrics.RecordTranscription("completed")
	case core.IsType(err, core.ErrConfiguration):
		p.metrics.RecordTranscription("unconfigured")
	default:
		p.metrics.RecordTranscription("error")
	}
	return t, err
}

func (p *AssemblyAIProvider) transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error) {
	set, err := p.keys.Credentials()
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	apiKey := set.Transcription
	if apiKey == "" {
		return nil, core.NewConfigurationError("transcription API key not configured")
	}

	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, core.NewTranscriptionError("empty recording", ErrNoSpeech)
	}

	uploadURL, err := p.upload(ctx, apiKey, data)
	if err != nil {
		return nil, core.NewTranscriptionError("upload failed", err)
	}
	p.logger.Debug("audio uploaded", "bytes", len(data))

	req := transcriptRequest{AudioURL: uploadURL}
	if opts.Language != "" {
		req.LanguageCode = opts.Language
	} else if !opts.DisableDetection {
		req.LanguageDetection = true
	}
	var job transcriptResponse
	if err := p.doJSON(ctx, http.MethodPost, "/v2/transcript", apiKey, req, &job); err != nil {
		return nil, core.NewTranscriptionError("transcription request failed", err)
	}
	p.logger.Debug("transcription job created", "id", job.ID)

	for attempt := 1; attempt <= p.maxPolls; attempt++ {
		if err := p.sleep(ctx, p.pollInterval); err != nil {
			return nil, core.NewTranscriptionError("transcription canceled", err)
		}

		var status transcriptResponse
		if err := p.doJSON(ctx, http.MethodGet, "/v2/transcript/"+job.ID, apiKey, nil, &status); err != nil {
			return nil, core.NewTranscriptionError("status check failed", err)
		}
		p.logger.Debug("transcription status", "id", job.ID, "attempt", attempt, "status", status.Status)

		switch status.Status {
		case "completed":
			text := strings.TrimSpace(status.Text)
			if text == "" {
				return nil, core.NewTranscriptionError("no speech detected", ErrNoSpeech)
			}
			t := &Transcript{ID: job.ID, Text: text, Language: status.LanguageCode, Confidence: 1}
			if status.Confidence != nil {
				t.Confidence = *status.Confidence
			}
			return t, nil
		case "error":
			return nil, core.NewTranscriptionError(fmt.Sprintf("transcription failed: %s", status.Error), nil)
		}
	}

	return nil, core.NewTranscriptionError(
		fmt.Sprintf("transcription timeout after %d polls", p.maxPolls), context.DeadlineExceeded)
}

func (p *AssemblyAIProvider) upload(ctx context.Context, apiKey string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/upload", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out uploadResponse
	if err := p.do(req, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}
	return out.UploadURL, nil
}

func (p *AssemblyAIProvider) doJSON(ctx context.Context, method, path, apiKey string, body, out any) error {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return p.do(req, out)
}

func (p *AssemblyAIProvider) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("assemblyai error %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
