package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/core/credentials"
)

const (
	murfWSURL             = "wss://api.murf.ai/v1/speech/stream-input"
	murfDefaultSampleRate = 44100
	murfDefaultStyle      = "Conversational"
)

// MurfProvider implements Provider over Murf's streaming websocket API.
// Every call opens its own connection and context id.
type MurfProvider struct {
	keys       credentials.Provider
	wsURL      string
	dialer     *websocket.Dialer
	sampleRate int
	style      string
	logger     *slog.Logger
}

// MurfOption configures a MurfProvider.
type MurfOption func(*MurfProvider)

// WithURL sets a custom websocket endpoint (for testing or proxying).
func WithURL(wsURL string) MurfOption {
	return func(m *MurfProvider) {
		m.wsURL = wsURL
	}
}

// WithDialer sets a custom websocket dialer.
func WithDialer(d *websocket.Dialer) MurfOption {
	return func(m *MurfProvider) {
		if d != nil {
			m.dialer = d
		}
	}
}

// WithSampleRate sets the requested output sample rate.
func WithSampleRate(rate int) MurfOption {
	return func(m *MurfProvider) {
		if rate > 0 {
			m.sampleRate = rate
		}
	}
}

// WithStyle sets the voice style sent in the voice configuration frame.
func WithStyle(style string) MurfOption {
	return func(m *MurfProvider) {
		if style != "" {
			m.style = style
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(logger *slog.Logger) MurfOption {
	return func(m *MurfProvider) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMurf creates a Murf provider that reads its API key from keys on every
// call.
func NewMurf(keys credentials.Provider, opts ...MurfOption) *MurfProvider {
	m := &MurfProvider{
		keys:       keys,
		wsURL:      murfWSURL,
		dialer:     websocket.DefaultDialer,
		sampleRate: murfDefaultSampleRate,
		style:      murfDefaultStyle,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the provider identifier.
func (m *MurfProvider) Name() string {
	return "murf"
}

type murfVoiceConfig struct {
	VoiceID   string `json:"voiceId"`
	Style     string `json:"style"`
	Rate      int    `json:"rate"`
	Pitch     int    `json:"pitch"`
	Variation int    `json:"variation"`
}

type murfConfigFrame struct {
	VoiceConfig murfVoiceConfig `json:"voice_config"`
	ContextID   string          `json:"context_id"`
}

type murfTextFrame struct {
	Text      string `json:"text"`
	ContextID string `json:"context_id"`
	End       bool   `json:"end"`
}

type murfResponse struct {
	Audio     string `json:"audio,omitempty"`
	Final     bool   `json:"final,omitempty"`
	ContextID string `json:"context_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Synthesize sends one utterance and assembles the streamed audio.
//
// If the connection closes before the final marker, the frames received so
// far are returned with Partial set. A close with no frames is ErrNoAudio.
func (m *MurfProvider) Synthesize(ctx context.Context, text, voiceID string) (*Synthesis, error) {
	if m.keys == nil {
		return nil, core.NewConfigurationError(ErrMissingAPIKey.Error())
	}
	if strings.TrimSpace(text) == "" {
		return nil, core.NewValidationError("text is empty", "text")
	}
	set, err := m.keys.Credentials()
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if set.Synthesis == "" {
		return nil, core.NewConfigurationError(ErrMissingAPIKey.Error())
	}

	u, err := url.Parse(m.wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("api-key", set.Synthesis)
	q.Set("sample_rate", strconv.Itoa(m.sampleRate))
	q.Set("channel_type", "MONO")
	q.Set("format", "WAV")
	u.RawQuery = q.Encode()

	conn, _, err := m.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	contextID := generateContextID()
	if err := conn.WriteJSON(murfConfigFrame{
		VoiceConfig: murfVoiceConfig{
			VoiceID:   voiceID,
			Style:     m.style,
			Rate:      0,
			Pitch:     0,
			Variation: 1,
		},
		ContextID: contextID,
	}); err != nil {
		return nil, fmt.Errorf("send voice config: %w", err)
	}
	if err := conn.WriteJSON(murfTextFrame{Text: text, ContextID: contextID, End: true}); err != nil {
		return nil, fmt.Errorf("send text: %w", err)
	}

	var audio bytes.Buffer
	chunks := 0
	for {
		var msg murfResponse
		if err := conn.ReadJSON(&msg); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("murf stream: %w", ctxErr)
			}
			if chunks > 0 {
				m.logger.Warn("murf stream closed before final frame, using partial audio",
					"voice", voiceID, "chunks", chunks, "error", err)
				return m.result(audio.Bytes(), chunks, true), nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil, fmt.Errorf("websocket closed: %d %s: %w", closeErr.Code, closeErr.Text, ErrNoAudio)
			}
			return nil, fmt.Errorf("read frame: %v: %w", err, ErrNoAudio)
		}

		if msg.Error != "" {
			return nil, fmt.Errorf("murf error: %s", msg.Error)
		}

		if msg.Audio != "" {
			data, err := decodeBase64Audio(msg.Audio)
			if err != nil {
				return nil, fmt.Errorf("decode audio: %w", err)
			}
			audio.Write(data)
			chunks++
		}

		if msg.Final {
			if audio.Len() == 0 {
				return nil, ErrNoAudio
			}
			return m.result(audio.Bytes(), chunks, false), nil
		}
	}
}

func (m *MurfProvider) result(audio []byte, chunks int, partial bool) *Synthesis {
	out := make([]byte, len(audio))
	copy(out, audio)
	return &Synthesis{
		Audio:      out,
		Format:     "wav",
		SampleRate: m.sampleRate,
		Chunks:     chunks,
		Partial:    partial,
	}
}

func decodeBase64Audio(s string) ([]byte, error) {
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func generateContextID() string {
	return fmt.Sprintf("council_%d_%s", time.Now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
}
