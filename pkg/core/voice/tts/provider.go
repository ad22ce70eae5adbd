// Package tts provides text-to-speech functionality.
package tts

import (
	"context"
	"errors"
)

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts one utterance to a single audio payload.
	Synthesize(ctx context.Context, text, voiceID string) (*Synthesis, error)
}

// Synthesis is the result of synthesis.
type Synthesis struct {
	Audio      []byte // Concatenated audio data
	Format     string // Audio container, e.g. "wav"
	SampleRate int    // Sample rate in Hz
	Chunks     int    // Number of audio frames received
	Partial    bool   // True if the stream closed before the final marker
}

var (
	// ErrNoAudio is returned when a stream ends without any audio frames.
	ErrNoAudio = errors.New("tts: stream closed without audio")

	// ErrMissingAPIKey is returned when no synthesis credential is configured.
	ErrMissingAPIKey = errors.New("tts: synthesis API key not configured")
)
