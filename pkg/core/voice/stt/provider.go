// Package stt provides speech-to-text functionality.
package stt

import (
	"context"
	"errors"
	"io"
)

// Provider is the interface for speech-to-text services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts a recorded clip to text. It blocks until the
	// provider reports a final result.
	Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error)
}

// TranscribeOptions configures transcription.
type TranscribeOptions struct {
	Language         string // ISO language code; empty enables detection
	DisableDetection bool   // Skip automatic language detection
}

// Transcript is the result of transcription.
type Transcript struct {
	ID         string  // Provider job id
	Text       string  // Full transcribed text
	Language   string  // Detected or specified language
	Confidence float64 // Overall confidence, 0..1
}

// ErrNoSpeech is returned when a job completes with no recognized text.
var ErrNoSpeech = errors.New("stt: no speech detected")
