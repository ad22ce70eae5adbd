package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-go/vai-council/pkg/core/council"
)

const wavHeaderBytes = 44

// consoleSink prints cues and optionally writes their audio to WAV files.
type consoleSink struct {
	w          io.Writer
	outDir     string
	realtime   bool
	sampleRate int
	sleep      func(ctx context.Context, d time.Duration) error
}

func newConsoleSink(w io.Writer, outDir string, realtime bool, sampleRate int) *consoleSink {
	return &consoleSink{w: w, outDir: outDir, realtime: realtime, sampleRate: sampleRate, sleep: sleepContext}
}

func (s *consoleSink) Play(ctx context.Context, cue council.Cue) error {
	name := "You"
	if cue.Speaker != nil {
		name = fmt.Sprintf("%s (%s)", cue.Speaker.Name, cue.Speaker.Role)
	}

	wait := cue.Display
	switch {
	case cue.Silent:
		fmt.Fprintf(s.w, "%s: %s  [no audio]\n", name, cue.Message.Text)
	default:
		fmt.Fprintf(s.w, "%s: %s\n", name, cue.Message.Text)
		wait = wavDuration(len(cue.Message.Audio), s.sampleRate)
		if s.outDir != "" {
			path, err := s.writeAudio(cue)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.w, "  -> %s\n", path)
		}
	}

	if s.realtime {
		return s.sleep(ctx, wait)
	}
	return ctx.Err()
}

func (s *consoleSink) writeAudio(cue council.Cue) (string, error) {
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	who := "user"
	if cue.Speaker != nil {
		who = strings.ToLower(cue.Speaker.Name)
	}
	path := filepath.Join(s.outDir, fmt.Sprintf("%03d-%s.wav", cue.Index, who))
	if err := os.WriteFile(path, cue.Message.Audio, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	return path, nil
}

// wavDuration estimates the playing time of 16-bit mono WAV data.
func wavDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 || n <= wavHeaderBytes {
		return 0
	}
	samples := (n - wavHeaderBytes) / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
