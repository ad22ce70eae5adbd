package council

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vango-go/vai-council/pkg/core"
)

const (
	wordsPerSecond     = 2.5
	minDisplayDuration = 2 * time.Second
	displayBuffer      = 500 * time.Millisecond
)

// FallbackDisplayDuration is how long a message without audio stays on
// screen: its reading time at 2.5 words per second, at least two seconds,
// plus half a second.
func FallbackDisplayDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	d := time.Duration(float64(words) / wordsPerSecond * float64(time.Second))
	return max(d, minDisplayDuration) + displayBuffer
}

// Cue is one message handed to a Sink.
type Cue struct {
	Index   int
	Message Message
	Speaker *Panelist // nil for user messages
	Silent  bool      // no audio; show for Display
	Display time.Duration
}

// Sink presents cues. Play blocks until the cue has finished.
type Sink interface {
	Play(ctx context.Context, cue Cue) error
}

// Player drives playback of the orchestrator's current session.
type Player struct {
	o      *Orchestrator
	sink   Sink
	logger *slog.Logger
}

// NewPlayer creates a Player.
func NewPlayer(o *Orchestrator, sink Sink, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{o: o, sink: sink, logger: logger}
}

// Play presents every message of the current session in order. Upcoming
// rounds are pulled forward as playback advances, missing audio is
// synthesized on demand, and messages that still have no audio are shown
// silently. Session metrics are recorded when playback ends.
func (p *Player) Play(ctx context.Context) error {
	sess := p.o.CurrentSession()
	if sess == nil {
		return core.NewValidationError("no active session", "session")
	}

	var lookahead errgroup.Group
	lookahead.SetLimit(1)

	start := p.o.now()
	var firstPlayed time.Time
	var playErr error
	for i := range sess.Messages {
		if err := ctx.Err(); err != nil {
			playErr = err
			break
		}
		if cur := p.o.CurrentSession(); cur == nil || cur.ID != sess.ID || !cur.Active {
			break
		}

		lookahead.TryGo(func() error {
			p.o.CheckAndGenerateNextRound(ctx, i)
			return nil
		})

		if firstPlayed.IsZero() {
			firstPlayed = p.o.now()
		}
		if err := p.PlayMessage(ctx, i); err != nil {
			playErr = err
			break
		}
	}
	_ = lookahead.Wait()

	p.o.UpdateSessionMetrics(p.o.now().Sub(start), firstPlayed)
	return playErr
}

// PlayMessage presents message i, synthesizing its audio first if needed.
func (p *Player) PlayMessage(ctx context.Context, i int) error {
	msg, ok := p.o.Message(i)
	if !ok {
		return core.NewValidationError("message index out of range", "index")
	}
	if !msg.HasAudio() && !msg.IsUser() {
		if err := p.o.GenerateAudioForMessage(ctx, i); err != nil {
			p.logger.Warn("audio unavailable, showing message silently", "index", i, "error", err)
		}
		msg, _ = p.o.Message(i)
	}

	cue := Cue{Index: i, Message: msg}
	if sess := p.o.CurrentSession(); sess != nil {
		cue.Speaker, _ = sess.Speaker(i)
	}
	if !msg.HasAudio() {
		cue.Silent = true
		cue.Display = FallbackDisplayDuration(msg.Text)
	}
	return p.sink.Play(ctx, cue)
}
