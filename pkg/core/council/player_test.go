package council

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/core/dialogue"
)

type recordingSink struct {
	mu     sync.Mutex
	cues   []Cue
	stopAt int
	cancel context.CancelFunc
}

func (s *recordingSink) Play(ctx context.Context, cue Cue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cues = append(s.cues, cue)
	if s.cancel != nil && len(s.cues) == s.stopAt {
		s.cancel()
	}
	return ctx.Err()
}

func TestPlayer_PlaysEveryMessageInOrder(t *testing.T) {
	env := newTestEnv(t)
	script := dialogue.FallbackScript("ai", 8, speakers(Roster(KindDiscussion, "ai", "")))
	env.synth.fail[script[5].Text] = true

	sess, err := env.o.StartCouncil(context.Background(), "ai", 2)
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	if err := NewPlayer(env.o, sink, quietLogger()).Play(context.Background()); err != nil {
		t.Fatalf("Play error: %v", err)
	}

	if len(sink.cues) != 8 {
		t.Fatalf("cues = %d, want 8", len(sink.cues))
	}
	for i, cue := range sink.cues {
		if cue.Index != i || cue.Speaker == nil || cue.Speaker.ID != sess.Panelists[i%4].ID {
			t.Fatalf("cue %d = %#v", i, cue)
		}
		if cue.Silent != (i == 5) {
			t.Fatalf("cue %d silent = %v", i, cue.Silent)
		}
	}
	if want := FallbackDisplayDuration(script[5].Text); sink.cues[5].Display != want {
		t.Fatalf("silent display = %v, want %v", sink.cues[5].Display, want)
	}

	entry, ok, _ := env.history.Get(sess.ID)
	if !ok || entry.FirstPlayedAt == 0 {
		t.Fatalf("history entry = %#v, want first play time recorded", entry)
	}
}

func TestPlayer_SynthesizesOnDemand(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.o.Initialize(context.Background(), "ai", 0, KindDebate, ModeLive, ""); err != nil {
		t.Fatal(err)
	}
	env.gen.replies = []string{"opening"}
	if _, err := env.o.GenerateInitialLiveContent(context.Background()); err != nil {
		t.Fatal(err)
	}

	sink := &recordingSink{}
	p := NewPlayer(env.o, sink, quietLogger())
	if err := p.PlayMessage(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	if sink.cues[0].Silent || env.synth.count("opening") != 1 {
		t.Fatalf("cue = %#v, synthesis calls = %d", sink.cues[0], env.synth.count("opening"))
	}
	if err := p.PlayMessage(context.Background(), 3); !core.IsType(err, core.ErrValidation) {
		t.Fatalf("PlayMessage(3) = %v, want validation error", err)
	}
}

func TestPlayer_StopsWhenCanceled(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.o.StartCouncil(context.Background(), "ai", 2); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{stopAt: 2, cancel: cancel}

	done := make(chan error, 1)
	go func() { done <- NewPlayer(env.o, sink, quietLogger()).Play(ctx) }()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Play = %v, want canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Play did not stop")
	}
	if len(sink.cues) != 2 {
		t.Fatalf("cues = %d, want 2", len(sink.cues))
	}
}

func TestPlayer_NoSession(t *testing.T) {
	env := newTestEnv(t)
	err := NewPlayer(env.o, &recordingSink{}, nil).Play(context.Background())
	if !core.IsType(err, core.ErrValidation) {
		t.Fatalf("Play = %v, want validation error", err)
	}
}
