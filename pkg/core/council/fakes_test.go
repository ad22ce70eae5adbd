package council

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/vai-council/pkg/core/credentials"
	"github.com/vango-go/vai-council/pkg/core/dialogue"
	"github.com/vango-go/vai-council/pkg/core/history"
	"github.com/vango-go/vai-council/pkg/core/kv"
	"github.com/vango-go/vai-council/pkg/core/providers/openai"
	"github.com/vango-go/vai-council/pkg/core/voice/tts"
)

var testKeys = credentials.Static{LLM: "csk", Synthesis: "murf"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSynth returns the text as audio. Texts in fail never synthesize.
// When hold returns true for a text the call blocks until release is closed.
type fakeSynth struct {
	mu      sync.Mutex
	calls   map[string]int
	order   []string
	fail    map[string]bool
	hold    func(text string) bool
	started chan string
	release chan struct{}

	inflight, peak int
}

func newFakeSynth() *fakeSynth {
	return &fakeSynth{calls: map[string]int{}, fail: map[string]bool{}}
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(ctx context.Context, text, voiceID string) (*tts.Synthesis, error) {
	f.mu.Lock()
	f.calls[text]++
	f.order = append(f.order, text)
	fail := f.fail[text]
	hold := f.hold != nil && f.hold(text)
	f.inflight++
	f.peak = max(f.peak, f.inflight)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if hold {
		if f.started != nil {
			f.started <- text
		}
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("websocket closed: 1011")
	}
	return &tts.Synthesis{Audio: []byte("wav:" + text), Format: "wav"}, nil
}

func (f *fakeSynth) count(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

func (f *fakeSynth) peakConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func (f *fakeSynth) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

// fakeGen scripts dialogue replies.
type fakeGen struct {
	mu       sync.Mutex
	script   []dialogue.Line
	openings []dialogue.Line
	replies  []string
	err      error
	prompts  []dialogue.Prompt
}

func (g *fakeGen) GenerateScript(ctx context.Context, topic string, duration int, roster []dialogue.Speaker) []dialogue.Line {
	if g.script != nil {
		return g.script
	}
	return dialogue.FallbackScript(topic, duration*4, roster)
}

func (g *fakeGen) OpeningLines(ctx context.Context, topic string, roster []dialogue.Speaker) []dialogue.Line {
	return g.openings
}

func (g *fakeGen) Respond(ctx context.Context, system, user string) string {
	text, err := g.RespondPrompt(ctx, dialogue.Prompt{System: system, User: user})
	if err != nil {
		return dialogue.ApologyText
	}
	return text
}

func (g *fakeGen) RespondPrompt(ctx context.Context, p dialogue.Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "reply", nil
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r, nil
}

func (g *fakeGen) lastPrompt() dialogue.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[len(g.prompts)-1]
}

// unreachableChat fails every completion.
type unreachableChat struct{}

func (unreachableChat) CreateChatCompletion(ctx context.Context, req *openai.Request) (*openai.Response, error) {
	return nil, errors.New("dial tcp api.cerebras.ai:443: connect: network is unreachable")
}

type testEnv struct {
	o       *Orchestrator
	synth   *fakeSynth
	gen     *fakeGen
	history *history.Store
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		synth:   newFakeSynth(),
		gen:     &fakeGen{},
		history: history.New(kv.NewMemory(), history.WithLogger(quietLogger())),
	}
	base := []Option{WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() })}
	env.o = New(Deps{
		Credentials: testKeys,
		Synthesizer: env.synth,
		Dialogue:    env.gen,
		History:     env.history,
		Logger:      quietLogger(),
	}, append(base, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.o.Exit(ctx)
	})
	return env
}

// waitBackground blocks until the current session's background task ends.
func (env *testEnv) waitBackground(t *testing.T) {
	t.Helper()
	env.o.mu.Lock()
	task := env.o.run.task
	env.o.mu.Unlock()
	if task == nil {
		return
	}
	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("background synthesis did not finish")
	}
}
