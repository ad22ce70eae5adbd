package council

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/core/credentials"
	"github.com/vango-go/vai-council/pkg/core/dialogue"
	"github.com/vango-go/vai-council/pkg/core/history"
	"github.com/vango-go/vai-council/pkg/core/voice/tts"
	"github.com/vango-go/vai-council/pkg/metrics"
)

const (
	// DefaultMessagePacing separates synthesis requests within a round.
	DefaultMessagePacing = time.Second
	// DefaultRoundPacing precedes each background round.
	DefaultRoundPacing = time.Second

	// scriptSpacing offsets the placeholder timestamps of scripted lines.
	scriptSpacing = 3 * time.Second
)

// Generator produces dialogue. *dialogue.Client satisfies it.
type Generator interface {
	GenerateScript(ctx context.Context, topic string, duration int, roster []dialogue.Speaker) []dialogue.Line
	OpeningLines(ctx context.Context, topic string, roster []dialogue.Speaker) []dialogue.Line
	Respond(ctx context.Context, system, user string) string
	RespondPrompt(ctx context.Context, p dialogue.Prompt) (string, error)
}

// HistorySaver persists session summaries. *history.Store satisfies it.
type HistorySaver interface {
	Save(entry history.Entry) error
}

// Deps are the collaborators of an Orchestrator. History, Logger and
// Metrics are optional.
type Deps struct {
	Credentials credentials.Provider
	Synthesizer tts.Provider
	Dialogue    Generator
	History     HistorySaver
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMessagePacing sets the delay between synthesis requests in a round.
func WithMessagePacing(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.messagePacing = d
	}
}

// WithRoundPacing sets the delay before each background round.
func WithRoundPacing(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.roundPacing = d
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSleep replaces the pacing sleep.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// Orchestrator runs one council session at a time.
type Orchestrator struct {
	creds   credentials.Provider
	synth   tts.Provider
	gen     Generator
	hist    HistorySaver
	logger  *slog.Logger
	metrics *metrics.Metrics

	messagePacing time.Duration
	roundPacing   time.Duration
	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	run   *run
	state LiveState
}

// run is the per-session runtime state.
type run struct {
	session *Session
	task    *Task
	ready   bool
	// pass is held by whichever round pass is synthesizing, so the
	// background task and check-triggered passes never overlap.
	pass   sync.Mutex
	flight singleflight.Group
}

// New creates an Orchestrator.
func New(deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		creds:         deps.Credentials,
		synth:         deps.Synthesizer,
		gen:           deps.Dialogue,
		hist:          deps.History,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		messagePacing: DefaultMessagePacing,
		roundPacing:   DefaultRoundPacing,
		now:           time.Now,
		sleep:         sleepContext,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Initialize validates the request, builds the roster for kind and makes a
// new empty session current. Any previous session's background work is
// canceled.
func (o *Orchestrator) Initialize(ctx context.Context, topic string, duration int, kind Kind, mode Mode, extra string) (*Session, error) {
	r, err := o.initialize(ctx, topic, duration, kind, mode, extra)
	if err != nil {
		return nil, err
	}
	return o.snapshot(r), nil
}

func (o *Orchestrator) initialize(ctx context.Context, topic string, duration int, kind Kind, mode Mode, extra string) (*run, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, core.NewValidationError("topic is required", "topic")
	}
	if !kind.Valid() {
		return nil, core.NewValidationError("unknown session kind "+strconv.Quote(string(kind)), "kind")
	}
	if !mode.Valid() {
		return nil, core.NewValidationError("unknown session mode "+strconv.Quote(string(mode)), "mode")
	}
	if duration < 0 {
		return nil, core.NewValidationError("duration must be >= 0", "duration")
	}
	if kind == KindInterview && strings.TrimSpace(extra) == "" {
		return nil, core.NewValidationError("interview requires the job description and candidate background", "extraContent")
	}
	if err := o.validateCredentials(); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:           uuid.NewString(),
		Topic:        topic,
		Duration:     duration,
		Kind:         kind,
		Mode:         mode,
		ExtraContent: extra,
		Panelists:    Roster(kind, topic, extra),
		Messages:     []Message{},
		Active:       true,
		CreatedAt:    o.now(),
		Turns:        []Turn{},
	}
	r := o.replace(sess)

	o.metrics.RecordSessionStart(string(kind), string(mode))
	o.logger.InfoContext(ctx, "council session initialized",
		"session_id", sess.ID,
		"kind", kind,
		"mode", mode,
		"panelists", len(sess.Panelists),
	)
	return r, nil
}

// StartCouncil runs an auto-mode discussion: it generates the script,
// synthesizes round 0 before returning and leaves the remaining rounds to a
// background task. The session is saved to history.
func (o *Orchestrator) StartCouncil(ctx context.Context, topic string, duration int) (*Session, error) {
	if duration <= 0 {
		return nil, core.NewValidationError("duration must be > 0", "duration")
	}
	r, err := o.initialize(ctx, topic, duration, KindDiscussion, ModeAuto, "")
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	sess := r.session
	topic, roster := sess.Topic, speakers(sess.Panelists)
	o.mu.Unlock()

	lines := o.gen.GenerateScript(ctx, topic, duration, roster)

	o.mu.Lock()
	start := o.now()
	for i, l := range lines {
		sess.Messages = append(sess.Messages, Message{
			Author:    PanelistTurn{ID: l.SpeakerID},
			Text:      l.Text,
			Timestamp: start.Add(time.Duration(i) * scriptSpacing),
		})
	}
	o.mu.Unlock()

	o.logger.Info("council script ready", "session_id", sess.ID, "messages", len(lines))

	if err := o.pregenerate(ctx, r); err != nil {
		return nil, err
	}
	o.saveHistory(r)
	return o.snapshot(r), nil
}

// ReplaySession rebuilds a session from a history entry. Panelists are
// regenerated from the topic and audio is synthesized again, round 0 before
// returning.
func (o *Orchestrator) ReplaySession(ctx context.Context, entry history.Entry) (*Session, error) {
	if strings.TrimSpace(entry.Topic) == "" {
		return nil, core.NewValidationError("history entry has no topic", "topic")
	}
	sess := fromEntry(entry)
	sess.Panelists = Roster(KindDiscussion, sess.Topic, "")
	r := o.replace(sess)

	o.logger.Info("replaying session", "session_id", sess.ID, "messages", len(sess.Messages))
	if err := o.pregenerate(ctx, r); err != nil {
		return nil, err
	}
	return o.snapshot(r), nil
}

// CurrentSession returns a snapshot of the current session, or nil.
func (o *Orchestrator) CurrentSession() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return nil
	}
	return o.run.session.Clone()
}

// Message returns a copy of message i of the current session.
func (o *Orchestrator) Message(i int) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil || i < 0 || i >= len(o.run.session.Messages) {
		return Message{}, false
	}
	return o.run.session.Messages[i], true
}

// PlaybackReady reports whether round 0 of the current session has been
// synthesized (or skipped).
func (o *Orchestrator) PlaybackReady() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run != nil && o.run.ready
}

// RoundReady reports whether every message of round k has audio.
func (o *Orchestrator) RoundReady(k int) bool {
	o.mu.Lock()
	r := o.run
	o.mu.Unlock()
	if r == nil {
		return false
	}
	return o.roundReady(r, k)
}

// StopSession marks the session inactive and cancels its background
// synthesis. It does not wait.
func (o *Orchestrator) StopSession() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return
	}
	o.run.session.Active = false
	o.run.task.Cancel()
	o.state = StateAwaitingUser
	o.logger.Info("council session stopped", "session_id", o.run.session.ID)
}

// Exit stops the session and waits for background synthesis to unwind or
// for ctx to end.
func (o *Orchestrator) Exit(ctx context.Context) error {
	o.StopSession()
	o.mu.Lock()
	var task *Task
	if o.run != nil {
		task = o.run.task
	}
	o.mu.Unlock()
	if task == nil {
		return nil
	}
	if err := task.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// UpdateSessionMetrics records the elapsed playback time and, if not yet
// set, when playback first started, then saves the session again.
func (o *Orchestrator) UpdateSessionMetrics(actual time.Duration, firstPlayedAt time.Time) {
	o.mu.Lock()
	r := o.run
	if r == nil {
		o.mu.Unlock()
		return
	}
	r.session.ActualDuration = actual
	if !firstPlayedAt.IsZero() && r.session.FirstPlayedAt.IsZero() {
		r.session.FirstPlayedAt = firstPlayedAt
	}
	o.mu.Unlock()

	o.saveHistory(r)
}

// CheckAndGenerateNextRound pre-synthesizes the round after the one holding
// currentIndex once playback is at least halfway through it. Only one round
// pass runs at a time; calls made while another pass (including the
// background task's) is synthesizing return false immediately.
func (o *Orchestrator) CheckAndGenerateNextRound(ctx context.Context, currentIndex int) bool {
	o.mu.Lock()
	r := o.run
	if r == nil || !r.session.Active {
		o.mu.Unlock()
		return false
	}
	size, total := len(r.session.Panelists), len(r.session.Messages)
	o.mu.Unlock()

	next := RoundOf(currentIndex, size) + 1
	if RoundProgress(currentIndex, size) < 0.5 || next >= RoundCount(total, size) {
		return false
	}
	if o.roundReady(r, next) {
		return false
	}
	if !r.pass.TryLock() {
		return false
	}
	defer r.pass.Unlock()

	o.logger.Info("pre-generating upcoming round", "session_id", r.session.ID, "round", next+1)
	if err := o.synthesizeRound(ctx, r, next); err != nil {
		o.logger.Debug("upcoming round interrupted", "round", next+1, "error", err)
	}
	return true
}

// GenerateAudioForMessage synthesizes message index if it has no audio yet.
// It is a no-op for user messages and messages that already have audio, and
// joins a synthesis already running for the same message.
func (o *Orchestrator) GenerateAudioForMessage(ctx context.Context, index int) error {
	o.mu.Lock()
	r := o.run
	var total int
	if r != nil {
		total = len(r.session.Messages)
	}
	o.mu.Unlock()

	if r == nil {
		return core.NewValidationError("no active session", "session")
	}
	if index < 0 || index >= total {
		return core.NewValidationError("message index out of range", "index")
	}

	if _, err := o.synthesize(ctx, r, index); err != nil {
		var ce *core.Error
		if !errors.As(err, &ce) {
			err = core.NewSynthesisError("synthesis failed", err)
		}
		return err
	}
	return nil
}

// GenerateMessageAudio is GenerateAudioForMessage for live turns: failures
// are logged and the message stays silent. It reports whether the message
// has audio afterwards.
func (o *Orchestrator) GenerateMessageAudio(ctx context.Context, index int) bool {
	if err := o.GenerateAudioForMessage(ctx, index); err != nil {
		o.logger.Warn("message audio unavailable", "index", index, "error", err)
	}
	msg, ok := o.Message(index)
	return ok && msg.HasAudio()
}

// replace makes sess current and cancels the previous session's task.
func (o *Orchestrator) replace(sess *Session) *run {
	r := &run{session: sess}
	o.mu.Lock()
	if o.run != nil {
		o.run.session.Active = false
		o.run.task.Cancel()
	}
	o.run = r
	o.state = StateAwaitingUser
	o.mu.Unlock()
	return r
}

func (o *Orchestrator) snapshot(r *run) *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return r.session.Clone()
}

// pregenerate synthesizes round 0 and hands the remaining rounds to a
// background task.
func (o *Orchestrator) pregenerate(ctx context.Context, r *run) error {
	o.mu.Lock()
	total := RoundCount(len(r.session.Messages), len(r.session.Panelists))
	o.mu.Unlock()

	if total > 0 {
		r.pass.Lock()
		err := o.synthesizeRound(ctx, r, 0)
		r.pass.Unlock()
		if err != nil {
			return err
		}
		o.logger.Info("first round ready", "session_id", r.session.ID, "ready", o.roundReady(r, 0))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	r.ready = true
	if total > 1 && r.session.Active && o.run == r {
		r.task = Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
			return o.generateRounds(ctx, r, 1, total)
		})
	}
	return nil
}

func (o *Orchestrator) generateRounds(ctx context.Context, r *run, from, total int) error {
	for k := from; k < total; k++ {
		if err := o.sleep(ctx, o.roundPacing); err != nil {
			return err
		}
		r.pass.Lock()
		err := o.synthesizeRound(ctx, r, k)
		r.pass.Unlock()
		if err != nil {
			o.logger.Debug("background synthesis stopped", "session_id", r.session.ID, "round", k+1, "error", err)
			return err
		}
	}
	o.logger.Info("background synthesis complete", "session_id", r.session.ID, "rounds", total)
	return nil
}

// synthesizeRound synthesizes round k one message at a time. A message that
// fails is left silent; only cancellation stops the round.
func (o *Orchestrator) synthesizeRound(ctx context.Context, r *run, k int) error {
	o.mu.Lock()
	start, end := RoundBounds(k, len(r.session.Panelists), len(r.session.Messages))
	o.mu.Unlock()

	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempted, err := o.synthesize(ctx, r, i)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Warn("audio generation failed, skipping message",
				"session_id", r.session.ID,
				"round", k+1,
				"index", i,
				"error", err,
			)
		}
		if attempted && i < end-1 {
			if err := o.sleep(ctx, o.messagePacing); err != nil {
				return err
			}
		}
	}

	if o.roundReady(r, k) {
		o.metrics.RecordRoundReady()
	}
	return nil
}

// synthesize attaches audio to message i. Concurrent calls for the same
// message share one request. attempted is false when nothing needed doing.
func (o *Orchestrator) synthesize(ctx context.Context, r *run, i int) (attempted bool, err error) {
	v, err, _ := r.flight.Do(strconv.Itoa(i), func() (any, error) {
		o.mu.Lock()
		if i >= len(r.session.Messages) || r.session.Messages[i].HasAudio() {
			o.mu.Unlock()
			return false, nil
		}
		text := r.session.Messages[i].Text
		speaker, ok := r.session.Speaker(i)
		var voice, name string
		if ok {
			voice, name = speaker.VoiceID, speaker.Name
		}
		o.mu.Unlock()
		if !ok {
			return false, nil
		}
		if o.synth == nil {
			return true, core.NewConfigurationError("no speech synthesizer configured")
		}

		syn, err := o.synth.Synthesize(ctx, text, voice)
		if err != nil {
			return true, err
		}
		if syn == nil || len(syn.Audio) == 0 {
			return true, core.NewSynthesisError("synthesis returned no audio", tts.ErrNoAudio)
		}

		o.mu.Lock()
		if !r.session.Messages[i].HasAudio() {
			r.session.Messages[i].Audio = syn.Audio
		}
		o.mu.Unlock()
		o.logger.Debug("audio attached", "speaker", name, "index", i, "bytes", len(syn.Audio), "partial", syn.Partial)
		return true, nil
	})
	attempted, _ = v.(bool)
	return attempted, err
}

func (o *Orchestrator) roundReady(r *run, k int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	start, end := RoundBounds(k, len(r.session.Panelists), len(r.session.Messages))
	if start == end {
		return false
	}
	for _, m := range r.session.Messages[start:end] {
		if !m.HasAudio() {
			return false
		}
	}
	return true
}

func (o *Orchestrator) validateCredentials() error {
	if o.creds == nil {
		return core.NewConfigurationError("API keys not configured")
	}
	set, err := o.creds.Credentials()
	if err != nil {
		return core.NewConfigurationError("load credentials: " + err.Error())
	}
	return set.Validate()
}

func (o *Orchestrator) saveHistory(r *run) {
	if o.hist == nil {
		return
	}
	o.mu.Lock()
	entry := toEntry(r.session)
	o.mu.Unlock()

	if err := o.hist.Save(entry); err != nil {
		o.logger.Warn("session not saved to history", "session_id", entry.ID, "error", err)
	}
}

func speakers(panelists []Panelist) []dialogue.Speaker {
	out := make([]dialogue.Speaker, len(panelists))
	for i, p := range panelists {
		out[i] = dialogue.Speaker{ID: p.ID, Name: p.Name, Role: p.Role, Persona: p.Persona}
	}
	return out
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
