package council

import (
	"context"
	"strings"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/core/dialogue"
)

const (
	// DiscussionWindow is how many recent turns a live discussion prompt sees.
	DiscussionWindow = 6
	// PairWindow is how many recent turns debate and interview prompts see.
	PairWindow = 4
)

// LiveState is the turn-taking state of a live session.
type LiveState int

const (
	// StateAwaitingUser is when the user may speak.
	StateAwaitingUser LiveState = iota
	// StateAIGenerating is when a reply is being generated.
	StateAIGenerating
	// StateAIResponding is when a generated reply is being delivered.
	StateAIResponding
	// StateAIGenerationFailed is when the last reply could not be generated.
	StateAIGenerationFailed
)

// String returns a human-readable state name.
func (s LiveState) String() string {
	switch s {
	case StateAwaitingUser:
		return "AWAITING_USER"
	case StateAIGenerating:
		return "AI_GENERATING"
	case StateAIResponding:
		return "AI_RESPONDING"
	case StateAIGenerationFailed:
		return "AI_GENERATION_FAILED"
	default:
		return "UNKNOWN"
	}
}

// LiveState returns the current turn-taking state.
func (o *Orchestrator) LiveState() LiveState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// FinishResponse returns control to the user after a reply was delivered or
// failed.
func (o *Orchestrator) FinishResponse() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateAIResponding || o.state == StateAIGenerationFailed {
		o.setStateLocked(StateAwaitingUser)
	}
}

// AddUserMessage appends a user turn and advances the round counter. It
// does not call the model.
func (o *Orchestrator) AddUserMessage(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.NewValidationError("message is empty", "text")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return core.NewValidationError("no active session", "session")
	}
	if o.state == StateAIGenerating {
		return core.NewValidationError("a reply is still being generated", "state")
	}

	now := o.now()
	sess := o.run.session
	sess.Turns = append(sess.Turns, Turn{Role: "user", Content: text, Timestamp: now})
	sess.Messages = append(sess.Messages, Message{Author: UserTurn{}, Text: text, Timestamp: now})
	sess.CurrentRound++
	o.setStateLocked(StateAwaitingUser)
	return nil
}

// GenerateLiveResponse generates the next panelist reply. In a discussion
// the panelists answer in turn; debates and interviews have one panelist.
//
// A generation failure is not an error: it returns nil, nil and leaves the
// state at StateAIGenerationFailed so the user can try again. Missing
// credentials return a configuration error.
func (o *Orchestrator) GenerateLiveResponse(ctx context.Context) (*Message, error) {
	if err := o.validateCredentials(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	r := o.run
	if r == nil {
		o.mu.Unlock()
		return nil, core.NewValidationError("no active session", "session")
	}
	if o.state == StateAIGenerating {
		o.mu.Unlock()
		return nil, core.NewValidationError("a reply is already being generated", "state")
	}
	sess := r.session
	if len(sess.Panelists) == 0 {
		o.mu.Unlock()
		return nil, core.NewValidationError("session has no panelists", "panelists")
	}

	var speaker Panelist
	var prompt dialogue.Prompt
	switch sess.Kind {
	case KindDiscussion:
		speaker = sess.Panelists[Responder(sess.CurrentRound, len(sess.Panelists))]
		prompt = dialogue.DiscussionResponse(sess.Topic, speaker.Persona, promptTurns(Window(sess.Turns, DiscussionWindow)))
	case KindDebate:
		speaker = sess.Panelists[0]
		prompt = dialogue.DebateResponse(speaker.Persona, promptTurns(Window(sess.Turns, PairWindow)))
	default:
		speaker = sess.Panelists[0]
		prompt = dialogue.InterviewResponse(speaker.Persona, promptTurns(Window(sess.Turns, PairWindow)))
	}
	o.setStateLocked(StateAIGenerating)
	o.mu.Unlock()

	text, err := o.gen.RespondPrompt(ctx, prompt)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run != r {
		// The session was replaced while generating.
		return nil, nil
	}
	if err != nil {
		if core.IsType(err, core.ErrConfiguration) {
			o.setStateLocked(StateAwaitingUser)
			return nil, err
		}
		o.setStateLocked(StateAIGenerationFailed)
		o.metrics.RecordLiveResponse("failed")
		o.logger.Warn("live response failed", "session_id", sess.ID, "speaker", speaker.Name, "error", err)
		return nil, nil
	}

	now := o.now()
	msg := Message{Author: PanelistTurn{ID: speaker.ID}, Text: text, Timestamp: now}
	sess.Messages = append(sess.Messages, msg)
	sess.Turns = append(sess.Turns, Turn{Role: "assistant", Content: text, Timestamp: now})
	o.setStateLocked(StateAIResponding)
	o.metrics.RecordLiveResponse("ok")
	return &msg, nil
}

// GenerateInitialLiveContent produces the opening of a live session: an
// opening line from each panelist for a discussion, an opening statement for
// a debate, and a first question (or a request for more details) for an
// interview. The lines are appended to the session.
func (o *Orchestrator) GenerateInitialLiveContent(ctx context.Context) ([]Message, error) {
	if err := o.validateCredentials(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	r := o.run
	if r == nil {
		o.mu.Unlock()
		return nil, core.NewValidationError("no active session", "session")
	}
	sess := r.session
	kind, topic, extra := sess.Kind, sess.Topic, sess.ExtraContent
	panelists := append([]Panelist(nil), sess.Panelists...)
	o.mu.Unlock()

	if len(panelists) == 0 {
		return nil, core.NewValidationError("session has no panelists", "panelists")
	}

	var lines []dialogue.Line
	switch kind {
	case KindDiscussion:
		lines = o.gen.OpeningLines(ctx, topic, speakers(panelists))
	case KindDebate:
		p := dialogue.DebateOpening(topic, panelists[0].Persona)
		lines = []dialogue.Line{{SpeakerID: panelists[0].ID, Text: o.gen.Respond(ctx, p.System, p.User)}}
	case KindInterview:
		requestMore := panelists[0].Stance == StanceRequestMore
		p := dialogue.InterviewOpening(topic, panelists[0].Persona, extra, requestMore)
		lines = []dialogue.Line{{SpeakerID: panelists[0].ID, Text: o.gen.Respond(ctx, p.System, p.User)}}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	out := make([]Message, 0, len(lines))
	for _, l := range lines {
		out = append(out, Message{Author: PanelistTurn{ID: l.SpeakerID}, Text: l.Text, Timestamp: now})
	}
	if o.run == r {
		sess.Messages = append(sess.Messages, out...)
	}
	return out, nil
}

func (o *Orchestrator) setStateLocked(s LiveState) {
	if o.state != s {
		o.logger.Debug("live state", "from", o.state, "to", s)
	}
	o.state = s
}

func promptTurns(turns []Turn) []dialogue.Turn {
	out := make([]dialogue.Turn, len(turns))
	for i, t := range turns {
		out[i] = dialogue.Turn{Role: t.Role, Content: t.Content}
	}
	return out
}
