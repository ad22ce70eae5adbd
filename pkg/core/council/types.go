package council

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Kind selects the roster and prompts of a session.
type Kind string

const (
	KindDiscussion Kind = "discussion"
	KindDebate     Kind = "debate"
	KindInterview  Kind = "interview"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDiscussion, KindDebate, KindInterview:
		return true
	}
	return false
}

// Mode selects scripted or turn-by-turn generation.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeLive Mode = "live"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeAuto || m == ModeLive
}

// Panelist is a synthetic participant. Panelists are immutable once the
// session starts.
type Panelist struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Avatar  string `json:"avatar"` // "brain", "zap", "cpu" or "bot"
	VoiceID string `json:"voiceId"`
	Persona string `json:"persona"`
	Stance  string `json:"stance"`
}

// Author identifies who said a message: a PanelistTurn or a UserTurn.
type Author interface {
	author()
}

// PanelistTurn is a message spoken by the panelist with ID.
type PanelistTurn struct {
	ID int
}

// UserTurn is a message typed or spoken by the human participant.
type UserTurn struct{}

func (PanelistTurn) author() {}
func (UserTurn) author()     {}

// legacyUserID is the panelist id stored for user messages in persisted
// history.
const legacyUserID = 999

// Message is one utterance. Audio moves from nil to set at most once.
type Message struct {
	Author    Author
	Text      string
	Audio     []byte
	Timestamp time.Time
}

// IsUser reports whether the human participant wrote m.
func (m Message) IsUser() bool {
	_, ok := m.Author.(UserTurn)
	return ok
}

// PanelistID returns the speaking panelist, or false for user messages.
func (m Message) PanelistID() (int, bool) {
	if p, ok := m.Author.(PanelistTurn); ok {
		return p.ID, true
	}
	return 0, false
}

// HasAudio reports whether synthesized audio is attached.
func (m Message) HasAudio() bool {
	return len(m.Audio) > 0
}

type messageJSON struct {
	PanelistID    int    `json:"panelistId"`
	Message       string `json:"message"`
	AudioBase64   []byte `json:"audioBase64,omitempty"`
	Timestamp     int64  `json:"timestamp"`
	IsUserMessage bool   `json:"isUserMessage,omitempty"`
}

// MarshalJSON writes the wire shape shared with stored history.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		Message:     m.Text,
		AudioBase64: m.Audio,
		Timestamp:   m.Timestamp.UnixMilli(),
	}
	switch a := m.Author.(type) {
	case PanelistTurn:
		out.PanelistID = a.ID
	case UserTurn:
		out.PanelistID = legacyUserID
		out.IsUserMessage = true
	default:
		return nil, fmt.Errorf("message has no author")
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the wire shape. A message is the user's when it is
// flagged as such or carries the legacy user id.
func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.Author = authorOf(in.PanelistID, in.IsUserMessage)
	m.Text = in.Message
	m.Audio = in.AudioBase64
	m.Timestamp = time.UnixMilli(in.Timestamp)
	return nil
}

func authorOf(panelistID int, isUser bool) Author {
	if isUser || panelistID == legacyUserID {
		return UserTurn{}
	}
	return PanelistTurn{ID: panelistID}
}

// Turn is one entry of the role-tagged conversation log used to build live
// prompts. It is separate from the displayed messages.
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the aggregate root of one council run.
type Session struct {
	ID             string        `json:"id"`
	Topic          string        `json:"topic"`
	Duration       int           `json:"duration"` // minutes; 0 in live mode
	Kind           Kind          `json:"sessionType"`
	Mode           Mode          `json:"sessionMode"`
	ExtraContent   string        `json:"interviewContent,omitempty"`
	Panelists      []Panelist    `json:"panelists"`
	Messages       []Message     `json:"messages"`
	Active         bool          `json:"isActive"`
	CreatedAt      time.Time     `json:"createdAt"`
	ActualDuration time.Duration `json:"actualDuration,omitempty"`
	FirstPlayedAt  time.Time     `json:"firstPlayedAt,omitzero"`
	CurrentRound   int           `json:"currentRound"`
	Turns          []Turn        `json:"conversationHistory"`
}

// Panelist returns the roster entry with id.
func (s *Session) Panelist(id int) (*Panelist, bool) {
	for i := range s.Panelists {
		if s.Panelists[i].ID == id {
			return &s.Panelists[i], true
		}
	}
	return nil, false
}

// Speaker returns the panelist who said messages[i]; false for user
// messages and out-of-range indexes.
func (s *Session) Speaker(i int) (*Panelist, bool) {
	if i < 0 || i >= len(s.Messages) {
		return nil, false
	}
	id, ok := s.Messages[i].PanelistID()
	if !ok {
		return nil, false
	}
	return s.Panelist(id)
}

// Clone returns a copy safe to read while the orchestrator keeps mutating
// the original. Audio buffers are shared since they are never written after
// being attached.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Panelists = slices.Clone(s.Panelists)
	c.Messages = slices.Clone(s.Messages)
	c.Turns = slices.Clone(s.Turns)
	return &c
}
