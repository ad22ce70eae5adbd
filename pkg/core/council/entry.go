package council

import (
	"time"

	"github.com/vango-go/vai-council/pkg/core/history"
)

// toEntry strips audio and persona data from s for history.
func toEntry(s *Session) history.Entry {
	script := make([]history.ScriptEntry, len(s.Messages))
	for i, m := range s.Messages {
		e := history.ScriptEntry{Message: m.Text, Timestamp: m.Timestamp.UnixMilli()}
		if id, ok := m.PanelistID(); ok {
			e.PanelistID = id
		} else {
			e.PanelistID = legacyUserID
			e.IsUserMessage = true
		}
		script[i] = e
	}

	entry := history.Entry{
		ID:               s.ID,
		Topic:            s.Topic,
		SelectedDuration: s.Duration,
		ActualDuration:   int(s.ActualDuration / time.Second),
		Script:           script,
		CreatedAt:        s.CreatedAt.UnixMilli(),
	}
	if !s.FirstPlayedAt.IsZero() {
		entry.FirstPlayedAt = s.FirstPlayedAt.UnixMilli()
	}
	return entry
}

// fromEntry rebuilds an auto discussion without panelists.
func fromEntry(e history.Entry) *Session {
	s := &Session{
		ID:             e.ID,
		Topic:          e.Topic,
		Duration:       e.SelectedDuration,
		Kind:           KindDiscussion,
		Mode:           ModeAuto,
		Messages:       make([]Message, len(e.Script)),
		Active:         true,
		CreatedAt:      time.UnixMilli(e.CreatedAt),
		ActualDuration: time.Duration(e.ActualDuration) * time.Second,
		Turns:          []Turn{},
	}
	if e.FirstPlayedAt != 0 {
		s.FirstPlayedAt = time.UnixMilli(e.FirstPlayedAt)
	}
	for i, line := range e.Script {
		s.Messages[i] = Message{
			Author:    authorOf(line.PanelistID, line.IsUserMessage),
			Text:      line.Message,
			Timestamp: time.UnixMilli(line.Timestamp),
		}
	}
	return s
}
