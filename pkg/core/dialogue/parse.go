package dialogue

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ParseResult is the outcome of reading a model reply as a script:
// either Parsed or Malformed.
type ParseResult interface {
	parseResult()
}

// Parsed holds a reply that decoded into at least one line.
type Parsed struct {
	Lines []Line
}

// Malformed holds a reply that could not be used, with the reason.
type Malformed struct {
	Raw string
	Err error
}

func (Parsed) parseResult()    {}
func (Malformed) parseResult() {}

var codeFence = regexp.MustCompile("```(?:json|JSON)?")

type scriptItem struct {
	Speaker string `json:"speaker"`
	Message string `json:"message"`
}

// ParseScript decodes a JSON array of {speaker, message} objects, optionally
// wrapped in a markdown code fence. Unknown speakers are attributed to the
// first panelist; items with an empty message are dropped.
func ParseScript(content string, roster []Speaker) ParseResult {
	clean := stripFences(content)
	if len(roster) == 0 {
		return Malformed{Raw: content, Err: errors.New("empty roster")}
	}

	var items []scriptItem
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		return Malformed{Raw: content, Err: err}
	}

	lines := make([]Line, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(item.Message)
		if text == "" {
			continue
		}
		lines = append(lines, Line{SpeakerID: speakerID(roster, item.Speaker), Text: text})
	}
	if len(lines) == 0 {
		return Malformed{Raw: content, Err: errors.New("script has no lines")}
	}
	return Parsed{Lines: lines}
}

func stripFences(content string) string {
	return strings.TrimSpace(codeFence.ReplaceAllLiteralString(content, ""))
}

func speakerID(roster []Speaker, name string) int {
	for _, s := range roster {
		if s.Name == name {
			return s.ID
		}
	}
	return roster[0].ID
}
