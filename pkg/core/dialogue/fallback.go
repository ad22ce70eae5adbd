package dialogue

import (
	"fmt"
	"strings"
)

// GenericOpening is the single opening used when live opening lines cannot
// be parsed.
const GenericOpening = "Let me start our discussion with some initial thoughts on this topic."

type cannedVoice struct {
	opening   string // formatted with the topic
	reactions []string
}

var cannedVoices = map[string]cannedVoice{
	"athena": {
		opening: "Let me analyze %s from a strategic perspective. We need to consider the long-term implications.",
		reactions: []string{
			"Strategic analysis shows three critical pathways we must consider.",
			"The risk assessment reveals both opportunities and challenges ahead.",
			"We need a systematic approach to implementation and measurement.",
			"Long-term sustainability should be our primary consideration here.",
			"Market positioning will be crucial for success in this area.",
		},
	},
	"apollo": {
		opening: "I see fascinating creative opportunities in %s. We should think outside the box here.",
		reactions: []string{
			"What if we approached this with a completely fresh perspective?",
			"I envision innovative solutions that could transform the landscape.",
			"Creative disruption might be exactly what this space needs.",
			"User experience should drive every decision we make here.",
			"Brand differentiation will set us apart from competitors.",
		},
	},
	"hermes": {
		opening: "The data surrounding %s shows several interesting patterns. Let me share the key metrics.",
		reactions: []string{
			"Current data shows 73% alignment with market trends.",
			"Statistical analysis indicates strong growth potential ahead.",
			"Quantitative modeling suggests three viable scenarios.",
			"Performance metrics exceed baseline expectations by 24%.",
			"Evidence-based recommendations point to optimal pathways.",
		},
	},
	"artemis": {
		opening: "From an ethical standpoint, %s raises important questions about responsibility and impact.",
		reactions: []string{
			"We must ensure all stakeholders are considered in this decision.",
			"Ethical frameworks demand responsible implementation practices.",
			"Human impact assessment reveals critical considerations.",
			"Social responsibility should guide our approach here.",
			"Values-based decision making is essential for sustainable success.",
		},
	},
}

// genericVoice covers speakers without their own bank.
var genericVoice = cannedVoice{
	opening: "Let me share my perspective on %s to get us started.",
	reactions: []string{
		"That raises a point worth examining more closely.",
		"There are trade-offs here that we should weigh carefully.",
		"I'd like to push back on that assumption a little.",
		"Let's consider what this means in practice.",
		"That brings us closer to a workable conclusion.",
	},
}

// FallbackScript builds a deterministic script without a model: one opening
// line per speaker, then reactions in round-robin order up to totalTurns.
// Speaker i mod N says reaction floor((i-N)/N) mod 5 of their bank.
func FallbackScript(topic string, totalTurns int, roster []Speaker) []Line {
	n := len(roster)
	if n == 0 {
		return nil
	}

	lines := make([]Line, 0, max(totalTurns, n))
	for _, s := range roster {
		lines = append(lines, Line{SpeakerID: s.ID, Text: fmt.Sprintf(voiceFor(s).opening, topic)})
	}
	for i := n; i < totalTurns; i++ {
		s := roster[i%n]
		bank := voiceFor(s).reactions
		lines = append(lines, Line{SpeakerID: s.ID, Text: bank[((i-n)/n)%len(bank)]})
	}
	return lines
}

func voiceFor(s Speaker) cannedVoice {
	if v, ok := cannedVoices[strings.ToLower(s.Name)]; ok {
		return v
	}
	return genericVoice
}
