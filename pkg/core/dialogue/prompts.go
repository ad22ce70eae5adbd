package dialogue

import (
	"fmt"
	"strings"
)

// Prompt is a system and user message pair.
type Prompt struct {
	System string
	User   string
}

// Turn is one entry of the role-tagged conversation log.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

func scriptSystemPrompt(topic string, duration int, roster []Speaker) string {
	targetWords := duration * 150
	return fmt.Sprintf(`You are an expert scriptwriter for a realistic AI council debate on "%[1]s". Your task is to generate a compelling and natural-flowing discussion that lasts approximately %[2]d minutes (around %[3]d words).

The council has %[4]d panelists:
%[5]s

CRITICAL REQUIREMENTS:
1.  **Conversational Flow**: This is a debate, not a Q&A. Panelists MUST react to, build upon, or counter the points made by the previous speaker. Use phrases like "That's an interesting point, but...", "I agree with %[6]s, and I'd add...", "The data doesn't fully support that."
2.  **Script Length**: The total length of all messages combined should be approximately %[3]d words to simulate a %[2]d-minute discussion.
3.  **Speaking Order**: Follow the order: %[7]s, and repeat. Ensure a balanced number of turns for each.
4.  **Realistic Pacing**: Vary the length of each turn. Some can be short reactions, others longer explanations.
5.  **Conclusion**: The final turns should bring the discussion to a natural summary or conclusion.

Format your response as a valid JSON array of objects, where each object has:
{
  "speaker": "panelist_name",
  "message": "what they say"
}`, topic, duration, targetWords, len(roster), rosterList(roster), firstName(roster), speakingOrder(roster))
}

func scriptUserPrompt(topic string, duration int) string {
	return fmt.Sprintf("Generate the complete %d-minute council discussion script about: %s", duration, topic)
}

func openingSystemPrompt(topic string, roster []Speaker) string {
	return fmt.Sprintf(`Generate opening statements for a discussion about "%s". Each panelist should provide their initial perspective in 2-3 sentences. This is the start of a live discussion where a user will participate.

Panelists:
%s

Format as JSON array with objects: {"speaker": "name", "message": "content"}`, topic, rosterList(roster))
}

// DebateOpening builds the prompt for a debate's opening statement.
func DebateOpening(topic, persona string) Prompt {
	return Prompt{
		System: fmt.Sprintf(`%s

Generate a strong opening statement for a debate about "%s". This should be 2-3 sentences that clearly present your position and invite the user to respond. Be engaging and thought-provoking.`, persona, topic),
		User: "Provide your opening statement for the debate about: " + topic,
	}
}

// InterviewOpening builds the prompt for an interview's first turn. When
// requestMore is set the interviewer asks for more details instead of
// starting the interview.
func InterviewOpening(topic, persona, content string, requestMore bool) Prompt {
	if requestMore {
		return Prompt{
			System: persona + "\n\nAsk the candidate to provide more information about the job description and their background.",
			User:   "Request more information from the candidate",
		}
	}
	return Prompt{
		System: fmt.Sprintf(`%s

Start the interview with a professional greeting and the first question. Base your questions on the provided content: "%s"`, persona, content),
		User: fmt.Sprintf("Begin the interview for the %s position", topic),
	}
}

// DiscussionResponse builds a live discussion turn from the recent log.
func DiscussionResponse(topic, persona string, recent []Turn) Prompt {
	return Prompt{
		System: fmt.Sprintf(`%s

You are participating in a live discussion about "%s". Respond to the user's input and the ongoing conversation. Keep your response to 2-3 sentences and engage naturally with what was just said.

Recent conversation:
%s`, persona, topic, historyText(recent)),
		User: "Respond to the user's input in the discussion",
	}
}

// DebateResponse builds a debate rebuttal from the recent log.
func DebateResponse(persona string, recent []Turn) Prompt {
	return Prompt{
		System: fmt.Sprintf(`%s

Recent debate exchange:
%s

Respond to the user's argument with a strong counter-argument or follow-up point. Be respectful but challenging. Keep it to 2-3 sentences.`, persona, historyText(recent)),
		User: "Respond to the user's debate point",
	}
}

// InterviewResponse builds the interviewer's follow-up from the recent log.
func InterviewResponse(persona string, recent []Turn) Prompt {
	return Prompt{
		System: fmt.Sprintf(`%s

Interview progress:
%s

Ask a relevant follow-up question or provide feedback on their answer, then ask the next question. Keep it professional and engaging.`, persona, historyText(recent)),
		User: "Continue the interview based on the candidate's response",
	}
}

func rosterList(roster []Speaker) string {
	lines := make([]string, len(roster))
	for i, s := range roster {
		lines[i] = fmt.Sprintf("- %s (%s): %s", s.Name, s.Role, s.Persona)
	}
	return strings.Join(lines, "\n")
}

func speakingOrder(roster []Speaker) string {
	names := make([]string, len(roster))
	for i, s := range roster {
		names[i] = s.Name
	}
	return strings.Join(names, " → ")
}

func firstName(roster []Speaker) string {
	if len(roster) == 0 {
		return "the previous speaker"
	}
	return roster[0].Name
}

func historyText(turns []Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Role + ": " + t.Content
	}
	return strings.Join(lines, "\n")
}
