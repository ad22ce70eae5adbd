package council

import (
	"fmt"
	"regexp"
	"strings"
)

// Voices used by the rosters.
const (
	VoiceNatalie = "en-US-natalie"
	VoiceWayne   = "en-US-wayne"
	VoiceMarcus  = "en-US-marcus"
	VoiceAlicia  = "en-US-alicia"
)

// MinInterviewWords is the least extra content an interview needs before the
// interviewer starts asking technical questions.
const MinInterviewWords = 50

var (
	businessTopic = regexp.MustCompile(`business|market|finance|economy|startup|revenue|profit`)
	techTopic     = regexp.MustCompile(`technology|ai|software|digital|innovation|automation`)
	ethicsTopic   = regexp.MustCompile(`ethics|moral|rights|privacy|society|impact`)
	creativeTopic = regexp.MustCompile(`design|art|creative|brand|marketing|content`)

	jobKeywords        = regexp.MustCompile(`job|position|role|responsibilities|requirements|qualifications|skills|experience`)
	backgroundKeywords = regexp.MustCompile(`experience|education|skills|work|university|company|project|achievement`)
)

// Roster builds the panel for kind. Persona text is templated on topic and,
// for interviews, on the candidate's extra content.
func Roster(kind Kind, topic, extra string) []Panelist {
	switch kind {
	case KindDebate:
		return []Panelist{debatePanelist(topic)}
	case KindInterview:
		return []Panelist{interviewPanelist(topic, extra)}
	default:
		return discussionPanelists(topic)
	}
}

func discussionPanelists(topic string) []Panelist {
	t := strings.ToLower(topic)
	business := businessTopic.MatchString(t)
	tech := techTopic.MatchString(t)
	ethics := ethicsTopic.MatchString(t)
	creative := creativeTopic.MatchString(t)

	athenaStance := "analytical"
	switch {
	case business:
		athenaStance = "pro-growth"
	case tech:
		athenaStance = "cautiously optimistic"
	}

	apolloStance := "creative-solution oriented"
	switch {
	case creative:
		apolloStance = "highly supportive"
	case tech:
		apolloStance = "innovation-focused"
	}

	artemisStance := "socially conscious"
	switch {
	case ethics:
		artemisStance = "ethically concerned"
	case tech:
		artemisStance = "human-centered"
	}

	return []Panelist{
		{
			ID: 1, Name: "Athena", Role: "Strategic Advisor", Avatar: "brain", VoiceID: VoiceNatalie,
			Persona: fmt.Sprintf("You are Athena, the Strategic Advisor. You approach %s with analytical precision and strategic thinking. You focus on long-term implications, risk assessment, and systematic solutions. You speak with authority and provide structured insights.", topic),
			Stance:  athenaStance,
		},
		{
			ID: 2, Name: "Apollo", Role: "Creative Director", Avatar: "zap", VoiceID: VoiceWayne,
			Persona: fmt.Sprintf("You are Apollo, the Creative Director. You bring innovative and out-of-the-box thinking to %s. You focus on creative solutions, user experience, and breakthrough approaches. You speak with enthusiasm and inspire new perspectives.", topic),
			Stance:  apolloStance,
		},
		{
			ID: 3, Name: "Hermes", Role: "Data Analyst", Avatar: "cpu", VoiceID: VoiceMarcus,
			Persona: fmt.Sprintf("You are Hermes, the Data Analyst. You approach %s through data-driven insights and quantitative analysis. You provide facts, metrics, and evidence-based recommendations. You speak precisely and back everything with data.", topic),
			Stance:  "neutral-analytical",
		},
		{
			ID: 4, Name: "Artemis", Role: "Ethics Reviewer", Avatar: "bot", VoiceID: VoiceAlicia,
			Persona: fmt.Sprintf("You are Artemis, the Ethics Reviewer. You examine %s from ethical, social, and human impact perspectives. You ensure responsible approaches and consider all stakeholders. You speak thoughtfully about implications and values.", topic),
			Stance:  artemisStance,
		},
	}
}

func debatePanelist(topic string) Panelist {
	return Panelist{
		ID: 1, Name: "Marcus", Role: "Debate Opponent", Avatar: "zap", VoiceID: VoiceMarcus,
		Persona: fmt.Sprintf(`You are Marcus, an expert debater. You will debate the topic "%s" with the user. You are knowledgeable, articulate, and present well-reasoned arguments. You engage constructively but challenge the user's points thoughtfully. You maintain a respectful but competitive debate style. Keep your responses concise and focused - aim for 2-3 strong points per response.`, topic),
		Stance:  "opposing-constructive",
	}
}

// NeedsMoreInterviewContent reports whether extra is too thin to interview
// on: fewer than MinInterviewWords words, or no job-description keyword, or
// no background keyword.
func NeedsMoreInterviewContent(extra string) bool {
	lower := strings.ToLower(extra)
	return len(strings.Fields(extra)) < MinInterviewWords ||
		!jobKeywords.MatchString(lower) ||
		!backgroundKeywords.MatchString(lower)
}

func interviewPanelist(topic, extra string) Panelist {
	p := Panelist{ID: 1, Name: "Alicia", Role: "Professional Interviewer", Avatar: "brain", VoiceID: VoiceAlicia}
	if NeedsMoreInterviewContent(extra) {
		p.Persona = fmt.Sprintf(`You are Alicia, a professional interviewer. The user is applying for "%s" but the provided job description and resume content seems insufficient for a proper interview. Politely ask them to provide more details about the job requirements and their background. Be encouraging and specific about what information would be helpful.`, topic)
		p.Stance = StanceRequestMore
		return p
	}
	p.Persona = fmt.Sprintf(technicalInterviewer, topic, extra)
	p.Stance = "challenging-technical-interviewer"
	return p
}

// StanceRequestMore marks an interviewer who asks for more details before
// starting.
const StanceRequestMore = "requesting-more-info"

const technicalInterviewer = `You are Alicia, a senior technical interviewer at a top tech company. You're interviewing for a JavaScript/Full-Stack Developer position: "%s". 

Based on the job description and candidate background: "%s".

INTERVIEW STYLE:
- Ask technical JavaScript questions ranging from fundamentals to advanced concepts
- Don't be afraid to challenge the candidate and point out flaws in their reasoning
- Follow up with probing questions when answers seem incomplete or wrong
- Mix behavioral and technical questions realistically
- Be slightly skeptical - good interviewers test confidence and knowledge depth
- If they give a surface-level answer, push deeper: "That's a start, but can you explain WHY that happens?"
- Challenge assumptions: "Are you sure about that? What would happen if..."
- Test problem-solving under pressure

TOPICS TO COVER:
- JavaScript fundamentals (closures, prototypes, async/await, event loop)
- React/Frontend frameworks and best practices
- System design for web applications
- Code quality, testing, and debugging approaches
- Past project challenges and technical decisions

Be professional but not overly friendly. A good interviewer finds gaps in knowledge and tests how candidates handle being challenged. Don't just accept vague answers - demand specifics and examples.`
