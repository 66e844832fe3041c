package app

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode/utf8"

	"therapy_notes_generator/internal/domain/textgen"

	"github.com/sirupsen/logrus"
)

const (
	SummaryMinLength = 480
	SummaryMaxLength = 560
)

const summaryPadding = " Additionally, the client should continue developing skills to recognize early warning signs and implement proactive coping strategies."

var fallbackClientResponses = []string{
	`"I usually stay quiet when something bothers me because I don't want to cause conflict." The therapist helped the client identify this as emotional avoidance and practiced using "I" statements to express discomfort respectfully.`,
	`"I tend to overthink every decision and then get paralyzed by anxiety." The therapist explored cognitive distortions related to perfectionism and introduced the concept of "good enough" decision-making to reduce distress.`,
	`"When I'm stressed, I isolate myself from everyone and then feel even worse." The therapist acknowledged the cycle and supported the client in identifying specific social connections that feel safe and accessible during low mood periods.`,
	`"I get overwhelmed by my responsibilities and end up doing nothing." The therapist helped the client break down tasks into manageable steps and introduced time-blocking techniques to reduce procrastination and emotional dysregulation.`,
	`"I feel guilty whenever I take time for myself because there's always more to do." The therapist addressed the internalized pressure and guided the client to recognize self-care as a necessary component of sustainability, not selfishness.`,
	`"I avoid difficult conversations because I'm afraid of making things worse." The therapist practiced assertive communication skills and helped the client identify manageable steps to address conflicts while protecting relationships.`,
	`"I don't know how to set boundaries without feeling selfish or mean." The therapist explained healthy boundaries as self-protection, not punishment, and role-played scenarios where the client could practice boundary setting with compassionate firmness.`,
	`"I compare myself to others constantly and always come up short in my mind." The therapist explored how comparison serves as emotional self-punishment and helped the client identify unique strengths and values they contribute beyond external achievements.`,
}

// fallbackSummaries take the first and second activity names.
var fallbackSummaries = []string{
	`During the group session, the client showed initial awareness of how disorganized routines and task avoidance can signal early signs of mood decline. The discussion of %s highlighted how avoidance behaviors and cognitive overload can trigger emotional dysregulation, and the work on %s connected inconsistent self-care with mood instability. While the client demonstrated interest in more structured routines, ongoing barriers include perfectionistic thinking and emotional avoidance. Future sessions should focus on self-care practices.`,
	`Through participation in the group sessions, the client gained insight into the relationship between lifestyle factors and emotional regulation. During %s the client acknowledged how poor nutrition, lack of routine and medication non-adherence can exacerbate symptoms, and %s reinforced the value of planning ahead. However, the client continues to struggle with applying these insights outside of the therapeutic environment. Future sessions should focus on concrete, time-limited action plans for periods of low motivation.`,
	`The client demonstrated understanding of cognitive-behavioral patterns that contribute to emotional distress, particularly avoidance and all-or-nothing thinking. In %s the client showed awareness of how black-and-white interpretations of self and others can amplify anxiety, and %s offered practice in alternative responses. Despite this awareness, the client continues to have difficulty modifying these patterns in real time. The therapeutic focus should remain on cognitive flexibility and distress tolerance skills.`,
}

// ClientResponse is a quoted client statement followed by the therapist intervention.
type ClientResponse struct {
	Text         string
	Statement    string
	Intervention string
	Fallback     bool
}

// TextService applies the fallback contract around a text generator: every call returns usable
// text, chosen deterministically from seed when the generator is missing, fails, returns
// nothing or returns text out of bounds.
type TextService struct {
	generator textgen.Generator
	logger    *logrus.Entry
}

// NewTextService accepts a nil generator, in which case only fallback text is produced.
func NewTextService(generator textgen.Generator, logger *logrus.Entry) *TextService {
	return &TextService{generator: generator, logger: logger.WithField("component", "text")}
}

func (s *TextService) ClientResponse(ctx context.Context, req textgen.ResponseRequest, seed string) ClientResponse {
	if s.generator != nil {
		text, err := s.generator.GenerateClientResponse(ctx, req)
		text = strings.TrimSpace(text)
		switch {
		case err != nil:
			s.logger.WithError(err).WithField("activity", req.ActivityName).Warn("Client response generation failed, using fallback")
		case text == "":
			s.logger.WithField("activity", req.ActivityName).Warn("Empty client response, using fallback")
		default:
			statement, intervention := ParseClientResponse(text)
			return ClientResponse{Text: text, Statement: statement, Intervention: intervention}
		}
	}

	text := fallbackClientResponses[pick(seed, len(fallbackClientResponses))]
	statement, intervention := ParseClientResponse(text)
	return ClientResponse{Text: text, Statement: statement, Intervention: intervention, Fallback: true}
}

func (s *TextService) ProgressSummary(ctx context.Context, req textgen.SummaryRequest, seed string) string {
	if s.generator != nil {
		text, err := s.generator.GenerateProgressSummary(ctx, req)
		text = strings.TrimSpace(text)
		n := utf8.RuneCountInString(text)
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("Progress summary generation failed, using fallback")
		case n < SummaryMinLength:
			s.logger.WithField("length", n).Warn("Progress summary too short, using fallback")
		default:
			return truncateSummary(text)
		}
	}
	return fallbackSummary(req, seed)
}

// ParseClientResponse splits `"statement" intervention` into its parts. Text that does not
// open with a quote is returned whole as the statement.
func ParseClientResponse(text string) (statement, intervention string) {
	text = strings.TrimSpace(text)
	opening, size := utf8.DecodeRuneInString(text)
	var closing rune
	switch opening {
	case '"':
		closing = '"'
	case '“':
		closing = '”'
	default:
		return text, ""
	}
	rest := text[size:]
	end := strings.IndexRune(rest, closing)
	if end < 0 {
		return strings.TrimSpace(rest), ""
	}
	return strings.TrimSpace(rest[:end]), strings.TrimSpace(rest[end+utf8.RuneLen(closing):])
}

func fallbackSummary(req textgen.SummaryRequest, seed string) string {
	names := []string{"life skills", "healthy coping"}
	for i := 0; i < len(names) && i < len(req.Activities); i++ {
		if name := strings.TrimSpace(req.Activities[i].Name); name != "" {
			names[i] = name
		}
	}
	summary := fmt.Sprintf(fallbackSummaries[pick(seed, len(fallbackSummaries))], names[0], names[1])
	for utf8.RuneCountInString(summary) < SummaryMinLength {
		summary += summaryPadding
	}
	return truncateSummary(summary)
}

// truncateSummary cuts text longer than SummaryMaxLength to fit, marking the cut with "...".
func truncateSummary(text string) string {
	runes := []rune(text)
	if len(runes) <= SummaryMaxLength {
		return text
	}
	return string(runes[:SummaryMaxLength-3]) + "..."
}

func pick(seed string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return int(h.Sum32() % uint32(n))
}
