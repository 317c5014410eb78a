package game

import (
	"strings"

	"github.com/mind-engage/coursepack/internal/content"
)

// correctChoice returns the ID of the single right answer. A question
// names it either through Answer or by flagging exactly one choice.
func correctChoice(q content.GameQuestion) (string, bool) {
	if q.Answer != "" {
		for _, c := range q.Choices {
			if c.ID == q.Answer {
				return c.ID, true
			}
		}
		return "", false
	}
	id, n := "", 0
	for _, c := range q.Choices {
		if c.Correct {
			id = c.ID
			n++
		}
	}
	return id, n == 1
}

// validChoiceQuestion rejects questions a choice game cannot ask.
func validChoiceQuestion(q content.GameQuestion) bool {
	if strings.TrimSpace(q.Prompt) == "" || len(q.Choices) < 2 {
		return false
	}
	seen := map[string]bool{}
	for _, c := range q.Choices {
		if c.ID == "" || seen[c.ID] {
			return false
		}
		seen[c.ID] = true
	}
	_, ok := correctChoice(q)
	return ok
}

// sequential is the shared part of the choice games: one question after
// another in document order.
type sequential struct{}

func (sequential) Valid(q content.GameQuestion) bool { return validChoiceQuestion(q) }

func (sequential) Next(s *Session) (content.GameQuestion, bool) { return s.Current() }

// judge resolves a choice answer against the current question and moves
// past it.
func (sequential) judge(s *Session, choiceID string) Outcome {
	q, _ := s.Current()
	want, _ := correctChoice(q)
	s.Index++
	return Outcome{QuestionID: q.ID, Selected: choiceID, Correct: choiceID != "" && choiceID == want}
}

func (sequential) timeout(s *Session) Outcome {
	q, _ := s.Current()
	s.Index++
	return Outcome{QuestionID: q.ID, TimedOut: true}
}

// fiftyFifty hides two wrong choices of the current question. At least one
// wrong choice always stays visible, so with few choices fewer are hidden.
func fiftyFifty(s *Session) {
	q, ok := s.Current()
	if !ok {
		return
	}
	want, _ := correctChoice(q)
	var wrong []string
	for _, c := range q.Choices {
		if c.ID != want && !s.Hidden[c.ID] {
			wrong = append(wrong, c.ID)
		}
	}
	for i := 0; i < min(2, len(wrong)-1); i++ {
		s.Hidden[wrong[i]] = true
	}
}
