package game

import (
	"time"

	"github.com/mind-engage/coursepack/internal/content"
)

const (
	DefaultLives = 3

	LifelineFiftyFifty = "fifty_fifty"
	LifelineSkip       = "skip"
	LifelineBoost      = "boost"

	rungPoints = 100
)

// Ladder climbs one rung per correct answer. Wrong answers and timeouts
// cost a life; the climb ends when the questions or the lives run out.
type Ladder struct {
	sequential
	limit time.Duration
	Rung  int
}

func NewLadder(g *content.LadderGame, opts ...Option) *Engine[string] {
	return NewEngine[string](g.ID, g.Game, &Ladder{limit: time.Duration(g.TimeLimitSec) * time.Second}, opts...)
}

func (l *Ladder) Start(s *Session) {
	l.Rung = 0
	if s.Lives <= 0 {
		s.Lives = DefaultLives
	}
}

func (l *Ladder) Resolve(s *Session, choiceID string) Outcome {
	o := l.judge(s, choiceID)
	if o.Correct {
		l.Rung++
		o.Points = rungPoints
	} else {
		s.Lives--
	}
	return o
}

func (l *Ladder) Timeout(s *Session) Outcome {
	s.Lives--
	return l.timeout(s)
}

func (l *Ladder) Over(s *Session) (bool, bool) {
	passed := s.Correct >= s.Threshold
	return s.Lives <= 0 || s.Index >= len(s.Questions), passed
}

func (l *Ladder) QuestionTime(*Session) time.Duration { return l.limit }

func (l *Ladder) Lifeline(s *Session, name string) (*Outcome, error) {
	switch name {
	case LifelineFiftyFifty:
		fiftyFifty(s)
		return nil, nil
	case LifelineSkip:
		q, _ := s.Current()
		s.Index++
		return &Outcome{QuestionID: q.ID, Skipped: true}, nil
	default:
		return nil, ErrUnknownLifeline
	}
}
