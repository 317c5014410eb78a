package game

import (
	"time"

	"github.com/mind-engage/coursepack/internal/content"
)

const racePoints = 100

// PursuitRace moves the runner one step up the track per right answer and
// the chaser one step per wrong answer or timeout. The track is as long as
// the pass threshold; the chaser starts headStart steps behind.
type PursuitRace struct {
	sequential
	limit     time.Duration
	headStart int
	Runner    int
	Chaser    int
}

func NewPursuitRace(g *content.PursuitRaceGame, opts ...Option) *Engine[string] {
	pr := &PursuitRace{limit: time.Duration(g.TimeLimitSec) * time.Second, headStart: g.HeadStart}
	if pr.headStart <= 0 {
		pr.headStart = g.Lives
	}
	if pr.headStart <= 0 {
		pr.headStart = DefaultLives
	}
	return NewEngine[string](g.ID, g.Game, pr, opts...)
}

func (p *PursuitRace) Start(*Session) {
	p.Runner = 0
	p.Chaser = -p.headStart
}

// Track is the number of steps to the top.
func (p *PursuitRace) Track(s *Session) int { return s.Threshold }

func (p *PursuitRace) Caught() bool { return p.Chaser >= p.Runner }

func (p *PursuitRace) Resolve(s *Session, choiceID string) Outcome {
	o := p.judge(s, choiceID)
	if o.Correct {
		p.Runner++
		o.Points = racePoints
	} else {
		p.Chaser++
	}
	return o
}

func (p *PursuitRace) Timeout(s *Session) Outcome {
	p.Chaser++
	return p.timeout(s)
}

func (p *PursuitRace) Over(s *Session) (bool, bool) {
	top := p.Runner >= p.Track(s)
	return top || p.Caught() || s.Index >= len(s.Questions), top
}

func (p *PursuitRace) QuestionTime(*Session) time.Duration { return p.limit }

// Lifeline "boost" moves the runner one step without answering.
func (p *PursuitRace) Lifeline(_ *Session, name string) (*Outcome, error) {
	if name != LifelineBoost {
		return nil, ErrUnknownLifeline
	}
	p.Runner++
	return nil, nil
}
