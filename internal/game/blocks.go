package game

import (
	"math"
	"time"

	"github.com/mind-engage/coursepack/internal/content"
)

const (
	DefaultStackLimit = 5
	DefaultFallTime   = 12 * time.Second
	MinFallTime       = 4 * time.Second
	ClearsPerLevel    = 3
	fallSpeedup       = 0.9
	blockPoints       = 100
	bonusPerSecond    = 10
)

// FallingBlocks drops one block per question. A right answer clears the
// block; a wrong answer or a block hitting the floor stacks it. The game
// ends when the stack reaches its limit or the questions run out.
type FallingBlocks struct {
	sequential
	base       time.Duration
	stackLimit int
	Stack      int
}

func NewFallingBlocks(g *content.FallingBlocksGame, opts ...Option) *Engine[string] {
	fb := &FallingBlocks{base: DefaultFallTime, stackLimit: g.StackLimit}
	if g.TimeLimitSec > 0 {
		fb.base = time.Duration(g.TimeLimitSec) * time.Second
	}
	if fb.stackLimit <= 0 {
		fb.stackLimit = DefaultStackLimit
	}
	return NewEngine[string](g.ID, g.Game, fb, opts...)
}

func (f *FallingBlocks) Start(*Session) { f.Stack = 0 }

// Level starts at 1 and rises every ClearsPerLevel cleared blocks.
func Level(cleared int) int { return 1 + cleared/ClearsPerLevel }

// FallTime shrinks by 10% per level down to MinFallTime.
func FallTime(base time.Duration, level int) time.Duration {
	d := time.Duration(float64(base) * math.Pow(fallSpeedup, float64(level-1)))
	return max(d, MinFallTime)
}

func (f *FallingBlocks) QuestionTime(s *Session) time.Duration {
	return FallTime(f.base, Level(s.Correct))
}

func (f *FallingBlocks) Resolve(s *Session, choiceID string) Outcome {
	o := f.judge(s, choiceID)
	if o.Correct {
		o.Points = blockPoints*Level(s.Correct) + int(s.Remaining/time.Second)*bonusPerSecond
	} else {
		f.Stack++
	}
	return o
}

func (f *FallingBlocks) Timeout(s *Session) Outcome {
	f.Stack++
	return f.timeout(s)
}

func (f *FallingBlocks) Over(s *Session) (bool, bool) {
	return f.Stack >= f.stackLimit || s.Index >= len(s.Questions), s.Correct >= s.Threshold
}
