// Package game runs the embedded mini-games. Every game shares one state
// machine, Engine, and differs only in the Strategy that resolves a turn.
//
//	Idle -> Playing -> Question -> Resolve -> (Playing | Ended)
//
// A game reports exactly one outcome per finished session through its
// Recorder. Questions that cannot be played are dropped; a game left with
// none ends at once as passed.
package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/coursepack/internal/content"
)

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePlaying  Phase = "playing"
	PhaseQuestion Phase = "question"
	PhaseResolve  Phase = "resolve"
	PhaseEnded    Phase = "ended"
)

var (
	ErrWrongPhase      = errors.New("game: action not allowed in this phase")
	ErrPaused          = errors.New("game: paused")
	ErrUnknownLifeline = errors.New("game: unknown lifeline")
	ErrLifelineUsed    = errors.New("game: lifeline already used")
	ErrNotAGame        = errors.New("game: activity is not a game")
)

// Threshold is the number of correct answers needed out of n:
// ceil(n * pct / 100).
func Threshold(n, pct int) int {
	if n <= 0 {
		return 0
	}
	pct = max(0, min(pct, 100))
	return (n*pct + 99) / 100
}

// Clock returns the current time; tests pin it.
type Clock func() time.Time

// Recorder receives the terminal pass/fail of a session.
type Recorder interface {
	RecordOutcome(activityID string, passed bool)
}

// ScoreRecorder is optionally implemented by a Recorder that also keeps
// numeric game scores.
type ScoreRecorder interface {
	RecordScore(activityID string, score int)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(activityID string, passed bool)

func (f RecorderFunc) RecordOutcome(id string, passed bool) { f(id, passed) }

// Response is one resolved turn, reported for analytics.
type Response struct {
	ActivityID string
	QuestionID string
	SelectedID string
	Correct    bool
	Points     int
}

// Outcome is how a strategy resolved a turn.
type Outcome struct {
	QuestionID string
	Selected   string
	Correct    bool
	TimedOut   bool
	Skipped    bool
	Points     int
}

// Session is the ephemeral state of one play-through. Strategies keep
// their own extra state and reset it in Start.
type Session struct {
	Questions []content.GameQuestion
	Index     int
	Correct   int
	Wrong     int
	Score     int
	Lives     int
	Threshold int
	PassMark  int
	Used      map[string]bool
	Hidden    map[string]bool // choices removed from the current question
	Remaining time.Duration   // time left on the question being resolved
	Passed    bool
}

// Current returns the question at Index.
func (s *Session) Current() (content.GameQuestion, bool) {
	if s.Index < 0 || s.Index >= len(s.Questions) {
		return content.GameQuestion{}, false
	}
	return s.Questions[s.Index], true
}

// Strategy is the per-game part of the state machine.
type Strategy[V any] interface {
	// Valid filters questions before a session starts.
	Valid(q content.GameQuestion) bool
	// Start resets strategy state for a fresh session.
	Start(s *Session)
	// Next returns the question to ask, or false when none is left.
	Next(s *Session) (content.GameQuestion, bool)
	Resolve(s *Session, v V) Outcome
	Timeout(s *Session) Outcome
	// Over reports whether the session has ended, and whether it passes
	// if it ended now.
	Over(s *Session) (over, passed bool)
	// QuestionTime is the clock for the current question, 0 for none.
	QuestionTime(s *Session) time.Duration
}

// GameTimer is implemented by strategies with a clock over the whole game.
type GameTimer interface {
	TotalTime(s *Session) time.Duration
}

// LifelineStrategy is implemented by strategies offering lifelines. A
// non-nil outcome resolves the current question.
type LifelineStrategy interface {
	Lifeline(s *Session, name string) (*Outcome, error)
}

type config struct {
	now      Clock
	recorder Recorder
	report   func(Response)
}

type Option func(*config)

func WithClock(c Clock) Option { return func(o *config) { o.now = c } }

func WithRecorder(r Recorder) Option { return func(o *config) { o.recorder = r } }

// WithResponses receives every resolved turn.
func WithResponses(fn func(Response)) Option { return func(o *config) { o.report = fn } }

// Player is the type-independent surface of an Engine.
type Player interface {
	ActivityID() string
	Phase() Phase
	Paused() bool
	Start() error
	Next() error
	Tick() bool
	Pause()
	Resume()
	UseLifeline(name string) (*Outcome, error)
	PlayAgain()
	Session() Session
	Current() (content.GameQuestion, bool)
	Choices() []content.Choice
	Remaining() time.Duration
	Result() (ended, passed bool)
}

// ChoicePlayer is a Player answered by choice ID.
type ChoicePlayer interface {
	Player
	Answer(choiceID string) (Outcome, error)
}

type Engine[V any] struct {
	id        string
	settings  content.Game
	questions []content.GameQuestion
	strat     Strategy[V]
	cfg       config

	phase    Phase
	paused   bool
	s        Session
	cur      content.GameQuestion
	qTimer   timer
	allTimer timer
	emitted  bool
}

func NewEngine[V any](activityID string, g content.Game, strat Strategy[V], opts ...Option) *Engine[V] {
	cfg := config{now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}
	e := &Engine[V]{id: activityID, settings: g, strat: strat, cfg: cfg, phase: PhaseIdle}
	for _, q := range g.Questions {
		if strat.Valid(q) {
			e.questions = append(e.questions, q)
		}
	}
	return e
}

func (e *Engine[V]) ActivityID() string { return e.id }

func (e *Engine[V]) Phase() Phase { return e.phase }

func (e *Engine[V]) Paused() bool { return e.paused }

// Strategy exposes the per-game state, e.g. a word search grid.
func (e *Engine[V]) Strategy() Strategy[V] { return e.strat }

// Session returns a copy of the session state.
func (e *Engine[V]) Session() Session {
	s := e.s
	s.Questions = append([]content.GameQuestion(nil), e.s.Questions...)
	s.Used = copySet(e.s.Used)
	s.Hidden = copySet(e.s.Hidden)
	return s
}

func (e *Engine[V]) Current() (content.GameQuestion, bool) {
	if e.phase != PhaseQuestion {
		return content.GameQuestion{}, false
	}
	return e.cur, true
}

// Choices lists the visible choices of the current question.
func (e *Engine[V]) Choices() []content.Choice {
	q, ok := e.Current()
	if !ok {
		return nil
	}
	out := make([]content.Choice, 0, len(q.Choices))
	for _, c := range q.Choices {
		if !e.s.Hidden[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// Remaining is the time left on the question clock, or on the game clock
// when there is no question clock.
func (e *Engine[V]) Remaining() time.Duration {
	now := e.cfg.now()
	if e.qTimer.limit > 0 {
		return e.qTimer.remaining(now)
	}
	return e.allTimer.remaining(now)
}

// Start begins a session from Idle.
func (e *Engine[V]) Start() error {
	if e.phase != PhaseIdle {
		return fmt.Errorf("%w: start from %s", ErrWrongPhase, e.phase)
	}
	now := e.cfg.now()
	e.s = Session{
		Questions: append([]content.GameQuestion(nil), e.questions...),
		Lives:     e.settings.Lives,
		PassMark:  e.settings.PassMark(),
		Used:      map[string]bool{},
		Hidden:    map[string]bool{},
	}
	e.emitted = false
	e.paused = false
	e.phase = PhasePlaying
	e.strat.Start(&e.s)
	e.s.Threshold = Threshold(len(e.s.Questions), e.s.PassMark)
	if len(e.s.Questions) == 0 {
		e.finish(true)
		return nil
	}
	if t, ok := e.strat.(GameTimer); ok {
		e.allTimer.start(now, t.TotalTime(&e.s))
	} else {
		e.allTimer = timer{}
	}
	e.advance(now)
	return nil
}

// advance moves from Playing to the next question or to Ended.
func (e *Engine[V]) advance(now time.Time) {
	if over, passed := e.strat.Over(&e.s); over {
		e.finish(passed)
		return
	}
	q, ok := e.strat.Next(&e.s)
	if !ok {
		_, passed := e.strat.Over(&e.s)
		e.finish(passed)
		return
	}
	e.cur = q
	e.s.Hidden = map[string]bool{}
	e.qTimer.start(now, e.strat.QuestionTime(&e.s))
	e.phase = PhaseQuestion
}

// Answer resolves the current question. An answer arriving after the
// question clock ran out resolves as a timeout.
func (e *Engine[V]) Answer(v V) (Outcome, error) {
	if e.phase != PhaseQuestion {
		return Outcome{}, fmt.Errorf("%w: answer in %s", ErrWrongPhase, e.phase)
	}
	if e.paused {
		return Outcome{}, ErrPaused
	}
	now := e.cfg.now()
	if e.allTimer.expired(now) {
		e.expireGame()
		return Outcome{TimedOut: true}, nil
	}
	if e.qTimer.expired(now) {
		return e.resolve(now, e.strat.Timeout(&e.s)), nil
	}
	e.s.Remaining = e.qTimer.remaining(now)
	return e.resolve(now, e.strat.Resolve(&e.s, v)), nil
}

func (e *Engine[V]) resolve(now time.Time, o Outcome) Outcome {
	e.phase = PhaseResolve
	e.qTimer = timer{}
	e.s.Remaining = 0
	switch {
	case o.Correct:
		e.s.Correct++
	case !o.Skipped:
		e.s.Wrong++
	}
	e.s.Score += o.Points
	if e.cfg.report != nil && !o.Skipped {
		e.cfg.report(Response{
			ActivityID: e.id,
			QuestionID: o.QuestionID,
			SelectedID: o.Selected,
			Correct:    o.Correct,
			Points:     o.Points,
		})
	}
	if over, passed := e.strat.Over(&e.s); over {
		e.finish(passed)
	}
	return o
}

// Next leaves Resolve for the next question, or ends the game.
func (e *Engine[V]) Next() error {
	if e.phase != PhaseResolve {
		return fmt.Errorf("%w: next in %s", ErrWrongPhase, e.phase)
	}
	if e.paused {
		return ErrPaused
	}
	now := e.cfg.now()
	if e.allTimer.expired(now) {
		e.expireGame()
		return nil
	}
	e.phase = PhasePlaying
	e.advance(now)
	return nil
}

// Tick applies clock expiry. It reports whether the phase changed.
func (e *Engine[V]) Tick() bool {
	if e.paused || e.phase == PhaseIdle || e.phase == PhaseEnded {
		return false
	}
	now := e.cfg.now()
	if e.allTimer.expired(now) {
		e.expireGame()
		return true
	}
	if e.phase == PhaseQuestion && e.qTimer.expired(now) {
		e.resolve(now, e.strat.Timeout(&e.s))
		return true
	}
	return false
}

func (e *Engine[V]) expireGame() {
	e.qTimer = timer{}
	_, passed := e.strat.Over(&e.s)
	e.finish(passed)
}

// Pause freezes every clock, e.g. while a confirmation dialog is open.
func (e *Engine[V]) Pause() {
	if e.paused || e.phase == PhaseIdle || e.phase == PhaseEnded {
		return
	}
	now := e.cfg.now()
	e.qTimer.pause(now)
	e.allTimer.pause(now)
	e.paused = true
}

func (e *Engine[V]) Resume() {
	if !e.paused {
		return
	}
	now := e.cfg.now()
	e.qTimer.resume(now)
	e.allTimer.resume(now)
	e.paused = false
}

// UseLifeline spends a lifeline on the current question. Each lifeline
// works once per session.
func (e *Engine[V]) UseLifeline(name string) (*Outcome, error) {
	ls, ok := e.strat.(LifelineStrategy)
	if !ok {
		return nil, ErrUnknownLifeline
	}
	if e.phase != PhaseQuestion {
		return nil, fmt.Errorf("%w: lifeline in %s", ErrWrongPhase, e.phase)
	}
	if e.paused {
		return nil, ErrPaused
	}
	if e.s.Used[name] {
		return nil, ErrLifelineUsed
	}
	o, err := ls.Lifeline(&e.s, name)
	if err != nil {
		return nil, err
	}
	e.s.Used[name] = true
	now := e.cfg.now()
	if o != nil {
		out := e.resolve(now, *o)
		return &out, nil
	}
	if over, passed := e.strat.Over(&e.s); over {
		e.qTimer = timer{}
		e.finish(passed)
	}
	return nil, nil
}

// PlayAgain discards the session and returns to Idle. Outcomes already
// recorded stay recorded.
func (e *Engine[V]) PlayAgain() {
	e.phase = PhaseIdle
	e.paused = false
	e.qTimer = timer{}
	e.allTimer = timer{}
	e.s = Session{}
	e.cur = content.GameQuestion{}
}

// Result reports whether the session ended and passed.
func (e *Engine[V]) Result() (ended, passed bool) {
	return e.phase == PhaseEnded, e.s.Passed
}

func (e *Engine[V]) finish(passed bool) {
	e.phase = PhaseEnded
	e.s.Passed = passed
	e.allTimer = timer{}
	if e.emitted {
		return
	}
	e.emitted = true
	if e.cfg.recorder == nil {
		return
	}
	if sr, ok := e.cfg.recorder.(ScoreRecorder); ok {
		sr.RecordScore(e.id, e.s.Score)
	}
	e.cfg.recorder.RecordOutcome(e.id, passed)
}

func copySet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// New builds the engine for a game activity.
func New(a content.Activity, opts ...Option) (Player, error) {
	switch g := a.(type) {
	case *content.LadderGame:
		return NewLadder(g, opts...), nil
	case *content.FallingBlocksGame:
		return NewFallingBlocks(g, opts...), nil
	case *content.PursuitRaceGame:
		return NewPursuitRace(g, opts...), nil
	case *content.WordSearchGame:
		return NewWordSearch(g, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotAGame, a.Meta().Type)
	}
}
