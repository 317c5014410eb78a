package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/game"
	"github.com/mind-engage/coursepack/internal/host"
)

var ErrNotChoiceGame = errors.New("game is not answered by choice")

// GameHandle serializes access to one game engine through the runtime's
// lock, so game completions feed the registry like any other outcome.
type GameHandle struct {
	r *Runtime
	p game.Player
}

// Game returns the handle for a game activity, creating the engine on
// first use. Engines survive for the life of the runtime.
func (r *Runtime) Game(activityID string) (*GameHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return nil, err
	}
	ref, err := r.lookupUnlocked(activityID)
	if err != nil {
		return nil, err
	}
	if h, ok := r.games[activityID]; ok {
		return h, nil
	}
	p, err := game.New(ref.Activity,
		game.WithClock(r.now),
		game.WithRecorder(gameRecorder{r}),
		game.WithResponses(r.logGameResponse),
	)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", activityID, err)
	}
	h := &GameHandle{r: r, p: p}
	r.games[activityID] = h
	return h, nil
}

// gameRecorder runs with r.mu already held by the GameHandle call that
// finished the game.
type gameRecorder struct{ r *Runtime }

func (g gameRecorder) RecordOutcome(id string, passed bool) {
	g.r.log.Info("game finished", "activity", id, "passed", passed)
	g.r.recordLocked(id, passed)
}

func (g gameRecorder) RecordScore(id string, score int) {
	g.r.reg.RecordScore(id, score)
}

func (r *Runtime) logGameResponse(resp game.Response) {
	r.send(host.MsgLogResponse, host.LogResponse{
		ActivityID: resp.ActivityID,
		QuestionID: resp.QuestionID,
		SelectedID: resp.SelectedID,
		IsCorrect:  resp.Correct,
		Points:     resp.Points,
	})
}

// do runs fn under the runtime lock. A handle outlives a Reset, so the
// section lock is checked on every call, not only in Game.
func (h *GameHandle) do(fn func() error) error {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	if err := h.r.usable(); err != nil {
		return err
	}
	if _, err := h.r.lookupUnlocked(h.p.ActivityID()); err != nil {
		return err
	}
	return fn()
}

func (h *GameHandle) ActivityID() string { return h.p.ActivityID() }

func (h *GameHandle) Start() error { return h.do(h.p.Start) }

func (h *GameHandle) Next() error { return h.do(h.p.Next) }

// Answer submits a choice ID to a choice-based game.
func (h *GameHandle) Answer(choiceID string) (game.Outcome, error) {
	var o game.Outcome
	err := h.do(func() error {
		cp, ok := h.p.(game.ChoicePlayer)
		if !ok {
			return ErrNotChoiceGame
		}
		var err error
		o, err = cp.Answer(choiceID)
		return err
	})
	return o, err
}

// Select submits a line to a word search.
func (h *GameHandle) Select(sel game.Selection) (game.Outcome, error) {
	var o game.Outcome
	err := h.do(func() error {
		ws, ok := h.p.(*game.Engine[game.Selection])
		if !ok {
			return fmt.Errorf("%w: %s", game.ErrNotAGame, "word search")
		}
		var err error
		o, err = ws.Answer(sel)
		return err
	})
	return o, err
}

func (h *GameHandle) UseLifeline(name string) (*game.Outcome, error) {
	var o *game.Outcome
	err := h.do(func() error {
		var err error
		o, err = h.p.UseLifeline(name)
		return err
	})
	return o, err
}

func (h *GameHandle) Tick() bool {
	var fired bool
	_ = h.do(func() error { fired = h.p.Tick(); return nil })
	return fired
}

func (h *GameHandle) Pause() { _ = h.do(func() error { h.p.Pause(); return nil }) }

func (h *GameHandle) Resume() { _ = h.do(func() error { h.p.Resume(); return nil }) }

// PlayAgain restarts the game. The recorded outcome stays.
func (h *GameHandle) PlayAgain() { _ = h.do(func() error { h.p.PlayAgain(); return nil }) }

// GameView is a point-in-time copy of a game for rendering.
type GameView struct {
	ActivityID string
	Phase      game.Phase
	Paused     bool
	Session    game.Session
	Question   *content.GameQuestion
	Choices    []content.Choice
	Remaining  time.Duration
	Ended      bool
	Passed     bool
}

func (h *GameHandle) View() GameView {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	v := GameView{
		ActivityID: h.p.ActivityID(),
		Phase:      h.p.Phase(),
		Paused:     h.p.Paused(),
		Session:    h.p.Session(),
		Choices:    h.p.Choices(),
		Remaining:  h.p.Remaining(),
	}
	if q, ok := h.p.Current(); ok {
		v.Question = &q
	}
	v.Ended, v.Passed = h.p.Result()
	return v
}

// Tick advances every game clock, reports a heartbeat with the total time
// spent and persists.
func (r *Runtime) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usable() != nil {
		return
	}
	for id, g := range r.games {
		if _, err := r.lookupUnlocked(id); err == nil {
			g.p.Tick()
		}
	}
	r.send(host.MsgHeartbeat, host.Heartbeat{Seconds: r.totalSecondsLocked()})
	r.saveLocked()
}

// RunHeartbeat calls Tick on the configured interval until ctx is done or
// the runtime terminates.
func (r *Runtime) RunHeartbeat(ctx context.Context) error {
	t := time.NewTicker(r.heartbeat)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.Tick()
			r.mu.Lock()
			done := r.terminated
			r.mu.Unlock()
			if done {
				return nil
			}
		}
	}
}
