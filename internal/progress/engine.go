// Package progress gates section access and turns completion records into
// progress percentages and scores.
package progress

import (
	"errors"
	"math"
	"time"

	"github.com/mind-engage/coursepack/internal/completion"
	"github.com/mind-engage/coursepack/internal/content"
)

type Status string

const (
	StatusLocked    Status = "locked"
	StatusUnlocked  Status = "unlocked"
	StatusCurrent   Status = "current"
	StatusCompleted Status = "completed"
)

// SectionRecord is the persisted per-section progress.
type SectionRecord struct {
	Completed    bool       `json:"completed"`
	Unlocked     bool       `json:"unlocked"`
	MaxPageIndex int        `json:"maxPageIndex"`
	CompletedAt  *time.Time `json:"completedAt"`
}

// SectionView is a read-only view for renderers.
type SectionView struct {
	Index     int
	ID        string
	Status    Status
	Unlocked  bool
	Completed bool
	Current   bool
	Page      int
	Pages     int
}

// Transition lists what an evaluation changed, so callers can report each
// completion exactly once.
type Transition struct {
	SectionsCompleted []int
	CourseCompleted   bool
}

func (t Transition) Empty() bool { return len(t.SectionsCompleted) == 0 && !t.CourseCompleted }

func (t *Transition) merge(o Transition) {
	t.SectionsCompleted = append(t.SectionsCompleted, o.SectionsCompleted...)
	t.CourseCompleted = t.CourseCompleted || o.CourseCompleted
}

var (
	ErrLocked         = errors.New("section is locked")
	ErrOutOfRange     = errors.New("section index out of range")
	ErrPageIncomplete = errors.New("required activities on this page are not complete")
	ErrNoMorePages    = errors.New("no further page in section")
	ErrIncomplete     = errors.New("section requirements not met")
)

// Clock returns the current time; tests pin it.
type Clock func() time.Time

type Engine struct {
	ix      *content.Index
	reg     *completion.Registry
	now     Clock
	records []SectionRecord
	current int
	done    bool
}

func New(ix *content.Index, reg *completion.Registry, now Clock) *Engine {
	if now == nil {
		now = time.Now
	}
	e := &Engine{ix: ix, reg: reg, now: now}
	e.Reset()
	return e
}

// Reset returns every section to its initial state: section 0 unlocked and
// current, everything else locked.
func (e *Engine) Reset() {
	e.records = make([]SectionRecord, e.ix.SectionCount())
	if len(e.records) > 0 {
		e.records[0].Unlocked = true
	}
	e.current = 0
	e.done = false
}

// Restore applies persisted records and the current index, then re-derives
// completion from the registry and re-applies gating. Records that break
// the gating order are dropped rather than trusted.
func (e *Engine) Restore(records []SectionRecord, current int) Transition {
	e.Reset()
	for i := range e.records {
		if i < len(records) {
			r := records[i]
			e.records[i].Completed = r.Completed
			e.records[i].CompletedAt = r.CompletedAt
			e.records[i].MaxPageIndex = clamp(r.MaxPageIndex, 0, e.ix.Section(i).PageCount()-1)
		}
	}
	// gating: a completed section needs a completed predecessor
	for i := range e.records {
		if i > 0 && !e.records[i-1].Completed {
			e.records[i].Completed = false
			e.records[i].CompletedAt = nil
		}
		e.records[i].Unlocked = i == 0 || e.records[i-1].Completed
	}
	e.current = e.highestUnlocked()
	if current >= 0 && current < len(e.records) && e.records[current].Unlocked {
		e.current = current
	}
	e.syncPages()
	t := e.Evaluate()
	if len(e.records) > 0 && e.records[len(e.records)-1].Completed {
		e.done = true
	}
	return t
}

// syncPages raises page marks to cover dividers already satisfied.
func (e *Engine) syncPages() {
	for i, sec := range e.ix.Sections() {
		for p, d := range sec.Dividers {
			if e.reg.IsDividerSatisfied(d) && e.records[i].MaxPageIndex < p+1 {
				e.records[i].MaxPageIndex = p + 1
			}
		}
	}
}

func (e *Engine) highestUnlocked() int {
	h := 0
	for i, r := range e.records {
		if r.Unlocked && !r.Completed {
			return i
		}
		if r.Unlocked {
			h = i
		}
	}
	return h
}

// Evaluate completes every unlocked section whose requirements are met.
// Sections without any required units wait for NextSection.
func (e *Engine) Evaluate() Transition {
	var t Transition
	for i := range e.records {
		r := &e.records[i]
		if r.Completed || !r.Unlocked {
			continue
		}
		if e.units(i) == 0 || !e.met(i) {
			continue
		}
		t.merge(e.complete(i))
	}
	return t
}

func (e *Engine) complete(i int) Transition {
	var t Transition
	now := e.now().UTC()
	e.records[i].Completed = true
	e.records[i].CompletedAt = &now
	t.SectionsCompleted = append(t.SectionsCompleted, i)
	if i+1 < len(e.records) {
		e.records[i+1].Unlocked = true
		if e.current == i {
			e.current = i + 1
		}
	} else if !e.done {
		e.done = true
		t.CourseCompleted = true
	}
	return t
}

func (e *Engine) units(i int) int {
	s := e.ix.Section(i)
	return len(s.Required) + len(s.Dividers)
}

func (e *Engine) met(i int) bool {
	s := e.ix.Section(i)
	for _, id := range s.Required {
		if !e.reg.IsCompleted(id) {
			return false
		}
	}
	for _, d := range s.Dividers {
		if !e.reg.IsDividerSatisfied(d) {
			return false
		}
	}
	return true
}

// Continue turns the page in the current section. The divider is only
// satisfied when the required activities on the visible page are done.
func (e *Engine) Continue() (Transition, error) {
	if len(e.records) == 0 {
		return Transition{}, ErrOutOfRange
	}
	i := e.current
	sec := e.ix.Section(i)
	page := e.records[i].MaxPageIndex
	if page >= len(sec.Dividers) {
		return Transition{}, ErrNoMorePages
	}
	for _, id := range sec.Pages[page] {
		if !e.reg.IsCompleted(id) {
			return Transition{}, ErrPageIncomplete
		}
	}
	e.reg.SatisfyDivider(sec.Dividers[page])
	e.records[i].MaxPageIndex = page + 1
	return e.Evaluate(), nil
}

// NextSection completes the current section if its requirements are met
// (this is how sections without required units complete) and moves on.
func (e *Engine) NextSection() (Transition, error) {
	if len(e.records) == 0 {
		return Transition{}, ErrOutOfRange
	}
	i := e.current
	var t Transition
	if !e.records[i].Completed {
		if !e.met(i) {
			return Transition{}, ErrIncomplete
		}
		t = e.complete(i)
	}
	if e.current == i && i+1 < len(e.records) {
		e.current = i + 1
	}
	return t, nil
}

// GoTo renders another section. Locked sections are refused.
func (e *Engine) GoTo(i int) error {
	if i < 0 || i >= len(e.records) {
		return ErrOutOfRange
	}
	if !e.records[i].Unlocked {
		return ErrLocked
	}
	e.current = i
	return nil
}

func (e *Engine) Current() int { return e.current }

func (e *Engine) CourseComplete() bool { return e.done }

// Records returns a copy of the section records.
func (e *Engine) Records() []SectionRecord {
	out := make([]SectionRecord, len(e.records))
	copy(out, e.records)
	return out
}

func (e *Engine) Status(i int) Status {
	r := e.records[i]
	switch {
	case r.Completed:
		return StatusCompleted
	case i == e.current:
		return StatusCurrent
	case r.Unlocked:
		return StatusUnlocked
	default:
		return StatusLocked
	}
}

func (e *Engine) Views() []SectionView {
	out := make([]SectionView, len(e.records))
	for i, r := range e.records {
		out[i] = SectionView{
			Index:     i,
			ID:        e.ix.Section(i).ID,
			Status:    e.Status(i),
			Unlocked:  r.Unlocked,
			Completed: r.Completed,
			Current:   i == e.current,
			Page:      r.MaxPageIndex,
			Pages:     e.ix.Section(i).PageCount(),
		}
	}
	return out
}

// UnitWeight is the weight of one required activity and of one page-turn
// divider in the progress percentage. Both count the same.
const UnitWeight = 1

// Progress is round(100 * completedUnits / totalUnits), 0 for an empty
// course, never above 100.
func (e *Engine) Progress() int {
	total, done := 0, 0
	for _, s := range e.ix.Sections() {
		for _, id := range s.Required {
			total += UnitWeight
			if e.reg.IsCompleted(id) {
				done += UnitWeight
			}
		}
		for _, d := range s.Dividers {
			total += UnitWeight
			if e.reg.IsDividerSatisfied(d) {
				done += UnitWeight
			}
		}
	}
	return percent(done, total, 0)
}

// FinalScore is round(100 * correct / scored) over every recorded scored
// outcome, 100 when nothing was scored.
func (e *Engine) FinalScore() int {
	correct, scored := 0, 0
	for _, s := range e.ix.Sections() {
		c, n := e.tally(s.Scored)
		correct += c
		scored += n
	}
	return percent(correct, scored, 100)
}

// SectionScore is FinalScore scoped to one section.
func (e *Engine) SectionScore(i int) int {
	c, n := e.tally(e.ix.Section(i).Scored)
	return percent(c, n, 100)
}

func (e *Engine) tally(ids []string) (correct, scored int) {
	for _, id := range ids {
		passed, ok := e.reg.Outcome(id)
		if !ok {
			continue
		}
		scored++
		if passed {
			correct++
		}
	}
	return
}

// Lesson status values of the host record-keeping interface.
const (
	LessonNotAttempted = "not attempted"
	LessonIncomplete   = "incomplete"
	LessonCompleted    = "completed"
	LessonPassed       = "passed"
	LessonFailed       = "failed"
)

// LessonStatus maps course state onto the host's lesson status. Without a
// mastery score a finished course is just "completed".
func (e *Engine) LessonStatus(mastery *int) string {
	if !e.done {
		return LessonIncomplete
	}
	if mastery == nil {
		return LessonCompleted
	}
	if e.FinalScore() >= *mastery {
		return LessonPassed
	}
	return LessonFailed
}

func percent(n, d, empty int) int {
	if d == 0 {
		return empty
	}
	p := int(math.Round(100 * float64(n) / float64(d)))
	return clamp(p, 0, 100)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}
