// Package runtime is the per-package course runtime. A Runtime owns the
// content index, the completion registry, the progress engine and the host
// adapter for one loaded package, and persists after every change.
//
// All methods are safe for concurrent use; a mutex stands in for the
// single event loop of a browser page.
package runtime

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mind-engage/coursepack/internal/completion"
	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/grading"
	"github.com/mind-engage/coursepack/internal/host"
	"github.com/mind-engage/coursepack/internal/logger"
	"github.com/mind-engage/coursepack/internal/progress"
	"github.com/mind-engage/coursepack/internal/suspend"
)

var (
	ErrUnknownActivity = errors.New("unknown activity")
	ErrLocked          = progress.ErrLocked
	ErrNotStarted      = errors.New("runtime not started")
	ErrTerminated      = errors.New("runtime terminated")
	ErrIsGame          = errors.New("games are played through Game")
)

type Runtime struct {
	mu sync.Mutex

	doc    *content.Document
	ix     *content.Index
	reg    *completion.Registry
	prog   *progress.Engine
	host   host.Adapter
	grader *grading.Grader
	log    *logger.Logger
	now    func() time.Time

	initial   string
	heartbeat time.Duration
	device    *host.DeviceInfo

	games        map[string]*GameHandle
	started      bool
	terminated   bool
	hostOK       bool
	mastery      *int
	sessionStart time.Time
	priorSeconds int
	interactions int
}

// New builds a runtime for doc on top of h. Nothing touches the host until
// Start.
func New(doc *content.Document, h host.Adapter, opts ...Option) *Runtime {
	if h == nil {
		h = host.NullAdapter{}
	}
	r := &Runtime{
		doc:       doc,
		ix:        content.NewIndex(doc),
		host:      h,
		grader:    grading.NewGrader(),
		log:       logger.Nop(),
		now:       time.Now,
		heartbeat: DefaultHeartbeat,
		games:     map[string]*GameHandle{},
	}
	for _, o := range opts {
		o(r)
	}
	r.reg = completion.New(completion.PolicyFunc(r.ix.RequiresPass))
	r.prog = progress.New(r.ix, r.reg, progress.Clock(r.now))
	r.log = r.log.With("package", doc.ID)
	return r
}

// Start initializes the host, restores prior state and persists the
// reconciled result. It reports whether a host accepted initialization;
// without one the course still runs in memory.
func (r *Runtime) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return r.hostOK
	}
	r.started = true
	r.sessionStart = r.now()

	r.hostOK = r.host.Initialize()
	if !r.hostOK {
		r.log.Warn("host unavailable, progress will not persist", "mode", r.host.Mode())
	}

	st, errs := suspend.Decode(r.priorBlob())
	for _, err := range errs {
		r.log.Warn("suspend data field reset to default", "error", err)
	}
	r.reg.Restore(st.Snapshot)
	tr := r.prog.Restore(st.Sections, st.CurrentSection)
	r.priorSeconds = st.TotalSeconds
	r.mastery = r.readMastery()
	if r.host.Mode() == host.ModeLMS {
		if v, ok := r.host.ReadValue(host.KeyInteractionsN); ok {
			r.interactions, _ = strconv.Atoi(v)
		}
	}

	if !r.prog.CourseComplete() {
		r.host.WriteValue(host.KeyLessonStatus, progress.LessonIncomplete)
	}
	r.applyLocked(tr)

	if m, ok := r.host.(host.Messenger); ok && r.device != nil {
		m.Send(host.MsgDeviceInfo, *r.device)
	}
	r.log.Info("course started",
		"mode", r.host.Mode(),
		"progress", r.prog.Progress(),
		"section", r.prog.Current(),
	)
	return r.hostOK
}

// priorBlob picks the suspend data to restore from.
func (r *Runtime) priorBlob() string {
	if r.host.Mode() != host.ModeBridge && r.hostOK {
		if v, ok := r.host.ReadValue(host.KeySuspendData); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return r.initial
}

// readMastery prefers the host's mastery score over the document's.
func (r *Runtime) readMastery() *int {
	if r.hostOK {
		if v, ok := r.host.ReadValue(host.KeyMasteryScore); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 && f <= 100 {
				m := int(math.Round(f))
				return &m
			}
		}
	}
	if m, ok := r.doc.Mastery(); ok {
		return &m
	}
	return nil
}

func (r *Runtime) usable() error {
	switch {
	case !r.started:
		return ErrNotStarted
	case r.terminated:
		return ErrTerminated
	}
	return nil
}

// Submit grades a response to a trackable activity. The outcome is only
// recorded once the activity reports it is done.
func (r *Runtime) Submit(activityID string, response any) (grading.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return grading.Result{}, err
	}
	ref, err := r.lookupUnlocked(activityID)
	if err != nil {
		return grading.Result{}, err
	}
	if content.Classify(ref.Activity) == content.ClassGame {
		return grading.Result{}, fmt.Errorf("%w: %s", ErrIsGame, activityID)
	}
	res, err := r.grader.Check(ref.Activity, response)
	if err != nil {
		return grading.Result{}, fmt.Errorf("submit %s: %w", activityID, err)
	}
	if !res.Complete {
		return res, nil
	}
	r.writeInteraction(ref.Activity, res)
	r.send(host.MsgLogResponse, host.LogResponse{
		ActivityID: activityID,
		QuestionID: activityID,
		SelectedID: res.Response,
		IsCorrect:  res.Correct,
		Points:     int(math.Round(res.Credit * 100)),
	})
	r.reg.RecordOutcome(activityID, res.Correct)
	r.applyLocked(progress.Transition{})
	return res, nil
}

// RecordOutcome records an activity's done event directly.
func (r *Runtime) RecordOutcome(activityID string, passed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}
	if _, err := r.lookupUnlocked(activityID); err != nil {
		return err
	}
	r.recordLocked(activityID, passed)
	return nil
}

func (r *Runtime) recordLocked(activityID string, passed bool) {
	if r.reg.RecordOutcome(activityID, passed) {
		r.log.Debug("outcome recorded", "activity", activityID, "passed", passed)
	}
	r.applyLocked(progress.Transition{})
}

func (r *Runtime) lookupUnlocked(activityID string) (content.Ref, error) {
	ref, ok := r.ix.Lookup(activityID)
	if !ok {
		return content.Ref{}, fmt.Errorf("%w: %s", ErrUnknownActivity, activityID)
	}
	if r.prog.Status(ref.Section) == progress.StatusLocked {
		return content.Ref{}, fmt.Errorf("%w: section %d", ErrLocked, ref.Section)
	}
	return ref, nil
}

// Continue turns the page in the current section.
func (r *Runtime) Continue() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}
	tr, err := r.prog.Continue()
	if err != nil {
		return err
	}
	r.applyLocked(tr)
	return nil
}

// NextSection finishes the current section when it can and moves on.
func (r *Runtime) NextSection() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}
	tr, err := r.prog.NextSection()
	if err != nil {
		return err
	}
	r.applyLocked(tr)
	return nil
}

func (r *Runtime) GoToSection(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}
	if err := r.prog.GoTo(i); err != nil {
		return err
	}
	r.saveLocked()
	return nil
}

// Reset clears all progress. It is the only way completion shrinks.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}
	r.reg.Reset()
	r.prog.Reset()
	for _, g := range r.games {
		g.p.PlayAgain()
	}
	r.host.WriteValue(host.KeyLessonStatus, progress.LessonIncomplete)
	r.saveLocked()
	r.log.Info("course reset")
	return nil
}

// applyLocked re-evaluates progress, reports transitions and persists.
func (r *Runtime) applyLocked(prior progress.Transition) {
	tr := r.prog.Evaluate()
	sections := append(prior.SectionsCompleted, tr.SectionsCompleted...)
	courseDone := prior.CourseCompleted || tr.CourseCompleted

	for _, i := range sections {
		id := r.ix.Section(i).ID
		r.log.Info("section completed", "section", id, "score", r.prog.SectionScore(i))
		r.send(host.MsgSectionComplete, host.SectionComplete{SectionID: id, Completed: true, Score: r.prog.SectionScore(i)})
		r.send(host.MsgUpdateScore, host.UpdateScore{Score: r.prog.FinalScore()})
	}
	if courseDone {
		score := r.prog.FinalScore()
		status := r.prog.LessonStatus(r.mastery)
		r.host.WriteValue(host.KeyScoreRaw, strconv.Itoa(score))
		r.host.WriteValue(host.KeyScoreMin, "0")
		r.host.WriteValue(host.KeyScoreMax, "100")
		r.host.WriteValue(host.KeyLessonStatus, status)
		r.send(host.MsgCourseComplete, host.CourseComplete{Score: score, LessonStatus: status})
		r.log.Info("course completed", "score", score, "status", status)
	}
	r.saveLocked()
}

// saveLocked writes suspend data and commits. A host that refuses is
// logged and otherwise ignored.
func (r *Runtime) saveLocked() {
	blob, err := suspend.Encode(r.stateLocked())
	if err != nil {
		r.log.Error("encode suspend data", "error", err)
		return
	}
	if suspend.Oversize(blob) {
		r.log.Warn("suspend data exceeds host limit", "length", len(blob), "limit", suspend.MaxLength)
	}
	if !r.hostOK {
		return
	}
	if !r.host.WriteValue(host.KeySuspendData, blob) {
		r.log.Debug("host rejected suspend data")
	}
	if !r.host.Commit() {
		r.log.Debug("host commit failed")
	}
}

func (r *Runtime) stateLocked() suspend.State {
	return suspend.State{
		Snapshot:       r.reg.Snapshot(),
		CurrentSection: r.prog.Current(),
		Sections:       r.prog.Records(),
		TotalSeconds:   r.totalSecondsLocked(),
	}
}

func (r *Runtime) totalSecondsLocked() int {
	if r.sessionStart.IsZero() {
		return r.priorSeconds
	}
	return r.priorSeconds + int(r.now().Sub(r.sessionStart)/time.Second)
}

func (r *Runtime) send(t host.MessageType, payload any) {
	if m, ok := r.host.(host.Messenger); ok {
		m.Send(t, payload)
	}
}

// Terminate writes session time and exit mode, commits and finishes the
// host session. Later calls do nothing.
func (r *Runtime) Terminate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.terminated {
		return false
	}
	r.terminated = true
	for _, g := range r.games {
		g.p.Pause()
	}
	session := r.now().Sub(r.sessionStart)
	r.host.WriteValue(host.KeySessionTime, SessionTime(session))
	exit := "suspend"
	if r.prog.CourseComplete() {
		exit = ""
	}
	r.host.WriteValue(host.KeyExit, exit)
	r.saveLocked()
	ok := r.host.Terminate()
	r.log.Info("course terminated", "session", session.Round(time.Second), "progress", r.prog.Progress())
	return ok
}

// SessionTime formats d as a SCORM 1.2 CMITimespan, HHHH:MM:SS.SS.
func SessionTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := int64(d / (10 * time.Millisecond))
	h := cs / 360000
	m := cs / 6000 % 60
	s := cs / 100 % 60
	return fmt.Sprintf("%04d:%02d:%02d.%02d", h, m, s, cs%100)
}

// State returns the state that would be persisted now.
func (r *Runtime) State() suspend.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

// Markers derives the answered marker of every recorded activity.
func (r *Runtime) Markers() map[string]suspend.Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return suspend.Markers(r.reg.Snapshot().Outcomes)
}

func (r *Runtime) Sections() []progress.SectionView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prog.Views()
}

func (r *Runtime) Progress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prog.Progress()
}

func (r *Runtime) FinalScore() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prog.FinalScore()
}

func (r *Runtime) LessonStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prog.LessonStatus(r.mastery)
}

func (r *Runtime) CourseComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prog.CourseComplete()
}

func (r *Runtime) Mode() host.Mode { return r.host.Mode() }

func (r *Runtime) Document() *content.Document { return r.doc }
