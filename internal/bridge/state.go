// Package bridge is the receiving end of the hosted-mode message stream.
// The embedding page relays each envelope here; it is logged once per
// message ID and folded into the learner's state, which is handed back as
// the initial state on the next load.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mind-engage/coursepack/internal/host"
	"github.com/mind-engage/coursepack/internal/progress"
)

var (
	ErrNotFound    = errors.New("learner state not found")
	ErrBadEnvelope = errors.New("bad bridge envelope")
)

// LearnerState is the folded view of one enrollment.
type LearnerState struct {
	EnrollmentID string    `json:"enrollmentId"`
	PackageID    string    `json:"packageId"`
	SuspendData  string    `json:"suspendData"`
	Score        *int      `json:"score,omitempty"`
	LessonStatus string    `json:"lessonStatus"`
	SectionsDone int       `json:"sectionsDone"`
	// Sections holds the IDs behind SectionsDone.
	Sections  []string  `json:"sections,omitempty"`
	Seconds   int       `json:"seconds"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Send times of the envelopes that last set SuspendData and Score.
	SuspendAt time.Time `json:"-"`
	ScoreAt   time.Time `json:"-"`
}

// Event is one logged envelope.
type Event struct {
	Seq          int64           `json:"seq"`
	EnrollmentID string          `json:"enrollmentId"`
	MessageID    string          `json:"messageId"`
	Type         string          `json:"type"`
	Data         json.RawMessage `json:"data"`
	SentAt       time.Time       `json:"sentAt"`
}

func newState(enrollmentID string) LearnerState {
	return LearnerState{EnrollmentID: enrollmentID, LessonStatus: progress.LessonNotAttempted}
}

// Check rejects envelopes the runtime could not have produced.
func Check(env host.Envelope) error {
	switch {
	case env.ID == "":
		return fmt.Errorf("%w: missing id", ErrBadEnvelope)
	case !env.Type.Known():
		return fmt.Errorf("%w: unknown type %q", ErrBadEnvelope, env.Type)
	case len(env.Payload) == 0 || !json.Valid(env.Payload):
		return fmt.Errorf("%w: payload is not JSON", ErrBadEnvelope)
	case env.SentAt.IsZero():
		return fmt.Errorf("%w: missing sentAt", ErrBadEnvelope)
	}
	return nil
}

// Apply folds one envelope into st. Envelopes may arrive out of order, so
// suspend data and score only move forward in SentAt; an older envelope
// arriving late is logged but does not overwrite them. Sections are counted
// once per ID and seconds keep the maximum.
func Apply(st *LearnerState, env host.Envelope) error {
	if env.PackageID != "" {
		st.PackageID = env.PackageID
	}
	if st.LessonStatus == progress.LessonNotAttempted {
		st.LessonStatus = progress.LessonIncomplete
	}
	switch env.Type {
	case host.MsgSuspendData:
		var p host.SuspendData
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrBadEnvelope, err)
		}
		if !env.SentAt.Before(st.SuspendAt) {
			st.SuspendData = p.Data
			st.SuspendAt = env.SentAt
		}
	case host.MsgUpdateScore:
		var p host.UpdateScore
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrBadEnvelope, err)
		}
		setScore(st, p.Score, env.SentAt)
	case host.MsgSectionComplete:
		var p host.SectionComplete
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrBadEnvelope, err)
		}
		if p.SectionID != "" && !slices.Contains(st.Sections, p.SectionID) {
			st.Sections = append(st.Sections, p.SectionID)
		}
		st.SectionsDone = len(st.Sections)
	case host.MsgCourseComplete:
		var p host.CourseComplete
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrBadEnvelope, err)
		}
		setScore(st, p.Score, env.SentAt)
		st.LessonStatus = p.LessonStatus
		if st.LessonStatus == "" {
			st.LessonStatus = progress.LessonCompleted
		}
	case host.MsgHeartbeat:
		var p host.Heartbeat
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrBadEnvelope, err)
		}
		st.Seconds = max(st.Seconds, p.Seconds)
	}
	return nil
}

func setScore(st *LearnerState, score int, at time.Time) {
	if at.Before(st.ScoreAt) {
		return
	}
	st.Score = &score
	st.ScoreAt = at
}
