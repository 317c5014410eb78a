package bridge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/coursepack/internal/host"
)

// SQLStore keeps the log in event_log and the fold in learner_state. Both
// writes share one transaction so a replay never double-counts.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db, now: time.Now} }

func (s *SQLStore) Record(ctx context.Context, enrollmentID string, env host.Envelope) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := s.now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO event_log (enrollment_id, message_id, typ, data, sent_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (enrollment_id, message_id) DO NOTHING`,
		enrollmentID, env.ID, string(env.Type), string(env.Payload), env.SentAt.Unix(), now.Unix())
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n == 0 {
		return false, nil
	}

	st, err := scanState(tx.QueryRowContext(ctx, selectState, enrollmentID))
	switch {
	case errors.Is(err, ErrNotFound):
		st = newState(enrollmentID)
	case err != nil:
		return false, err
	}
	if err := Apply(&st, env); err != nil {
		return false, err
	}
	st.UpdatedAt = now

	var score sql.NullInt64
	if st.Score != nil {
		score = sql.NullInt64{Int64: int64(*st.Score), Valid: true}
	}
	sections, err := json.Marshal(nonNilStrings(st.Sections))
	if err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO learner_state (enrollment_id, package_id, suspend_data, suspend_at, score, score_at,
		   lesson_status, sections_done, sections_json, seconds, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 ON CONFLICT (enrollment_id) DO UPDATE SET package_id=EXCLUDED.package_id,
		   suspend_data=EXCLUDED.suspend_data, suspend_at=EXCLUDED.suspend_at,
		   score=EXCLUDED.score, score_at=EXCLUDED.score_at, lesson_status=EXCLUDED.lesson_status,
		   sections_done=EXCLUDED.sections_done, sections_json=EXCLUDED.sections_json,
		   seconds=EXCLUDED.seconds, updated_at=EXCLUDED.updated_at`,
		st.EnrollmentID, st.PackageID, st.SuspendData, unixNano(st.SuspendAt), score, unixNano(st.ScoreAt),
		st.LessonStatus, st.SectionsDone, string(sections), st.Seconds, now.Unix())
	if err != nil {
		return false, fmt.Errorf("save learner state: %w", err)
	}
	return true, tx.Commit()
}

const selectState = `SELECT enrollment_id, package_id, suspend_data, suspend_at, score, score_at,
	lesson_status, sections_done, sections_json, seconds, updated_at
	FROM learner_state WHERE enrollment_id=$1`

// Send times are stored as Unix nanoseconds; 0 means never set.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanState(row *sql.Row) (LearnerState, error) {
	var (
		st                 LearnerState
		score              sql.NullInt64
		suspendAt, scoreAt int64
		sections           string
		updated            int64
	)
	err := row.Scan(&st.EnrollmentID, &st.PackageID, &st.SuspendData, &suspendAt, &score, &scoreAt,
		&st.LessonStatus, &st.SectionsDone, &sections, &st.Seconds, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return LearnerState{}, ErrNotFound
	}
	if err != nil {
		return LearnerState{}, err
	}
	if score.Valid {
		v := int(score.Int64)
		st.Score = &v
	}
	if err := json.Unmarshal([]byte(sections), &st.Sections); err != nil {
		return LearnerState{}, fmt.Errorf("decode sections: %w", err)
	}
	if len(st.Sections) == 0 {
		st.Sections = nil
	}
	st.SuspendAt = fromUnixNano(suspendAt)
	st.ScoreAt = fromUnixNano(scoreAt)
	st.UpdatedAt = time.Unix(updated, 0).UTC()
	return st, nil
}

func (s *SQLStore) State(ctx context.Context, enrollmentID string) (LearnerState, error) {
	return scanState(s.db.QueryRowContext(ctx, selectState, enrollmentID))
}

func (s *SQLStore) Events(ctx context.Context, enrollmentID string, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, enrollment_id, message_id, typ, data, sent_at FROM event_log
		 WHERE enrollment_id=$1 AND seq > $2 ORDER BY seq LIMIT $3`,
		enrollmentID, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var (
			e    Event
			data string
			sent int64
		)
		if err := rows.Scan(&e.Seq, &e.EnrollmentID, &e.MessageID, &e.Type, &data, &sent); err != nil {
			return nil, err
		}
		e.Data = []byte(data)
		e.SentAt = time.Unix(sent, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
