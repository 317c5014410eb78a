package bridge

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mind-engage/coursepack/internal/host"
)

// Store logs envelopes and keeps the folded learner state. Record must be
// idempotent per (enrollment, message ID): a replayed message reports
// false and leaves the state alone.
type Store interface {
	Record(ctx context.Context, enrollmentID string, env host.Envelope) (bool, error)
	State(ctx context.Context, enrollmentID string) (LearnerState, error)
	Events(ctx context.Context, enrollmentID string, after int64, limit int) ([]Event, error)
}

// MemoryStore is the offline and test Store.
type MemoryStore struct {
	mu     sync.RWMutex
	now    func() time.Time
	seq    int64
	seen   map[string]map[string]bool
	events map[string][]Event
	states map[string]LearnerState
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:    now,
		seen:   map[string]map[string]bool{},
		events: map[string][]Event{},
		states: map[string]LearnerState{},
	}
}

func (m *MemoryStore) Record(_ context.Context, enrollmentID string, env host.Envelope) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[enrollmentID][env.ID] {
		return false, nil
	}
	st, ok := m.states[enrollmentID]
	if !ok {
		st = newState(enrollmentID)
	}
	st.Sections = slices.Clone(st.Sections)
	if err := Apply(&st, env); err != nil {
		return false, err
	}
	st.UpdatedAt = m.now().UTC()
	m.states[enrollmentID] = st

	if m.seen[enrollmentID] == nil {
		m.seen[enrollmentID] = map[string]bool{}
	}
	m.seen[enrollmentID][env.ID] = true
	m.seq++
	m.events[enrollmentID] = append(m.events[enrollmentID], Event{
		Seq:          m.seq,
		EnrollmentID: enrollmentID,
		MessageID:    env.ID,
		Type:         string(env.Type),
		Data:         append([]byte(nil), env.Payload...),
		SentAt:       env.SentAt,
	})
	return true, nil
}

func (m *MemoryStore) State(_ context.Context, enrollmentID string) (LearnerState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[enrollmentID]
	if !ok {
		return LearnerState{}, ErrNotFound
	}
	st.Sections = slices.Clone(st.Sections)
	return st, nil
}

func (m *MemoryStore) Events(_ context.Context, enrollmentID string, after int64, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Event
	for _, e := range m.events[enrollmentID] {
		if e.Seq <= after {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
