// Package completion holds the single record of which activities and
// page-turn dividers a learner has satisfied in the current session.
//
// Activities report here and nowhere else. The registry knows nothing about
// sections, percentages or persistence; progress and suspend read from it.
package completion

import "sort"

// Policy tells the registry which activities complete only on a pass.
type Policy interface {
	RequiresPass(activityID string) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(string) bool

func (f PolicyFunc) RequiresPass(id string) bool { return f(id) }

// Snapshot is a value copy of the registry, used for serialization.
type Snapshot struct {
	Completed []string
	Outcomes  map[string]bool
	Dividers  []string
	Scores    map[string]int
}

type Registry struct {
	policy    Policy
	completed map[string]struct{}
	outcomes  map[string]bool
	dividers  map[string]struct{}
	scores    map[string]int
}

func New(p Policy) *Registry {
	if p == nil {
		p = PolicyFunc(func(string) bool { return false })
	}
	r := &Registry{policy: p}
	r.Reset()
	return r
}

// RecordOutcome stores the result of an activity's "done" event. Outcomes
// are last-write-wins; the completed set only grows. It reports whether
// anything changed.
func (r *Registry) RecordOutcome(activityID string, passed bool) bool {
	if activityID == "" {
		return false
	}
	prev, had := r.outcomes[activityID]
	r.outcomes[activityID] = passed
	changed := !had || prev != passed
	if passed || !r.policy.RequiresPass(activityID) {
		if _, ok := r.completed[activityID]; !ok {
			r.completed[activityID] = struct{}{}
			changed = true
		}
	}
	return changed
}

// SatisfyDivider marks a page-turn divider as passed.
func (r *Registry) SatisfyDivider(dividerID string) bool {
	if _, ok := r.dividers[dividerID]; ok || dividerID == "" {
		return false
	}
	r.dividers[dividerID] = struct{}{}
	return true
}

// RecordScore keeps the best numeric score seen for a game.
func (r *Registry) RecordScore(activityID string, score int) bool {
	if best, ok := r.scores[activityID]; ok && best >= score {
		return false
	}
	r.scores[activityID] = score
	return true
}

func (r *Registry) IsCompleted(activityID string) bool {
	_, ok := r.completed[activityID]
	return ok
}

func (r *Registry) IsDividerSatisfied(dividerID string) bool {
	_, ok := r.dividers[dividerID]
	return ok
}

// Outcome returns the last recorded outcome and whether one exists.
func (r *Registry) Outcome(activityID string) (passed, ok bool) {
	passed, ok = r.outcomes[activityID]
	return
}

func (r *Registry) Score(activityID string) (int, bool) {
	s, ok := r.scores[activityID]
	return s, ok
}

func (r *Registry) CompletedCount() int { return len(r.completed) }

// Snapshot copies the registry with sorted slices so encodings are stable.
func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		Completed: sortedKeys(r.completed),
		Dividers:  sortedKeys(r.dividers),
		Outcomes:  make(map[string]bool, len(r.outcomes)),
		Scores:    make(map[string]int, len(r.scores)),
	}
	for k, v := range r.outcomes {
		s.Outcomes[k] = v
	}
	for k, v := range r.scores {
		s.Scores[k] = v
	}
	return s
}

// Restore merges a snapshot into the registry. Outcomes are replayed so
// completion is re-derived even if the snapshot lost its completed list.
func (r *Registry) Restore(s Snapshot) {
	for _, id := range s.Completed {
		if id != "" {
			r.completed[id] = struct{}{}
		}
	}
	for id, passed := range s.Outcomes {
		r.RecordOutcome(id, passed)
	}
	for _, id := range s.Dividers {
		r.SatisfyDivider(id)
	}
	for id, v := range s.Scores {
		r.RecordScore(id, v)
	}
}

// Reset clears everything. Only an explicit course reset calls it.
func (r *Registry) Reset() {
	r.completed = map[string]struct{}{}
	r.outcomes = map[string]bool{}
	r.dividers = map[string]struct{}{}
	r.scores = map[string]int{}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
