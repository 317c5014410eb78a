package game

import "time"

// timer is a pausable countdown read against an external clock. A zero
// limit means no clock.
type timer struct {
	limit   time.Duration
	used    time.Duration
	since   time.Time
	running bool
}

func (t *timer) start(now time.Time, limit time.Duration) {
	*t = timer{limit: limit, since: now, running: limit > 0}
}

func (t *timer) pause(now time.Time) {
	if !t.running {
		return
	}
	t.used += now.Sub(t.since)
	t.running = false
}

func (t *timer) resume(now time.Time) {
	if t.limit <= 0 || t.running {
		return
	}
	t.since = now
	t.running = true
}

func (t *timer) remaining(now time.Time) time.Duration {
	if t.limit <= 0 {
		return 0
	}
	used := t.used
	if t.running {
		used += now.Sub(t.since)
	}
	return max(t.limit-used, 0)
}

func (t *timer) expired(now time.Time) bool {
	return t.limit > 0 && t.remaining(now) == 0
}
