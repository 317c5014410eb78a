package runtime

import (
	"time"

	"github.com/mind-engage/coursepack/internal/grading"
	"github.com/mind-engage/coursepack/internal/host"
	"github.com/mind-engage/coursepack/internal/logger"
)

// DefaultHeartbeat is how often RunHeartbeat ticks when no interval is set.
const DefaultHeartbeat = 30 * time.Second

type Option func(*Runtime)

func WithLogger(l *logger.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		if now != nil {
			r.now = now
		}
	}
}

// WithInitialState supplies suspend data out of band. The bridge host has
// no read path, so the embedding page injects the last known state here.
func WithInitialState(blob string) Option {
	return func(r *Runtime) { r.initial = blob }
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.heartbeat = d
		}
	}
}

// WithDevice is reported once as DEVICE_INFO after start.
func WithDevice(d host.DeviceInfo) Option {
	return func(r *Runtime) { r.device = &d }
}

func WithGrader(g *grading.Grader) Option {
	return func(r *Runtime) {
		if g != nil {
			r.grader = g
		}
	}
}
