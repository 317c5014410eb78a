package bridge

import (
	"context"
	"fmt"

	"github.com/mind-engage/coursepack/internal/host"
	"github.com/mind-engage/coursepack/internal/logger"
)

// Receiver validates relayed envelopes and records them.
type Receiver struct {
	store Store
	log   *logger.Logger
}

func NewReceiver(store Store, log *logger.Logger) *Receiver {
	if log == nil {
		log = logger.Nop()
	}
	return &Receiver{store: store, log: log}
}

// Receive records a batch in order. It stops at the first invalid
// envelope and reports how many were newly accepted before it.
func (r *Receiver) Receive(ctx context.Context, enrollmentID string, envs ...host.Envelope) (int, error) {
	if enrollmentID == "" {
		return 0, fmt.Errorf("%w: missing enrollment", ErrBadEnvelope)
	}
	accepted := 0
	for _, env := range envs {
		if err := Check(env); err != nil {
			return accepted, err
		}
		fresh, err := r.store.Record(ctx, enrollmentID, env)
		if err != nil {
			return accepted, fmt.Errorf("record %s: %w", env.ID, err)
		}
		if !fresh {
			r.log.Debug("duplicate bridge message", "enrollment", enrollmentID, "id", env.ID)
			continue
		}
		accepted++
		if env.Type == host.MsgCourseComplete {
			r.log.Info("course completed", "enrollment", enrollmentID, "package", env.PackageID)
		}
	}
	return accepted, nil
}

// InitialState is what the embedding page injects into the next load.
func (r *Receiver) InitialState(ctx context.Context, enrollmentID string) (LearnerState, error) {
	return r.store.State(ctx, enrollmentID)
}

func (r *Receiver) Events(ctx context.Context, enrollmentID string, after int64, limit int) ([]Event, error) {
	return r.store.Events(ctx, enrollmentID, after, limit)
}

// Emitter wires a runtime's bridge adapter straight into the receiver,
// for previews served by the gateway itself. Failures are logged and
// dropped like any other lost message.
func (r *Receiver) Emitter(ctx context.Context, enrollmentID string) host.Emitter {
	return host.FuncEmitter(func(env host.Envelope) {
		if _, err := r.Receive(ctx, enrollmentID, env); err != nil {
			r.log.Warn("bridge message dropped", "enrollment", enrollmentID, "error", err)
		}
	})
}
