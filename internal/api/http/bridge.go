package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/coursepack/internal/bridge"
	"github.com/mind-engage/coursepack/internal/host"
	"github.com/mind-engage/coursepack/internal/progress"
)

// BridgeOptions bound what one relay request may carry.
type BridgeOptions struct {
	MaxBatch int
	Timeout  time.Duration
}

// POST /bridge/{enrollmentID}/messages  body: one envelope or an array of them
func RelayMessagesHandler(rcv *bridge.Receiver, opts BridgeOptions) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		raw, err := readJSONBody(w, r)
		if err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		envs, err := decodeEnvelopes(raw)
		if err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		if opts.MaxBatch > 0 && len(envs) > opts.MaxBatch {
			nethttp.Error(w, "batch too large", nethttp.StatusRequestEntityTooLarge)
			return
		}

		ctx := r.Context()
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		accepted, err := rcv.Receive(ctx, chi.URLParam(r, "enrollmentID"), envs...)
		if err != nil {
			if errors.Is(err, bridge.ErrBadEnvelope) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(nethttp.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error(), "accepted": accepted})
				return
			}
			nethttp.Error(w, "record failed", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"accepted": accepted, "received": len(envs)})
	}
}

func readJSONBody(w nethttp.ResponseWriter, r *nethttp.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	err := json.NewDecoder(nethttp.MaxBytesReader(w, r.Body, maxDocumentBytes)).Decode(&raw)
	return raw, err
}

func decodeEnvelopes(raw json.RawMessage) ([]host.Envelope, error) {
	if t := bytes.TrimLeft(raw, " \t\r\n"); len(t) > 0 && t[0] == '[' {
		var envs []host.Envelope
		err := json.Unmarshal(raw, &envs)
		return envs, err
	}
	var env host.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return []host.Envelope{env}, nil
}

// GET /bridge/{enrollmentID}/state
// Unknown enrollments get a fresh "not attempted" state so the page can
// always inject something.
func LearnerStateHandler(rcv *bridge.Receiver) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := chi.URLParam(r, "enrollmentID")
		st, err := rcv.InitialState(r.Context(), id)
		if errors.Is(err, bridge.ErrNotFound) {
			st, err = bridge.LearnerState{EnrollmentID: id, LessonStatus: progress.LessonNotAttempted}, nil
		}
		if err != nil {
			nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	}
}

// GET /bridge/{enrollmentID}/events?after=&limit=
func BridgeEventsHandler(rcv *bridge.Receiver) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		evs, err := rcv.Events(r.Context(), chi.URLParam(r, "enrollmentID"), after, limit)
		if err != nil {
			nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
			return
		}
		if evs == nil {
			evs = []bridge.Event{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": evs})
	}
}
