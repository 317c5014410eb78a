package http

import (
	"context"
	"time"

	nethttp "net/http"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// GET /healthz
func HealthHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	w.WriteHeader(nethttp.StatusOK)
}

// GET /readyz reports 503 while the database is unreachable.
func ReadyHandler(db pinger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			nethttp.Error(w, "db unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	}
}
