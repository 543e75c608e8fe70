// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// EditorConfig is the timing contract the editor client follows.
type EditorConfig struct {
	HeartbeatInterval time.Duration
	LockPollInterval  time.Duration
	LockLease         time.Duration
}

// Config serves the client timing contract.
func (c EditorConfig) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"heartbeat_interval_seconds": int(c.HeartbeatInterval / time.Second),
		"lock_poll_interval_seconds": int(c.LockPollInterval / time.Second),
		"lock_lease_seconds":         int(c.LockLease / time.Second),
	})
}

// Pinger is a dependency checked by the health endpoint. *sql.DB satisfies
// it directly; Valkey clients are wrapped in a PingFunc.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Health reports liveness and the reachability of each named dependency.
type Health struct {
	deps map[string]Pinger
}

// NewHealth creates a health handler over the given dependencies.
func NewHealth(deps map[string]Pinger) *Health {
	return &Health{deps: deps}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.PingContext(ctx); err != nil {
			slog.Warn("health check failed", "dependency", name, "error", err)
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	writeJSON(w, status, body)
}
