// Package health aggregates component health checks behind one HTTP handler.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs all registered component checks.
type Checker struct {
	log    *slog.Logger
	checks map[string]Checkable
}

// NewChecker instantiates a Checker with the provided logger.
func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{log: log, checks: make(map[string]Checkable)}
}

// AddCheck registers a checkable component by name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}
	c.checks[name] = check
}

// Check runs all registered health checks and returns their statuses.
func (c *Checker) Check(ctx context.Context) (map[string]string, bool) {
	results := make(map[string]string, len(c.checks))
	healthy := true

	for name, check := range c.checks {
		if err := check.HealthCheck(ctx); err != nil {
			results[name] = err.Error()
			healthy = false
			c.log.Error("health check failed", "component", name, "error", err)
			continue
		}
		results[name] = "OK"
	}
	return results, healthy
}

// Handler serves the aggregated status as JSON, 503 when any check fails.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results, healthy := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(results)
	})
}

// SessionChecker verifies the Discord gateway connection is alive.
type SessionChecker struct {
	session *discordgo.Session
}

// NewSessionChecker constructs a SessionChecker.
func NewSessionChecker(session *discordgo.Session) *SessionChecker {
	return &SessionChecker{session: session}
}

// HealthCheck fails when the gateway heartbeat has gone quiet.
func (c *SessionChecker) HealthCheck(_ context.Context) error {
	if c.session == nil {
		return errors.New("no discord session")
	}
	if c.session.LastHeartbeatAck.IsZero() {
		return errors.New("gateway not connected")
	}
	if time.Since(c.session.LastHeartbeatAck) > 5*time.Minute {
		return errors.New("gateway heartbeat stalled")
	}
	return nil
}
