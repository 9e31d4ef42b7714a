// Package doctor holds the physician-side workflow: the review queue, the
// session review surface with its polling transcript, diagnosis capture, and
// closure with optional follow-up spawning.
package doctor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/domain/session"
	"github.com/careflow/careflow/internal/platform/api"
	"github.com/careflow/careflow/internal/platform/cache"
)

// QueueScope selects whose sessions the queue lists.
type QueueScope string

const (
	ScopeAll  QueueScope = "all"
	ScopeMine QueueScope = "mine"
)

// CloseResult is the backend's answer to a close request: the closed parent
// and, when pending tests were required, the spawned follow-up draft.
type CloseResult struct {
	Session         *session.Session `json:"session"`
	FollowUpSession *session.Session `json:"follow_up_session,omitempty"`
}

// ReviewKey is the cache key for the doctor's view of one session.
func ReviewKey(sessionID string) string {
	return cache.Key("doctor", "session", sessionID)
}

// QueueKey is the cache key for one queue listing.
func QueueKey(status session.Status, scope QueueScope) string {
	s := "any"
	if status != "" {
		s = string(status)
	}
	return cache.Key("queue", s, string(scope))
}

// Client performs the doctor-facing backend calls.
type Client struct {
	api    *api.Client
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewClient wires the doctor client. Session-write dependents are declared
// by the session client; this package only reads and writes through them.
func NewClient(a *api.Client, c *cache.Cache, logger zerolog.Logger) *Client {
	return &Client{api: a, cache: c, logger: logger}
}

// Queue lists sessions awaiting doctor attention. An empty status lists
// every reviewable status.
func (c *Client) Queue(ctx context.Context, status session.Status, scope QueueScope) ([]session.Summary, error) {
	return cache.GetAs(ctx, c.cache, QueueKey(status, scope), func(ctx context.Context) ([]session.Summary, error) {
		return c.fetchQueue(ctx, status, scope)
	})
}

func (c *Client) fetchQueue(ctx context.Context, status session.Status, scope QueueScope) ([]session.Summary, error) {
	params := map[string]string{}
	if status != "" {
		params["status"] = string(status)
	}
	if scope == ScopeMine {
		params["assigned_to_me"] = "true"
	}
	var out []session.Summary
	if err := c.api.Get(ctx, "/doctor/queue", params, &out); err != nil {
		return nil, fmt.Errorf("list doctor queue: %w", err)
	}
	return out, nil
}

// WatchQueue refreshes the listing on the given interval while the queue
// view is mounted.
func (c *Client) WatchQueue(ctx context.Context, status session.Status, scope QueueScope, interval time.Duration, onUpdate func([]session.Summary)) func() {
	return c.cache.Subscribe(ctx, QueueKey(status, scope), interval, func(ctx context.Context) (any, error) {
		return c.fetchQueue(ctx, status, scope)
	}, func(v any) {
		if listing, ok := v.([]session.Summary); ok {
			onUpdate(listing)
		}
	})
}

// OpenReview fetches the full session for review. Opening a session that is
// awaiting a doctor claims it: the backend flips it to doctor_reviewing and
// records the reviewer, so this read is also a write and invalidates
// dependents accordingly.
func (c *Client) OpenReview(ctx context.Context, sessionID string) (*session.Session, error) {
	var s session.Session
	if err := c.api.Get(ctx, "/doctor/sessions/"+sessionID+"/review", nil, &s); err != nil {
		return nil, fmt.Errorf("open review for %s: %w", sessionID, err)
	}
	c.cache.WriteResolved(session.WriteKind, sessionID)
	c.logger.Info().Str("session_id", sessionID).Str("status", string(s.SessionStatus)).Msg("review opened")
	return &s, nil
}

// SaveDiagnosis records the diagnosis and, in the same logical save, the
// pending-tests requirement. Medication rows missing a name, dosage, or
// duration are dropped before submission.
func (c *Client) SaveDiagnosis(ctx context.Context, sessionID string, d session.Diagnosis, tests *session.PendingTests) (*session.Session, error) {
	if strings.TrimSpace(d.PrimaryDiagnosis) == "" {
		return nil, api.NewValidationError("primary_diagnosis", "primary diagnosis is required")
	}
	d.Medications = session.FilterMedications(d.Medications)

	var s session.Session
	if err := c.api.Put(ctx, "/doctor/sessions/"+sessionID+"/diagnosis", d, &s); err != nil {
		return nil, fmt.Errorf("save diagnosis for %s: %w", sessionID, err)
	}
	if tests != nil {
		if err := c.api.Put(ctx, "/doctor/sessions/"+sessionID+"/pending-tests", tests, &s); err != nil {
			return nil, fmt.Errorf("save pending tests for %s: %w", sessionID, err)
		}
	}
	c.cache.WriteResolved(session.WriteKind, sessionID)
	return &s, nil
}

// Close finishes the session. The backend refuses closure without a
// recorded diagnosis; when the cached record already shows none the refusal
// happens locally. If pending tests are required the result carries the
// spawned follow-up draft and the parent lands in pending_tests instead of
// completed.
func (c *Client) Close(ctx context.Context, sessionID string) (*CloseResult, error) {
	if cached, ok := c.cache.Peek(ReviewKey(sessionID)); ok {
		if s, ok := cached.(*session.Session); ok && s.Diagnosis == nil {
			return nil, api.NewValidationError("diagnosis", "a diagnosis must be recorded before closing")
		}
	}
	var res CloseResult
	if err := c.api.Post(ctx, "/doctor/sessions/"+sessionID+"/close", nil, &res); err != nil {
		return nil, fmt.Errorf("close session %s: %w", sessionID, err)
	}
	c.cache.WriteResolved(session.WriteKind, sessionID)
	if res.FollowUpSession != nil {
		c.cache.WriteResolved(session.WriteKind, res.FollowUpSession.SessionID)
		c.logger.Info().
			Str("session_id", sessionID).
			Str("follow_up_id", res.FollowUpSession.SessionID).
			Msg("session closed with follow-up")
	} else {
		c.logger.Info().Str("session_id", sessionID).Msg("session closed")
	}
	return &res, nil
}
