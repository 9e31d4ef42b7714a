// Package dashboard fetches the role-scoped landing counters.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/platform/api"
	"github.com/careflow/careflow/internal/platform/cache"
)

// StatsKey is the cache key for the landing counters.
var StatsKey = cache.Key("dashboard", "stats")

// Stats carries the landing counters. The backend scopes the payload to the
// caller's role; counters outside that scope arrive as nil and render as
// absent rather than zero.
type Stats struct {
	TotalPatients        *int `json:"total_patients,omitempty"`
	ActiveSessions       *int `json:"active_sessions,omitempty"`
	DraftSessions        *int `json:"draft_sessions,omitempty"`
	AwaitingDoctor       *int `json:"awaiting_doctor,omitempty"`
	InReview             *int `json:"in_review,omitempty"`
	CompletedToday       *int `json:"completed_today,omitempty"`
	PendingTests         *int `json:"pending_tests,omitempty"`
	FailedAnalyses       *int `json:"failed_analyses,omitempty"`
	MyAssignedSessions   *int `json:"my_assigned_sessions,omitempty"`
	TotalUsers           *int `json:"total_users,omitempty"`
	ActiveUsers          *int `json:"active_users,omitempty"`
	SessionsLastSevenDay *int `json:"sessions_last_7_days,omitempty"`
}

// Client fetches dashboard statistics.
type Client struct {
	api    *api.Client
	cache  *cache.Cache
	logger zerolog.Logger
}

func NewClient(a *api.Client, c *cache.Cache, logger zerolog.Logger) *Client {
	return &Client{api: a, cache: c, logger: logger}
}

// Stats returns the counters, cached until the next invalidation or poll.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	return cache.GetAs(ctx, c.cache, StatsKey, func(ctx context.Context) (*Stats, error) {
		var s Stats
		if err := c.api.Get(ctx, "/dashboard/stats", nil, &s); err != nil {
			return nil, fmt.Errorf("get dashboard stats: %w", err)
		}
		return &s, nil
	})
}

// Watch refreshes the counters on the given interval, usually the
// configured dashboard poll interval.
func (c *Client) Watch(ctx context.Context, interval time.Duration, onUpdate func(*Stats)) func() {
	return c.cache.Subscribe(ctx, StatsKey, interval, func(ctx context.Context) (any, error) {
		var s Stats
		if err := c.api.Get(ctx, "/dashboard/stats", nil, &s); err != nil {
			return nil, fmt.Errorf("refresh dashboard stats: %w", err)
		}
		return &s, nil
	}, func(v any) {
		if s, ok := v.(*Stats); ok {
			onUpdate(s)
		}
	})
}
