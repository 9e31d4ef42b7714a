// Package user covers authentication and account reads: login establishes
// the process-wide identity, logout tears it down together with every cached
// resource of the previous identity.
package user

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/platform/api"
	"github.com/careflow/careflow/internal/platform/cache"
	"github.com/careflow/careflow/internal/platform/identity"
)

type Client struct {
	api    *api.Client
	ids    *identity.Store
	cache  *cache.Cache
	logger zerolog.Logger
}

func NewClient(apiClient *api.Client, ids *identity.Store, c *cache.Cache, logger zerolog.Logger) *Client {
	return &Client{api: apiClient, ids: ids, cache: c, logger: logger}
}

// Login exchanges credentials for a token and installs the identity.
func (c *Client) Login(ctx context.Context, username, password string) (*identity.Identity, error) {
	var resp LoginResponse
	err := c.api.Post(ctx, "/auth/login", LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	ident := resp.User.Identity()
	if !ident.Role.Valid() {
		return nil, fmt.Errorf("login: backend returned unknown role %q", resp.User.Role)
	}
	if err := c.ids.SetSession(ident, resp.AccessToken); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	c.logger.Info().Str("user_id", ident.UserID).Str("role", string(ident.Role)).Msg("logged in")
	return &ident, nil
}

// Logout clears the identity and the cache. The server call is best-effort:
// the local session ends regardless of its outcome.
func (c *Client) Logout(ctx context.Context) {
	if c.ids.Current() != nil {
		if err := c.api.Post(ctx, "/auth/logout", nil, nil); err != nil {
			c.logger.Debug().Err(err).Msg("server logout failed; clearing local session anyway")
		}
	}
	c.ids.Clear()
	c.cache.Clear()
}

// Me fetches the account record for the current identity.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.api.Get(ctx, "/auth/me", nil, &u); err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}
	return &u, nil
}

// Doctors lists the active doctors available for session assignment.
func (c *Client) Doctors(ctx context.Context) ([]Doctor, error) {
	return cache.GetAs(ctx, c.cache, cache.Key("users", "doctors"), func(ctx context.Context) ([]Doctor, error) {
		var out []Doctor
		if err := c.api.Get(ctx, "/users/doctors", nil, &out); err != nil {
			return nil, fmt.Errorf("list doctors: %w", err)
		}
		return out, nil
	})
}
