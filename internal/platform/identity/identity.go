// Package identity holds the process-wide authenticated identity for the
// lifetime of an application session. The store is mutated only by login,
// logout, and authorization-failure handling; every other component reads it.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the workflow role carried in the access token.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDoctor Role = "doctor"
	RoleNurse  Role = "nurse"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse:
		return true
	}
	return false
}

// Identity is the authenticated user as seen by the client.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// Claims mirrors the token payload minted by the backend on login.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Store holds the current identity and bearer token. It is safe for
// concurrent use. Observers registered with OnChange are notified after
// every identity mutation, including identity loss on auth failure.
type Store struct {
	mu        sync.RWMutex
	identity  *Identity
	token     string
	tokenFile string
	observers []func(*Identity)
}

// NewStore creates an empty store. tokenFile may be empty to disable
// persistence (used by tests).
func NewStore(tokenFile string) *Store {
	return &Store{tokenFile: tokenFile}
}

// NewStoreFromFile creates a store and, if a persisted token exists and has
// not expired, initializes the identity from its claims. A malformed or
// expired token is discarded and the store starts unauthenticated.
func NewStoreFromFile(tokenFile string) *Store {
	s := NewStore(tokenFile)
	if tokenFile == "" {
		return s
	}
	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return s
	}
	token := strings.TrimSpace(string(raw))
	ident, err := IdentityFromToken(token)
	if err != nil {
		_ = os.Remove(tokenFile)
		return s
	}
	s.identity = ident
	s.token = token
	return s
}

// IdentityFromToken extracts an identity from a stored access token without
// verifying the signature: the backend is the verifier, the client only needs
// the claims and the expiry to decide whether re-login is required.
func IdentityFromToken(token string) (*Identity, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("token expired at %s", claims.ExpiresAt.Format(time.RFC3339))
	}
	role := Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q in token", claims.Role)
	}
	return &Identity{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     role,
	}, nil
}

// Current returns the authenticated identity, or nil when logged out.
func (s *Store) Current() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	ident := *s.identity
	return &ident
}

// Token returns the bearer token for the current identity, or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetSession installs the identity and token returned by a successful login
// and persists the token for the next process start.
func (s *Store) SetSession(ident Identity, token string) error {
	s.mu.Lock()
	s.identity = &ident
	s.token = token
	file := s.tokenFile
	s.mu.Unlock()

	s.notify()

	if file == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(file, []byte(token), 0o600); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

// Clear drops the identity and removes the persisted token. Used by logout
// and by the API layer when the backend rejects the credential.
func (s *Store) Clear() {
	s.mu.Lock()
	s.identity = nil
	s.token = ""
	file := s.tokenFile
	s.mu.Unlock()

	if file != "" {
		_ = os.Remove(file)
	}
	s.notify()
}

// HandleAuthFailure clears the identity in response to a 401/403 from the
// backend. Every protected action after this point must re-enter the login
// boundary.
func (s *Store) HandleAuthFailure() {
	s.Clear()
}

// OnChange registers an observer invoked after every identity mutation. The
// argument is nil when the identity was lost.
func (s *Store) OnChange(fn func(*Identity)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	ident := s.identity
	observers := make([]func(*Identity), len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(ident)
	}
}
