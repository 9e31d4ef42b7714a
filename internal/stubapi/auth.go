package stubapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/domain/user"
	"github.com/careflow/careflow/internal/platform/identity"
)

const tokenTTL = 8 * time.Hour

// contextAccount is the echo context key for the authenticated account.
const contextAccount = "stub_account"

func (s *Server) mintToken(a *Account) (string, error) {
	now := time.Now()
	claims := identity.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		Username: a.Username,
		Role:     string(a.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req user.LoginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "malformed request body")
	}
	var fields []fieldError
	if strings.TrimSpace(req.Username) == "" {
		fields = append(fields, missing("username", "field required"))
	}
	if strings.TrimSpace(req.Password) == "" {
		fields = append(fields, missing("password", "field required"))
	}
	if len(fields) > 0 {
		return failValidation(c, fields...)
	}

	a, ok := s.store.account(req.Username)
	if !ok || a.Password != req.Password {
		return fail(c, http.StatusUnauthorized, "incorrect username or password")
	}
	if !a.IsActive {
		return fail(c, http.StatusForbidden, "account is deactivated")
	}

	token, err := s.mintToken(a)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not issue token")
	}

	s.store.mu.Lock()
	a.LastLogin = time.Now().UTC()
	s.store.mu.Unlock()

	s.logger.Info().Str("username", a.Username).Str("role", string(a.Role)).Msg("stub login")
	return c.JSON(http.StatusOK, user.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        accountToUser(a),
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	// Tokens are stateless; logout exists so clients can call it.
	return c.JSON(http.StatusOK, map[string]string{"detail": "logged out"})
}

func (s *Server) handleMe(c echo.Context) error {
	a := currentAccount(c)
	return c.JSON(http.StatusOK, accountToUser(a))
}

func (s *Server) handleListDoctors(c echo.Context) error {
	out := []user.Doctor{}
	for _, a := range s.store.doctors() {
		out = append(out, user.Doctor{UserID: a.UserID, FullName: a.FullName})
	}
	return c.JSON(http.StatusOK, out)
}

// requireToken authenticates the bearer token and stashes the account.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if header == "" {
			return fail(c, http.StatusUnauthorized, "missing authorization header")
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return fail(c, http.StatusUnauthorized, "invalid authorization format")
		}

		claims := &identity.Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
			return s.cfg.SigningKey, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			return fail(c, http.StatusUnauthorized, "invalid token")
		}

		a, ok := s.store.accountByID(claims.Subject)
		if !ok || !a.IsActive {
			return fail(c, http.StatusUnauthorized, "unknown or deactivated account")
		}
		c.Set(contextAccount, a)
		return next(c)
	}
}

// requireRole gates a route group to the named roles.
func (s *Server) requireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a := currentAccount(c)
			for _, r := range roles {
				if string(a.Role) == r {
					return next(c)
				}
			}
			return fail(c, http.StatusForbidden, "insufficient role")
		}
	}
}

func currentAccount(c echo.Context) *Account {
	a, _ := c.Get(contextAccount).(*Account)
	return a
}

func accountToUser(a *Account) user.User {
	u := user.User{
		UserID:    a.UserID,
		Username:  a.Username,
		Email:     a.Email,
		FullName:  a.FullName,
		Role:      a.Role,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
	}
	if !a.LastLogin.IsZero() {
		t := a.LastLogin
		u.LastLogin = &t
	}
	return u
}
