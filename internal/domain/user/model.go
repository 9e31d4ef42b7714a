package user

import (
	"time"

	"github.com/careflow/careflow/internal/platform/identity"
)

// User is the backend's account record.
type User struct {
	UserID    string        `json:"user_id"`
	Username  string        `json:"username"`
	Email     string        `json:"email,omitempty"`
	FullName  string        `json:"full_name"`
	Role      identity.Role `json:"role"`
	IsActive  bool          `json:"is_active"`
	CreatedAt time.Time     `json:"created_at"`
	LastLogin *time.Time    `json:"last_login,omitempty"`
}

// Identity maps the account record onto the client-side identity.
func (u *User) Identity() identity.Identity {
	return identity.Identity{
		UserID:   u.UserID,
		Username: u.Username,
		FullName: u.FullName,
		Role:     u.Role,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// Doctor is the subset of a user record shown in assignment pickers.
type Doctor struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
}
