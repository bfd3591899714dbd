package session

import (
	"context"
	"errors"
)

// Storage keys.
const (
	SessionStringKey = "@telegram_session_string"
	UserIDKey        = "@telegram_user_id"
	TokenKey         = "@auth_token"
)

var (
	// ErrAuthRequired is returned by the gate when no usable session exists.
	ErrAuthRequired = errors.New("authentication required")
	// ErrRevalidationRequired is returned when a session exists without a token
	// and no revalidator is configured.
	ErrRevalidationRequired = errors.New("session needs revalidation")
)

// Record is the full credential set. All three fields are required to be authenticated.
type Record struct {
	UserID        string `json:"userId"`
	SessionString string `json:"-"`
	Token         string `json:"-"`
}

// Store persists the session and the auth token as independent keys.
type Store interface {
	SaveSession(ctx context.Context, userID, sessionString string) error
	// LoadSession returns empty strings (and a nil error) when nothing is stored.
	LoadSession(ctx context.Context) (userID, sessionString string, err error)
	ClearSession(ctx context.Context) error

	SaveToken(ctx context.Context, token string) error
	LoadToken(ctx context.Context) (string, error)
	ClearToken(ctx context.Context) error
}

// Revalidator exchanges a stored session for a fresh token.
type Revalidator interface {
	Revalidate(ctx context.Context, rec Record) (token string, err error)
}

// Gate decides whether an operation may call the remote gateway.
type Gate interface {
	RequireAuth(ctx context.Context) (Record, error)
}
