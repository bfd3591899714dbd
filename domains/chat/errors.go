package chat

import "errors"

var (
	// ErrSessionExpired means the remote rejected the stored session. The user must log in again.
	ErrSessionExpired   = errors.New("session expired")
	ErrPasswordRequired = errors.New("two-step verification password required")
	ErrChatNotFound     = errors.New("chat not found")
)
