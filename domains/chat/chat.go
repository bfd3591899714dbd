package chat

import (
	"context"
	"time"
)

// Type is the kind of conversation.
type Type string

const (
	TypePrivate Type = "private"
	TypeGroup   Type = "group"
	TypeChannel Type = "channel"
)

// PrivateCountSentinel marks the message count of a private chat, which is never fetched.
const PrivateCountSentinel = -2

// Summary is the cheap, per-chat listing returned by the gateway.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         Type      `json:"type"`
	LastMessage  string    `json:"lastMessage"`
	Timestamp    time.Time `json:"timestamp"`
	UnreadCount  int       `json:"unreadCount"`
	MessageCount int       `json:"messageCount"`
	PhotoID      string    `json:"photoId,omitempty"`
}

// Item is a Summary plus its hydration state.
type Item struct {
	Summary
	Avatar        string `json:"avatar"`
	AvatarReady   bool   `json:"avatarReady"`
	AvatarLoading bool   `json:"avatarLoading"`
	CountLoaded   bool   `json:"countLoaded"`
	// CountFetchedAt is when MessageCount was requested from the remote.
	CountFetchedAt time.Time `json:"-"`
}

// IsPrivate reports whether counts must be skipped for this chat.
func (s Summary) IsPrivate() bool {
	return s.Type == TypePrivate
}

// Message is one message of the authenticated user.
type Message struct {
	ID       int       `json:"id"`
	ChatID   string    `json:"chatId"`
	Text     string    `json:"text"`
	Date     time.Time `json:"date"`
	Outgoing bool      `json:"outgoing"`
}

// Gateway is the remote messaging backend.
type Gateway interface {
	// GetChatsQuick lists chats without counts or photo payloads.
	GetChatsQuick(ctx context.Context) ([]Summary, error)

	// GetChatMessageCount counts the user's own messages in a chat.
	GetChatMessageCount(ctx context.Context, chatID string, isPrivate bool) (int, error)

	// GetChatProfilePhoto returns a renderable payload (usually a data URI), or "" when
	// the chat has no photo.
	GetChatProfilePhoto(ctx context.Context, chatID, photoID string) (string, error)

	// GetMessages returns up to limit of the user's latest messages in a chat.
	GetMessages(ctx context.Context, chatID string, limit int) ([]Message, error)

	// DeleteMessages deletes messages for everyone and returns how many were deleted.
	DeleteMessages(ctx context.Context, chatID string, ids []int) (int, error)
}

// SentCode is the result of requesting a login code.
type SentCode struct {
	Phone         string `json:"phone"`
	PhoneCodeHash string `json:"phoneCodeHash"`
}

// SignInRequest completes a login with the received code.
type SignInRequest struct {
	Phone         string `json:"phone"`
	PhoneCodeHash string `json:"phoneCodeHash"`
	Code          string `json:"code"`
}

// Authorization is what a successful login yields.
type Authorization struct {
	UserID        string `json:"userId"`
	SessionString string `json:"sessionString"`
	Token         string `json:"token"`
}

// Authenticator is implemented by gateways that can run the login flow.
type Authenticator interface {
	SendCode(ctx context.Context, phone string) (SentCode, error)
	SignIn(ctx context.Context, req SignInRequest) (Authorization, error)
	// CheckPassword finishes a login that returned ErrPasswordRequired.
	CheckPassword(ctx context.Context, phone, password string) (Authorization, error)
}

// Selection actions.
const (
	SelectToggle    = "toggle"
	SelectToggleAll = "toggle_all"
	SelectSet       = "set"
	SelectClear     = "clear"
)

// SelectionRequest edits the chat selection.
type SelectionRequest struct {
	Action  string   `json:"action"`
	ChatIDs []string `json:"chatIds"`
	// Query scopes toggle_all to the chats matching a search.
	Query string `json:"query"`
}

// PasswordRequest answers the two-step verification prompt.
type PasswordRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}
