package rest

import (
	"context"

	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/domains/session"
	"github.com/AzielCF/az-tgclean/pkg/chatview"
	"github.com/AzielCF/az-tgclean/pkg/chatworker"
	"github.com/AzielCF/az-tgclean/pkg/hydration"
)

// ChatUsecase is the chat list and selection service.
type ChatUsecase interface {
	Load(ctx context.Context) ([]chat.Item, error)
	Refresh(ctx context.Context) bool
	Running() bool
	Loaded() bool
	Snapshot() hydration.Snapshot
	Search(query string) []chat.Item
	ApplyDeletions(perChat map[string]int)
	Reset()

	Toggle(chatID string) bool
	ToggleAll(query string)
	Select(ids []string)
	ClearSelection()
	Selected() []chatview.SelectedChat
}

// AuthUsecase runs the login flow and reports the session state.
type AuthUsecase interface {
	SendCode(ctx context.Context, phone string) (chat.SentCode, error)
	SignIn(ctx context.Context, req chat.SignInRequest) (session.Record, error)
	CheckPassword(ctx context.Context, phone, password string) (session.Record, error)
	Logout(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
	LoadSession(ctx context.Context) (userID, sessionString string, err error)
}

type PoolStatsProvider interface {
	Stats() chatworker.PoolStats
}
