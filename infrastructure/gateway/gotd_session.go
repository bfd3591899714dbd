package gateway

import (
	"context"
	"encoding/base64"
	"fmt"

	gotdsession "github.com/gotd/td/session"

	"github.com/AzielCF/az-tgclean/domains/kvstore"
	"github.com/AzielCF/az-tgclean/domains/session"
)

// SessionStorage keeps the MTProto session under the same key as the session string,
// so clearing the session also logs the client out on next start.
type SessionStorage struct {
	store kvstore.Store
}

var _ gotdsession.Storage = (*SessionStorage)(nil)

func NewSessionStorage(store kvstore.Store) *SessionStorage {
	return &SessionStorage{store: store}
}

func (s *SessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	encoded, ok, err := s.store.Get(ctx, session.SessionStringKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load mtproto session: %w", err)
	}
	if !ok || encoded == "" {
		return nil, gotdsession.ErrNotFound
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Session strings written by the HTTP gateway are not MTProto sessions.
		return nil, gotdsession.ErrNotFound
	}
	return data, nil
}

func (s *SessionStorage) StoreSession(ctx context.Context, data []byte) error {
	if err := s.store.Set(ctx, session.SessionStringKey, base64.StdEncoding.EncodeToString(data)); err != nil {
		return fmt.Errorf("failed to store mtproto session: %w", err)
	}
	return nil
}

// Current returns the stored session string, or "" when there is none.
func (s *SessionStorage) Current(ctx context.Context) string {
	encoded, _, err := s.store.Get(ctx, session.SessionStringKey)
	if err != nil {
		return ""
	}
	return encoded
}
