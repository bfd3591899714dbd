package kvstore

import (
	"context"
	"fmt"

	valkeylib "github.com/valkey-io/valkey-go"

	"github.com/AzielCF/az-tgclean/domains/kvstore"
	"github.com/AzielCF/az-tgclean/infrastructure/valkey"
)

// ValkeyStore implements kvstore.Store using Valkey.
// Keys are namespaced with the client prefix plus "kv:".
type ValkeyStore struct {
	client *valkey.Client
	prefix string
}

var _ kvstore.Store = (*ValkeyStore)(nil)

// NewValkeyStore creates a new ValkeyStore instance.
func NewValkeyStore(client *valkey.Client) *ValkeyStore {
	return &ValkeyStore{
		client: client,
		prefix: client.Key("kv") + ":",
	}
}

func (s *ValkeyStore) fullKey(key string) string {
	return s.prefix + key
}

// Client exposes the shared connection, used for pub/sub by the websocket hub.
func (s *ValkeyStore) Client() *valkey.Client {
	return s.client
}

func (s *ValkeyStore) inner() valkeylib.Client {
	return s.client.Inner()
}

// Get retrieves the value stored under key.
func (s *ValkeyStore) Get(ctx context.Context, key string) (string, bool, error) {
	cmd := s.inner().B().Get().Key(s.fullKey(key)).Build()

	val, err := s.inner().Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores the value without expiration; ageing is handled by the callers.
func (s *ValkeyStore) Set(ctx context.Context, key, value string) error {
	cmd := s.inner().B().Set().Key(s.fullKey(key)).Value(value).Build()
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Remove deletes a single key.
func (s *ValkeyStore) Remove(ctx context.Context, key string) error {
	cmd := s.inner().B().Del().Key(s.fullKey(key)).Build()
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to remove key %s: %w", key, err)
	}
	return nil
}

// MultiGet fetches all keys with one MGET.
func (s *ValkeyStore) MultiGet(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = s.fullKey(k)
	}

	cmd := s.inner().B().Mget().Key(fullKeys...).Build()
	values, err := s.inner().Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("failed to mget keys: %w", err)
	}

	for i, msg := range values {
		if i >= len(keys) || msg.IsNil() {
			continue
		}
		val, err := msg.ToString()
		if err != nil {
			continue
		}
		out[keys[i]] = val
	}
	return out, nil
}

// MultiRemove deletes all keys with one DEL.
func (s *ValkeyStore) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = s.fullKey(k)
	}

	cmd := s.inner().B().Del().Key(fullKeys...).Build()
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to remove %d keys: %w", len(keys), err)
	}
	return nil
}

// Close closes the underlying client.
func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
