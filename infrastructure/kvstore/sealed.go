package kvstore

import (
	"context"

	"github.com/AzielCF/az-tgclean/domains/kvstore"
	"github.com/AzielCF/az-tgclean/pkg/crypto"
)

// SealedStore encrypts the values of a fixed set of keys before they reach the
// wrapped store. Other keys pass through untouched.
type SealedStore struct {
	kvstore.Store
	cipher *crypto.Cipher
	keys   map[string]struct{}
}

var _ kvstore.Store = (*SealedStore)(nil)

func NewSealedStore(inner kvstore.Store, cipher *crypto.Cipher, keys ...string) *SealedStore {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return &SealedStore{Store: inner, cipher: cipher, keys: set}
}

func (s *SealedStore) sealed(key string) bool {
	_, ok := s.keys[key]
	return ok
}

func (s *SealedStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, found, err := s.Store.Get(ctx, key)
	if err != nil || !found || !s.sealed(key) {
		return v, found, err
	}
	plain, err := s.cipher.Open(v)
	if err != nil {
		return "", false, err
	}
	return plain, true, nil
}

func (s *SealedStore) Set(ctx context.Context, key, value string) error {
	if s.sealed(key) && value != "" {
		v, err := s.cipher.Seal(value)
		if err != nil {
			return err
		}
		value = v
	}
	return s.Store.Set(ctx, key, value)
}

func (s *SealedStore) MultiGet(ctx context.Context, keys []string) (map[string]string, error) {
	out, err := s.Store.MultiGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	for k, v := range out {
		if !s.sealed(k) {
			continue
		}
		plain, err := s.cipher.Open(v)
		if err != nil {
			return nil, err
		}
		out[k] = plain
	}
	return out, nil
}

// Unwrap returns the backend store.
func (s *SealedStore) Unwrap() kvstore.Store {
	return s.Store
}
