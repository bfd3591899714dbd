package usecase

import (
	"context"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-tgclean/domains/avatar"
	domainCache "github.com/AzielCF/az-tgclean/domains/cache"
	pkgError "github.com/AzielCF/az-tgclean/pkg/error"
)

type cacheService struct {
	avatars avatar.Cache
}

func NewCacheService(avatars avatar.Cache) domainCache.ICacheUsecase {
	return &cacheService{avatars: avatars}
}

func (s *cacheService) GetStats(ctx context.Context) (domainCache.CacheStats, error) {
	st := s.avatars.Stats(ctx)
	return domainCache.CacheStats{
		Entries:       st.Size,
		MaxEntries:    st.MaxSize,
		MaxAge:        humanize.Comma(int64(st.MaxAge.Hours()/24)) + " days",
		MemoryEntries: st.MemorySize,
		MemoryBytes:   st.MemoryBytes,
		HumanSize:     humanize.Bytes(uint64(st.MemoryBytes)),
	}, nil
}

func (s *cacheService) ClearCache(ctx context.Context) error {
	s.avatars.Clear(ctx)
	logrus.Info("[AVATAR_CACHE] Cleared by request")
	return nil
}

func (s *cacheService) ClearChat(ctx context.Context, chatID string) error {
	if strings.TrimSpace(chatID) == "" {
		return pkgError.ValidationError("chat id is required")
	}
	s.avatars.Delete(ctx, chatID)
	return nil
}
