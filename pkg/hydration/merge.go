package hydration

import (
	"time"

	"github.com/AzielCF/az-tgclean/domains/chat"
)

// Enrichment is the partial update produced for one chat by a batch.
// Fields are applied only when their Loaded flag is set.
type Enrichment struct {
	CountLoaded  bool
	MessageCount int
	// CountFetchedAt is when the count request was issued; zero for defaults.
	CountFetchedAt time.Time

	AvatarLoaded bool
	Avatar       string
}

// MergeEnrichment applies partial onto base and returns the merged item.
// Identity fields of base are never touched.
func MergeEnrichment(base chat.Item, partial Enrichment) chat.Item {
	if partial.CountLoaded {
		base.MessageCount = partial.MessageCount
		base.CountLoaded = true
		base.CountFetchedAt = partial.CountFetchedAt
	}
	if partial.AvatarLoaded {
		base.Avatar = partial.Avatar
		base.AvatarReady = true
		base.AvatarLoading = false
	}
	return base
}
