package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/domains/session"
	"github.com/AzielCF/az-tgclean/pkg/chatview"
	"github.com/AzielCF/az-tgclean/pkg/hydration"
)

// subscriberBuffer is how many snapshots a slow subscriber may lag before the oldest
// pending one is dropped.
const subscriberBuffer = 4

// ChatService owns the hydration pipeline, keeps its latest snapshot and the user's
// chat selection.
type ChatService struct {
	pipeline *hydration.Pipeline
	now      func() time.Time

	// mu guards the snapshot and the count overrides. Subscribers are fed while
	// it is held so they see snapshots in the order they were stored.
	mu        sync.RWMutex
	snapshot  hydration.Snapshot
	loaded    bool
	overrides map[string]countOverride

	subsMu sync.Mutex
	subs   map[int]chan hydration.Snapshot
	nextID int

	selMu     sync.Mutex
	selection *chatview.Selection
}

// countOverride is a locally known message count that wins over any count the
// pipeline fetched before it was recorded.
type countOverride struct {
	count int
	at    time.Time
}

var _ hydration.Publisher = (*ChatService)(nil)

// NewChatService builds the service and its pipeline. gate may be nil.
func NewChatService(gateway chat.Gateway, cache hydration.AvatarCache, gate session.Gate, opts hydration.Options) *ChatService {
	s := &ChatService{
		now:       time.Now,
		overrides: make(map[string]countOverride),
		subs:      make(map[int]chan hydration.Snapshot),
		selection: chatview.NewSelection(),
	}
	s.pipeline = hydration.New(gateway, cache, gate, s, opts)
	return s
}

// Publish stores snap, with pending count overrides applied, and forwards it to
// every subscriber.
func (s *ChatService) Publish(snap hydration.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Items = s.applyOverridesLocked(snap.Items)
	s.storeLocked(snap)
}

// applyOverridesLocked patches items with the overrides that are newer than the
// fetched counts and forgets the ones a later fetch superseded.
func (s *ChatService) applyOverridesLocked(items []chat.Item) []chat.Item {
	if len(s.overrides) == 0 {
		return items
	}
	out := append([]chat.Item(nil), items...)
	for i, it := range out {
		o, ok := s.overrides[it.ID]
		if !ok {
			continue
		}
		if it.CountLoaded && it.CountFetchedAt.After(o.at) {
			delete(s.overrides, it.ID)
			continue
		}
		out[i].MessageCount = o.count
		out[i].CountLoaded = true
	}
	return out
}

func (s *ChatService) storeLocked(snap hydration.Snapshot) {
	s.snapshot = snap
	s.loaded = true

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot; the newest always supersedes it.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Load runs the pipeline and returns the final list. When a run is already in flight
// it returns the latest published items instead.
func (s *ChatService) Load(ctx context.Context) ([]chat.Item, error) {
	res, err := s.pipeline.Run(ctx)
	if err != nil {
		return nil, err
	}
	if !res.Skipped {
		logrus.Infof("[HYDRATION] Loaded %d chats in %d batches (%d degraded)", len(res.Items), res.Batches, res.Degraded)
	}
	// The published snapshot carries the count overrides the raw result lacks.
	return s.Snapshot().Items, nil
}

// Refresh starts a run in the background and reports whether it started.
// Results reach subscribers through published snapshots.
func (s *ChatService) Refresh(ctx context.Context) bool {
	return s.pipeline.Start(ctx, func(_ hydration.Result, err error) {
		if err != nil {
			logrus.WithError(err).Warn("[HYDRATION] Background refresh failed")
		}
	})
}

// Running reports whether a hydration run is in flight.
func (s *ChatService) Running() bool {
	return s.pipeline.Running()
}

// Snapshot returns a copy of the latest published snapshot.
func (s *ChatService) Snapshot() hydration.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snapshot
	out.Items = append([]chat.Item(nil), s.snapshot.Items...)
	return out
}

// Loaded reports whether any snapshot has been published yet.
func (s *ChatService) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Subscribe returns a channel receiving every subsequent snapshot.
func (s *ChatService) Subscribe() (int, <-chan hydration.Snapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.nextID++
	ch := make(chan hydration.Snapshot, subscriberBuffer)
	s.subs[s.nextID] = ch
	return s.nextID, ch
}

// Unsubscribe closes the channel of id.
func (s *ChatService) Unsubscribe(id int) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Search filters the latest snapshot by chat name.
func (s *ChatService) Search(query string) []chat.Item {
	return chatview.Search(s.Snapshot().Items, query)
}

// ApplyCountUpdate sets the message count of one chat from a real-time event and
// republishes. It reports false when the chat is not listed.
func (s *ChatService) ApplyCountUpdate(chatID string, count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, idx, found := lo.FindIndexOf(s.snapshot.Items, func(it chat.Item) bool { return it.ID == chatID })
	if !found || s.snapshot.Items[idx].IsPrivate() {
		return false
	}
	s.overrides[chatID] = countOverride{count: count, at: s.now()}

	snap := s.snapshot
	snap.Items = s.applyOverridesLocked(s.snapshot.Items)
	s.storeLocked(snap)
	return true
}

// ApplyDeletions lowers the loaded message counts by the number of messages deleted
// in each chat and republishes once. Private chats and unloaded counts are left alone.
// The lowered counts survive snapshots of a hydration run already in flight.
func (s *ChatService) ApplyDeletions(perChat map[string]int) {
	if len(perChat) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return
	}

	at := s.now()
	changed := false
	for _, it := range s.snapshot.Items {
		n, ok := perChat[it.ID]
		if !ok || it.IsPrivate() || !it.CountLoaded {
			continue
		}
		s.overrides[it.ID] = countOverride{count: max(it.MessageCount-n, 0), at: at}
		changed = true
	}
	if !changed {
		return
	}

	snap := s.snapshot
	snap.Items = s.applyOverridesLocked(s.snapshot.Items)
	s.storeLocked(snap)
}

// Reset forgets the chat list and the selection, used when the user logs out.
func (s *ChatService) Reset() {
	s.mu.Lock()
	s.snapshot = hydration.Snapshot{}
	s.loaded = false
	s.overrides = make(map[string]countOverride)
	s.mu.Unlock()
	s.ClearSelection()
}

// Toggle flips one chat in the selection.
func (s *ChatService) Toggle(chatID string) bool {
	s.selMu.Lock()
	defer s.selMu.Unlock()
	return s.selection.Toggle(chatID)
}

// ToggleAll selects or deselects every chat matching query.
func (s *ChatService) ToggleAll(query string) {
	visible := s.Search(query)
	s.selMu.Lock()
	defer s.selMu.Unlock()
	s.selection.ToggleAll(visible)
}

// Select replaces the selection with ids.
func (s *ChatService) Select(ids []string) {
	s.selMu.Lock()
	defer s.selMu.Unlock()
	s.selection = chatview.NewSelection(ids...)
}

func (s *ChatService) ClearSelection() {
	s.selMu.Lock()
	defer s.selMu.Unlock()
	s.selection.Clear()
}

// Selected projects the selected chats of the latest snapshot.
func (s *ChatService) Selected() []chatview.SelectedChat {
	items := s.Snapshot().Items
	s.selMu.Lock()
	defer s.selMu.Unlock()
	return chatview.Project(items, s.selection)
}
