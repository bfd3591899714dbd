package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/infrastructure/kvstore"
	"github.com/AzielCF/az-tgclean/pkg/avatarcache"
	"github.com/AzielCF/az-tgclean/pkg/hydration"
)

func sampleChats() []chat.Summary {
	return []chat.Summary{
		{ID: "1", Name: "Alice", Type: chat.TypePrivate},
		{ID: "-2", Name: "Go Devs", Type: chat.TypeGroup},
		{ID: "-1000000000003", Name: "News", Type: chat.TypeChannel},
	}
}

func newChatService(gw chat.Gateway) *ChatService {
	cache := avatarcache.New(kvstore.NewMemoryStore())
	return NewChatService(gw, cache, gateStub{}, hydration.Options{})
}

func TestChatService_LoadPublishesSnapshots(t *testing.T) {
	gw := &gatewayStub{chats: sampleChats(), counts: map[string]int{"-2": 12, "-1000000000003": 4}}
	svc := newChatService(gw)

	id, ch := svc.Subscribe()
	defer svc.Unsubscribe(id)

	items, err := svc.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.True(t, svc.Loaded())

	byID := map[string]chat.Item{}
	for _, it := range items {
		byID[it.ID] = it
	}
	assert.Equal(t, chat.PrivateCountSentinel, byID["1"].MessageCount)
	assert.Equal(t, 12, byID["-2"].MessageCount)
	assert.True(t, byID["-2"].CountLoaded)

	var last hydration.Snapshot
	require.Eventually(t, func() bool {
		select {
		case last = <-ch:
		default:
		}
		return last.Done
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, svc.Snapshot().Items, 3)
}

func TestChatService_SlowSubscriberGetsLatest(t *testing.T) {
	svc := newChatService(&gatewayStub{})
	id, ch := svc.Subscribe()
	defer svc.Unsubscribe(id)

	for i := 1; i <= subscriberBuffer+3; i++ {
		svc.Publish(hydration.Snapshot{BatchSeq: i})
	}

	var got []int
	for len(ch) > 0 {
		got = append(got, (<-ch).BatchSeq)
	}
	require.Len(t, got, subscriberBuffer)
	assert.Equal(t, subscriberBuffer+3, got[len(got)-1])
}

func TestChatService_UnsubscribeClosesChannel(t *testing.T) {
	svc := newChatService(&gatewayStub{})
	id, ch := svc.Subscribe()
	svc.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
	svc.Unsubscribe(id)
}

func TestChatService_ApplyCountUpdate(t *testing.T) {
	svc := newChatService(&gatewayStub{})
	svc.Publish(hydration.Snapshot{Items: []chat.Item{
		{Summary: chat.Summary{ID: "1", Type: chat.TypePrivate, MessageCount: chat.PrivateCountSentinel}},
		{Summary: chat.Summary{ID: "-2", Type: chat.TypeGroup}},
	}, Done: true})

	assert.True(t, svc.ApplyCountUpdate("-2", 9))
	assert.False(t, svc.ApplyCountUpdate("1", 9), "private chats keep the sentinel")
	assert.False(t, svc.ApplyCountUpdate("missing", 9))

	items := svc.Snapshot().Items
	assert.Equal(t, 9, items[1].MessageCount)
	assert.True(t, items[1].CountLoaded)
	assert.Equal(t, chat.PrivateCountSentinel, items[0].MessageCount)
}

func TestChatService_Selection(t *testing.T) {
	svc := newChatService(&gatewayStub{})
	svc.Publish(hydration.Snapshot{Items: []chat.Item{
		{Summary: chat.Summary{ID: "1", Name: "Alice", Type: chat.TypePrivate}, Avatar: "data:image/jpeg;base64,AAAA"},
		{Summary: chat.Summary{ID: "-2", Name: "Go Devs", Type: chat.TypeGroup}, Avatar: "👥"},
		{Summary: chat.Summary{ID: "-3", Name: "Gophers", Type: chat.TypeGroup}},
	}})

	assert.Len(t, svc.Search("go"), 2)

	assert.True(t, svc.Toggle("1"))
	svc.ToggleAll("go")
	selected := svc.Selected()
	require.Len(t, selected, 3)

	svc.ToggleAll("go")
	selected = svc.Selected()
	require.Len(t, selected, 1)
	assert.Equal(t, "1", selected[0].ID)
	assert.Empty(t, selected[0].Avatar, "inline images are not carried over")

	svc.Select([]string{"-2"})
	selected = svc.Selected()
	require.Len(t, selected, 1)
	assert.Equal(t, "👥", selected[0].Avatar)

	svc.ClearSelection()
	assert.Empty(t, svc.Selected())
}

func TestChatService_RefreshIgnoredWhileRunning(t *testing.T) {
	gw := &gatewayStub{chats: sampleChats()}
	svc := newChatService(gw)

	require.True(t, svc.Refresh(context.Background()))
	require.Eventually(t, func() bool { return svc.Loaded() && !svc.Running() }, time.Second, 5*time.Millisecond)
}

func TestChatService_ConcurrentRefreshStartsOnce(t *testing.T) {
	release := make(chan struct{})
	gw := &gatewayStub{chats: []chat.Summary{{ID: "-2", Name: "Go Devs", Type: chat.TypeGroup}}}
	gw.onCount = func(string) { <-release }
	svc := newChatService(gw)

	const callers = 8
	var (
		wg      sync.WaitGroup
		started atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.Refresh(context.Background()) {
				started.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), started.Load())

	close(release)
	require.Eventually(t, func() bool { return svc.Loaded() && !svc.Running() }, time.Second, 5*time.Millisecond)
}

func TestChatService_DeletionsSurviveRunningHydration(t *testing.T) {
	secondBatch := make(chan struct{})
	release := make(chan struct{})
	gw := &gatewayStub{
		chats: []chat.Summary{
			{ID: "A", Name: "Alpha", Type: chat.TypeGroup},
			{ID: "B", Name: "Beta", Type: chat.TypeGroup},
		},
		counts: map[string]int{"A": 10, "B": 4},
	}
	gw.onCount = func(chatID string) {
		if chatID == "B" {
			close(secondBatch)
			<-release
		}
	}
	cache := avatarcache.New(kvstore.NewMemoryStore())
	svc := NewChatService(gw, cache, gateStub{}, hydration.Options{BatchSize: 1})

	type loaded struct {
		items []chat.Item
		err   error
	}
	done := make(chan loaded, 1)
	go func() {
		items, err := svc.Load(context.Background())
		done <- loaded{items, err}
	}()

	<-secondBatch
	require.Equal(t, 10, itemByID(t, svc.Snapshot().Items, "A").MessageCount)

	svc.ApplyDeletions(map[string]int{"A": 3})
	assert.Equal(t, 7, itemByID(t, svc.Snapshot().Items, "A").MessageCount)

	close(release)
	res := <-done
	require.NoError(t, res.err)

	assert.Equal(t, 7, itemByID(t, res.items, "A").MessageCount)
	assert.Equal(t, 7, itemByID(t, svc.Snapshot().Items, "A").MessageCount)
	assert.Equal(t, 4, itemByID(t, svc.Snapshot().Items, "B").MessageCount)

	// A later fetch is fresher than the deletion and replaces the local count.
	gw.onCount = nil
	gw.counts = map[string]int{"A": 6, "B": 4}
	_, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, itemByID(t, svc.Snapshot().Items, "A").MessageCount)
}

func itemByID(t *testing.T, items []chat.Item, id string) chat.Item {
	t.Helper()
	for _, it := range items {
		if it.ID == id {
			return it
		}
	}
	t.Fatalf("chat %s not found", id)
	return chat.Item{}
}

func TestChatService_ApplyDeletions(t *testing.T) {
	svc := newChatService(&gatewayStub{})
	svc.ApplyDeletions(map[string]int{"-2": 1})
	assert.False(t, svc.Loaded())

	svc.Publish(hydration.Snapshot{Items: []chat.Item{
		{Summary: chat.Summary{ID: "1", Type: chat.TypePrivate, MessageCount: chat.PrivateCountSentinel}, CountLoaded: true},
		{Summary: chat.Summary{ID: "-2", Type: chat.TypeGroup, MessageCount: 5}, CountLoaded: true},
		{Summary: chat.Summary{ID: "-3", Type: chat.TypeGroup, MessageCount: 2}, CountLoaded: true},
		{Summary: chat.Summary{ID: "-4", Type: chat.TypeGroup}},
	}})

	svc.ApplyDeletions(map[string]int{"1": 3, "-2": 3, "-3": 7, "-4": 1})
	items := svc.Snapshot().Items
	assert.Equal(t, chat.PrivateCountSentinel, items[0].MessageCount)
	assert.Equal(t, 2, items[1].MessageCount)
	assert.Zero(t, items[2].MessageCount)
	assert.Zero(t, items[3].MessageCount)
	assert.False(t, items[3].CountLoaded)
}

func TestChatService_Reset(t *testing.T) {
	svc := newChatService(&gatewayStub{})
	svc.Publish(hydration.Snapshot{Items: []chat.Item{{Summary: chat.Summary{ID: "-2", Type: chat.TypeGroup}}}})
	svc.Toggle("-2")

	svc.Reset()
	assert.False(t, svc.Loaded())
	assert.Empty(t, svc.Snapshot().Items)
	assert.Empty(t, svc.Selected())
}
