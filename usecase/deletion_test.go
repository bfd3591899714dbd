package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-tgclean/core/config"
	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/domains/session"
	"github.com/AzielCF/az-tgclean/pkg/chatworker"
	"github.com/AzielCF/az-tgclean/pkg/timeutils"
)

// gatewayStub serves canned chats and messages and records deletions.
type gatewayStub struct {
	mu        sync.Mutex
	chats     []chat.Summary
	counts    map[string]int
	messages  map[string][]chat.Message
	fetchErr  map[string]error
	deleteErr map[string]error
	deleted   map[string][]int
	chunks    int
	// onCount runs at the start of every count call.
	onCount func(chatID string)
}

func (g *gatewayStub) GetChatsQuick(context.Context) ([]chat.Summary, error) {
	return append([]chat.Summary(nil), g.chats...), nil
}

func (g *gatewayStub) GetChatMessageCount(_ context.Context, chatID string, _ bool) (int, error) {
	if g.onCount != nil {
		g.onCount(chatID)
	}
	return g.counts[chatID], nil
}

func (g *gatewayStub) GetChatProfilePhoto(context.Context, string, string) (string, error) {
	return "", nil
}

func (g *gatewayStub) GetMessages(_ context.Context, chatID string, limit int) ([]chat.Message, error) {
	if err := g.fetchErr[chatID]; err != nil {
		return nil, err
	}
	msgs := g.messages[chatID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (g *gatewayStub) DeleteMessages(_ context.Context, chatID string, ids []int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chunks++
	if err := g.deleteErr[chatID]; err != nil {
		return 0, err
	}
	if g.deleted == nil {
		g.deleted = map[string][]int{}
	}
	g.deleted[chatID] = append(g.deleted[chatID], ids...)
	return len(ids), nil
}

type gateStub struct{ err error }

func (s gateStub) RequireAuth(context.Context) (session.Record, error) {
	if s.err != nil {
		return session.Record{}, s.err
	}
	return session.Record{UserID: "1", SessionString: "s", Token: "t"}, nil
}

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newDeletionService(t *testing.T, gw chat.Gateway, gate session.Gate, cfg config.DeletionConfig) *DeletionService {
	t.Helper()
	pool := chatworker.NewPool(2, 4)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	svc := NewDeletionService(gw, gate, pool, cfg)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func msg(id int, age time.Duration, outgoing bool) chat.Message {
	return chat.Message{ID: id, Date: fixedNow.Add(-age), Outgoing: outgoing}
}

func TestDeletionService_DeletesOwnMessagesInRange(t *testing.T) {
	gw := &gatewayStub{messages: map[string][]chat.Message{
		"a": {msg(1, time.Hour, true), msg(2, 2*time.Hour, false), msg(3, 48*time.Hour, true)},
		"b": {msg(10, time.Minute, true)},
	}}
	svc := newDeletionService(t, gw, gateStub{}, config.DeletionConfig{})

	res, err := svc.Delete(context.Background(), chat.DeletionRequest{
		ChatIDs: []string{"a", "b", "a", ""},
		Range:   timeutils.RangeLastDay,
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.NotEmpty(t, res.JobID)
	assert.Equal(t, 2, res.DeletedCount)
	assert.Zero(t, res.FailedCount)
	assert.Empty(t, res.Errors)
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, res.PerChat)
	assert.Equal(t, []int{1}, gw.deleted["a"])
	assert.Equal(t, []int{10}, gw.deleted["b"])
}

func TestDeletionService_ChunksLargeDeletes(t *testing.T) {
	var msgs []chat.Message
	for i := 1; i <= 7; i++ {
		msgs = append(msgs, msg(i, time.Duration(i)*time.Hour, true))
	}
	gw := &gatewayStub{messages: map[string][]chat.Message{"a": msgs}}
	svc := newDeletionService(t, gw, gateStub{}, config.DeletionConfig{FetchLimit: 100, ChunkSize: 3})

	res, err := svc.Delete(context.Background(), chat.DeletionRequest{ChatIDs: []string{"a"}, Range: timeutils.RangeAll})
	require.NoError(t, err)
	assert.Equal(t, 7, res.DeletedCount)
	assert.Equal(t, 3, gw.chunks)
}

func TestDeletionService_PartialFailure(t *testing.T) {
	gw := &gatewayStub{
		messages:  map[string][]chat.Message{"a": {msg(1, time.Hour, true)}, "b": {msg(2, time.Hour, true), msg(3, time.Hour, true)}},
		deleteErr: map[string]error{"b": errors.New("MESSAGE_DELETE_FORBIDDEN")},
		fetchErr:  map[string]error{"c": errors.New("timeout")},
	}
	svc := newDeletionService(t, gw, gateStub{}, config.DeletionConfig{})

	res, err := svc.Delete(context.Background(), chat.DeletionRequest{ChatIDs: []string{"a", "b", "c"}, Range: timeutils.RangeLastWeek})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.DeletedCount)
	assert.Equal(t, 2, res.FailedCount)
	assert.Len(t, res.Errors, 2)
}

func TestDeletionService_SessionExpiryKeepsPartialResult(t *testing.T) {
	gw := &gatewayStub{
		messages:  map[string][]chat.Message{"a": {msg(1, time.Hour, true)}, "b": {msg(2, time.Hour, true)}},
		deleteErr: map[string]error{"b": chat.ErrSessionExpired},
	}
	svc := newDeletionService(t, gw, gateStub{}, config.DeletionConfig{})

	res, err := svc.Delete(context.Background(), chat.DeletionRequest{ChatIDs: []string{"a", "b"}, Range: timeutils.RangeAll})
	assert.ErrorIs(t, err, chat.ErrSessionExpired)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Errors)
}

func TestDeletionService_Validation(t *testing.T) {
	gw := &gatewayStub{}

	t.Run("auth required", func(t *testing.T) {
		svc := newDeletionService(t, gw, gateStub{err: session.ErrAuthRequired}, config.DeletionConfig{})
		_, err := svc.Delete(context.Background(), chat.DeletionRequest{ChatIDs: []string{"a"}})
		assert.ErrorIs(t, err, session.ErrAuthRequired)
	})

	t.Run("unknown range", func(t *testing.T) {
		svc := newDeletionService(t, gw, gateStub{}, config.DeletionConfig{})
		_, err := svc.Delete(context.Background(), chat.DeletionRequest{ChatIDs: []string{"a"}, Range: "yesterday"})
		assert.Error(t, err)
	})

	t.Run("custom without bounds", func(t *testing.T) {
		svc := newDeletionService(t, gw, gateStub{}, config.DeletionConfig{})
		_, err := svc.Delete(context.Background(), chat.DeletionRequest{ChatIDs: []string{"a"}, Range: timeutils.RangeCustom})
		assert.Error(t, err)
	})

	t.Run("no chats", func(t *testing.T) {
		svc := newDeletionService(t, gw, gateStub{}, config.DeletionConfig{})
		res, err := svc.Delete(context.Background(), chat.DeletionRequest{Range: timeutils.RangeAll})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Zero(t, res.DeletedCount)
	})
}

func TestDeletionService_CustomRange(t *testing.T) {
	gw := &gatewayStub{messages: map[string][]chat.Message{
		"a": {msg(1, 24*time.Hour, true), msg(2, 5*24*time.Hour, true)},
	}}
	svc := newDeletionService(t, gw, gateStub{}, config.DeletionConfig{})

	day := fixedNow.Add(-24 * time.Hour)
	res, err := svc.Delete(context.Background(), chat.DeletionRequest{
		ChatIDs: []string{"a"},
		Range:   timeutils.RangeCustom,
		Custom:  &timeutils.DateRange{Start: day, End: day},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedCount)
	assert.Equal(t, []int{1}, gw.deleted["a"])
}
