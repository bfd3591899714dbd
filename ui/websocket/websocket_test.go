package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-tgclean/pkg/hydration"
)

type feedStub struct {
	mu       sync.Mutex
	ch       chan hydration.Snapshot
	unsubbed bool
}

func (f *feedStub) Subscribe() (int, <-chan hydration.Snapshot) { return 1, f.ch }

func (f *feedStub) Unsubscribe(int) {
	f.mu.Lock()
	f.unsubbed = true
	f.mu.Unlock()
}

func (f *feedStub) Snapshot() hydration.Snapshot { return hydration.Snapshot{} }
func (f *feedStub) Refresh(context.Context) bool { return true }

func TestForwardSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := &feedStub{ch: make(chan hydration.Snapshot, 1)}

	done := make(chan struct{})
	go func() {
		ForwardSnapshots(ctx, feed)
		close(done)
	}()

	feed.ch <- hydration.Snapshot{BatchSeq: 2, TotalBatches: 2, Done: true}
	select {
	case msg := <-Broadcast:
		assert.Equal(t, CodeSnapshot, msg.Code)
		assert.Equal(t, "Chat list complete", msg.Message)
		assert.Equal(t, 2, msg.Result.(hydration.Snapshot).BatchSeq)
	case <-time.After(time.Second):
		t.Fatal("snapshot was not forwarded")
	}

	cancel()
	<-done
	assert.True(t, feed.unsubbed)
}

func TestDecodeRemoteSkipsOwnMessages(t *testing.T) {
	orig := localID
	t.Cleanup(func() { localID = orig })
	localID = "server-a"

	own, _ := json.Marshal(BroadcastMessage{Code: CodeSnapshot, SenderID: "server-a"})
	_, ok := decodeRemote(string(own))
	assert.False(t, ok)

	other, _ := json.Marshal(BroadcastMessage{Code: CodeSnapshot, SenderID: "server-b"})
	msg, ok := decodeRemote(string(other))
	require.True(t, ok)
	assert.Equal(t, CodeSnapshot, msg.Code)

	_, ok = decodeRemote("{")
	assert.False(t, ok)
}

func TestRunHubStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunHub(ctx)
		close(done)
	}()

	Broadcast <- BroadcastMessage{Code: CodeRefreshState}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
}
