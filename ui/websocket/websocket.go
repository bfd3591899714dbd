package websocket

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"

	"github.com/AzielCF/az-tgclean/infrastructure/valkey"
	"github.com/AzielCF/az-tgclean/pkg/hydration"
)

// Message codes.
const (
	CodeSnapshot     = "CHATS_SNAPSHOT"
	CodeFetchChats   = "FETCH_CHATS"
	CodeRefreshChats = "REFRESH_CHATS"
	CodeRefreshState = "REFRESH_STATE"
)

type client struct{}

type BroadcastMessage struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Result   any    `json:"result"`
	SenderID string `json:"sender_id,omitempty"`
}

// ChatFeed is the part of the chat service the hub streams from.
type ChatFeed interface {
	Subscribe() (int, <-chan hydration.Snapshot)
	Unsubscribe(id int)
	Snapshot() hydration.Snapshot
	Refresh(ctx context.Context) bool
}

var (
	Clients    = make(map[*websocket.Conn]client)
	Register   = make(chan *websocket.Conn)
	Broadcast  = make(chan BroadcastMessage)
	Unregister = make(chan *websocket.Conn)

	vkClient *valkey.Client
	wsChan   = "tgclean:ws_broadcast"
	localID  string
)

// SetValkeyClient enables cross-instance broadcasts.
func SetValkeyClient(client *valkey.Client, serverID string) {
	vkClient = client
	localID = serverID
	if client != nil {
		wsChan = client.Key("ws_broadcast")
	}
}

func handleRegister(conn *websocket.Conn) {
	Clients[conn] = client{}
	logrus.Debug("[WS] Connection registered")
}

func handleUnregister(conn *websocket.Conn) {
	delete(Clients, conn)
	logrus.Debug("[WS] Connection unregistered")
}

func broadcastToLocal(message BroadcastMessage) {
	marshalMessage, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	for conn := range Clients {
		if err := conn.WriteMessage(websocket.TextMessage, marshalMessage); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			closeConnection(conn)
		}
	}
}

func publishToValkey(ctx context.Context, message BroadcastMessage) {
	if vkClient == nil {
		return
	}
	message.SenderID = localID

	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	cmd := vkClient.Inner().B().Publish().Channel(wsChan).Message(string(data)).Build()
	if err := vkClient.Inner().Do(ctx, cmd).Error(); err != nil {
		logrus.Errorf("[WS] Failed to publish to Valkey: %v", err)
	}
}

// decodeRemote parses a pub/sub payload. ok is false for undecodable payloads and
// for messages this instance published itself.
func decodeRemote(payload string) (BroadcastMessage, bool) {
	var msg BroadcastMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return BroadcastMessage{}, false
	}
	if msg.SenderID == localID {
		return BroadcastMessage{}, false
	}
	return msg, true
}

func startValkeySubscriber(ctx context.Context, remote chan<- BroadcastMessage) {
	logrus.Info("[WS] Starting Valkey Pub/Sub subscriber for distributed events")
	go func() {
		err := vkClient.Inner().Receive(ctx, vkClient.Inner().B().Subscribe().Channel(wsChan).Build(), func(msg valkeylib.PubSubMessage) {
			if m, ok := decodeRemote(msg.Message); ok {
				select {
				case remote <- m:
				case <-ctx.Done():
				}
			}
		})
		if err != nil && ctx.Err() == nil {
			logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
		}
	}()
}

func closeConnection(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
	delete(Clients, conn)
}

// RunHub owns Clients until ctx is done.
func RunHub(ctx context.Context) {
	remote := make(chan BroadcastMessage)
	if vkClient != nil {
		startValkeySubscriber(ctx, remote)
	}

	for {
		select {
		case <-ctx.Done():
			for conn := range Clients {
				closeConnection(conn)
			}
			return

		case conn := <-Register:
			handleRegister(conn)

		case conn := <-Unregister:
			handleUnregister(conn)

		case message := <-remote:
			broadcastToLocal(message)

		case message := <-Broadcast:
			broadcastToLocal(message)
			if vkClient != nil {
				publishToValkey(ctx, message)
			}
		}
	}
}

func snapshotMessage(s hydration.Snapshot) BroadcastMessage {
	msg := "Chat list updated"
	if s.Done {
		msg = "Chat list complete"
	}
	return BroadcastMessage{Code: CodeSnapshot, Message: msg, Result: s}
}

// ForwardSnapshots pushes every published snapshot to the hub until ctx is done.
func ForwardSnapshots(ctx context.Context, feed ChatFeed) {
	id, snapshots := feed.Subscribe()
	defer feed.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-snapshots:
			if !ok {
				return
			}
			select {
			case Broadcast <- snapshotMessage(s):
			case <-ctx.Done():
				return
			}
		}
	}
}

// RegisterRoutes mounts /ws. ctx bounds background refreshes started by clients.
func RegisterRoutes(ctx context.Context, app fiber.Router, feed ChatFeed) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		defer func() {
			Unregister <- conn
			_ = conn.Close()
		}()

		Register <- conn

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Println("read error:", err)
				}
				return
			}

			if messageType != websocket.TextMessage {
				logrus.Println("unsupported message type:", messageType)
				continue
			}

			var messageData BroadcastMessage
			if err := json.Unmarshal(message, &messageData); err != nil {
				logrus.Println("unmarshal error:", err)
				return
			}

			switch messageData.Code {
			case CodeFetchChats:
				// Only the asking client gets the current state.
				data, _ := json.Marshal(snapshotMessage(feed.Snapshot()))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case CodeRefreshChats:
				started := feed.Refresh(ctx)
				Broadcast <- BroadcastMessage{
					Code:    CodeRefreshState,
					Message: "Refresh requested",
					Result:  map[string]bool{"started": started},
				}
			}
		}
	}))
}
