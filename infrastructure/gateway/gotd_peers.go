package gateway

import (
	"strconv"
	"sync"

	"github.com/gotd/td/tg"

	"github.com/AzielCF/az-tgclean/domains/chat"
)

// channelIDOffset is added to channel ids before negating them, the same marking
// Telegram clients use so user, chat and channel ids never collide.
const channelIDOffset int64 = 1000000000000

func markedID(peer tg.PeerClass) string {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return strconv.FormatInt(p.UserID, 10)
	case *tg.PeerChat:
		return strconv.FormatInt(-p.ChatID, 10)
	case *tg.PeerChannel:
		return strconv.FormatInt(-(channelIDOffset + p.ChannelID), 10)
	}
	return ""
}

// peerCache resolves marked chat ids back to input peers. It is filled every time
// dialogs are listed.
type peerCache struct {
	mu    sync.RWMutex
	peers map[string]tg.InputPeerClass
	types map[string]chat.Type
}

func newPeerCache() *peerCache {
	return &peerCache{
		peers: make(map[string]tg.InputPeerClass),
		types: make(map[string]chat.Type),
	}
}

func (c *peerCache) remember(id string, peer tg.InputPeerClass, t chat.Type) {
	if id == "" || peer == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers[id] = peer
	c.types[id] = t
}

func (c *peerCache) resolve(id string) (tg.InputPeerClass, chat.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	peer, ok := c.peers[id]
	return peer, c.types[id], ok
}

func (c *peerCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers = make(map[string]tg.InputPeerClass)
	c.types = make(map[string]chat.Type)
}

// dialogEntity is what one dialog's peer resolves to.
type dialogEntity struct {
	name    string
	kind    chat.Type
	photoID int64
	peer    tg.InputPeerClass
}

// indexEntities maps the users and chats of a dialogs page by marked id.
func indexEntities(users []tg.UserClass, chats []tg.ChatClass) map[string]dialogEntity {
	out := make(map[string]dialogEntity, len(users)+len(chats))

	for _, u := range users {
		user, ok := u.(*tg.User)
		if !ok {
			continue
		}
		e := dialogEntity{name: userName(user), kind: chat.TypePrivate, peer: user.AsInputPeer()}
		if photo, ok := user.Photo.(*tg.UserProfilePhoto); ok {
			e.photoID = photo.PhotoID
		}
		out[markedID(&tg.PeerUser{UserID: user.ID})] = e
	}

	for _, c := range chats {
		switch ch := c.(type) {
		case *tg.Chat:
			e := dialogEntity{name: ch.Title, kind: chat.TypeGroup, peer: ch.AsInputPeer()}
			if photo, ok := ch.Photo.(*tg.ChatPhoto); ok {
				e.photoID = photo.PhotoID
			}
			out[markedID(&tg.PeerChat{ChatID: ch.ID})] = e
		case *tg.Channel:
			kind := chat.TypeGroup
			if ch.Broadcast {
				kind = chat.TypeChannel
			}
			e := dialogEntity{name: ch.Title, kind: kind, peer: ch.AsInputPeer()}
			if photo, ok := ch.Photo.(*tg.ChatPhoto); ok {
				e.photoID = photo.PhotoID
			}
			out[markedID(&tg.PeerChannel{ChannelID: ch.ID})] = e
		}
	}
	return out
}

func userName(u *tg.User) string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}
