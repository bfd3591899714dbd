package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	gotdsession "github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-tgclean/core/config"
	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/domains/kvstore"
	"github.com/AzielCF/az-tgclean/domains/session"
)

const (
	dialogsLimit = 100
	// maxFloodWait is the longest server-requested wait honoured before giving up.
	maxFloodWait = 30 * time.Second
)

// mtprotoRPC is the set of raw calls the gateway makes.
type mtprotoRPC interface {
	Dialogs(ctx context.Context, limit int) (tg.ModifiedMessagesDialogs, error)
	SearchOwn(ctx context.Context, peer tg.InputPeerClass, limit int) (tg.MessagesMessagesClass, error)
	Delete(ctx context.Context, peer tg.InputPeerClass, ids []int) error
	DownloadPhoto(ctx context.Context, peer tg.InputPeerClass, photoID int64) ([]byte, error)
}

type gotdRPC struct {
	raw *tg.Client
	dl  *downloader.Downloader
}

func (r gotdRPC) Dialogs(ctx context.Context, limit int) (tg.ModifiedMessagesDialogs, error) {
	res, err := r.raw.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	modified, ok := res.AsModified()
	if !ok {
		return nil, errors.New("dialogs not modified")
	}
	return modified, nil
}

func (r gotdRPC) SearchOwn(ctx context.Context, peer tg.InputPeerClass, limit int) (tg.MessagesMessagesClass, error) {
	return r.raw.MessagesSearch(ctx, &tg.MessagesSearchRequest{
		Peer:   peer,
		FromID: &tg.InputPeerSelf{},
		Filter: &tg.InputMessagesFilterEmpty{},
		Limit:  limit,
	})
}

func (r gotdRPC) Delete(ctx context.Context, peer tg.InputPeerClass, ids []int) error {
	if ch, ok := peer.(*tg.InputPeerChannel); ok {
		_, err := r.raw.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: ch.ChannelID, AccessHash: ch.AccessHash},
			ID:      ids,
		})
		return err
	}
	_, err := r.raw.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{Revoke: true, ID: ids})
	return err
}

func (r gotdRPC) DownloadPhoto(ctx context.Context, peer tg.InputPeerClass, photoID int64) ([]byte, error) {
	var buf bytes.Buffer
	_, err := r.dl.Download(r.raw, &tg.InputPeerPhotoFileLocation{Peer: peer, PhotoID: photoID}).Stream(ctx, &buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GotdGateway talks MTProto directly with the user's own Telegram session.
// Start must be running before any other method is called.
type GotdGateway struct {
	client  *telegram.Client
	rpc     mtprotoRPC
	storage *SessionStorage
	peers   *peerCache

	maxRetries uint64
	baseDelay  time.Duration

	ready     chan struct{}
	readyOnce sync.Once
}

var (
	_ chat.Gateway        = (*GotdGateway)(nil)
	_ chat.Authenticator  = (*GotdGateway)(nil)
	_ session.Revalidator = (*GotdGateway)(nil)
)

// NewGotdGateway builds the client. The MTProto session is persisted in store, or in
// cfg.SessionFile when set.
func NewGotdGateway(cfg config.TelegramConfig, store kvstore.Store) (*GotdGateway, error) {
	if cfg.AppID <= 0 {
		return nil, errors.New("telegram app id must be > 0")
	}
	if cfg.AppHash == "" {
		return nil, errors.New("telegram app hash is required")
	}

	storage := NewSessionStorage(store)
	var sessionStorage gotdsession.Storage = storage
	if cfg.SessionFile != "" {
		sessionStorage = &gotdsession.FileStorage{Path: cfg.SessionFile}
	}

	client := telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{
		SessionStorage: sessionStorage,
	})

	g := newGotdGateway(gotdRPC{raw: client.API(), dl: downloader.NewDownloader()}, storage, cfg.MaxRetries)
	g.client = client
	return g, nil
}

func newGotdGateway(rpc mtprotoRPC, storage *SessionStorage, maxRetries int) *GotdGateway {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &GotdGateway{
		rpc:        rpc,
		storage:    storage,
		peers:      newPeerCache(),
		maxRetries: uint64(maxRetries),
		baseDelay:  500 * time.Millisecond,
		ready:      make(chan struct{}),
	}
}

// Start connects and blocks until ctx is done.
func (g *GotdGateway) Start(ctx context.Context) error {
	if g.client == nil {
		g.markReady()
		<-ctx.Done()
		return nil
	}
	err := g.client.Run(ctx, func(runCtx context.Context) error {
		logrus.Info("[GATEWAY] MTProto client connected")
		g.markReady()
		<-runCtx.Done()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mtproto client stopped: %w", err)
	}
	return nil
}

func (g *GotdGateway) markReady() {
	g.readyOnce.Do(func() { close(g.ready) })
}

func (g *GotdGateway) waitReady(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mtproto client not connected: %w", ctx.Err())
	}
}

// invoke runs fn with flood-wait and server error retries, then maps auth failures.
func (g *GotdGateway) invoke(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.waitReady(ctx); err != nil {
		return err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = g.baseDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, g.maxRetries), ctx)

	err := backoff.Retry(func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if wait, ok := tgerr.AsFloodWait(err); ok {
			if wait > maxFloodWait {
				return backoff.Permanent(err)
			}
			logrus.Debugf("[GATEWAY] Flood wait of %s", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		switch classifyRPC(err) {
		case KindRateLimited, KindTemporary:
			return err
		}
		return backoff.Permanent(err)
	}, policy)

	return mapRPCError(err)
}

func (g *GotdGateway) GetChatsQuick(ctx context.Context) ([]chat.Summary, error) {
	var page tg.ModifiedMessagesDialogs
	if err := g.invoke(ctx, func(ctx context.Context) error {
		var err error
		page, err = g.rpc.Dialogs(ctx, dialogsLimit)
		return err
	}); err != nil {
		return nil, err
	}

	entities := indexEntities(page.GetUsers(), page.GetChats())

	tops := make(map[string]*tg.Message)
	for _, m := range page.GetMessages() {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		tops[markedID(msg.PeerID)+":"+strconv.Itoa(msg.ID)] = msg
	}

	summaries := make([]chat.Summary, 0, len(page.GetDialogs()))
	for _, d := range page.GetDialogs() {
		dialog, ok := d.(*tg.Dialog)
		if !ok {
			continue
		}
		id := markedID(dialog.Peer)
		e, ok := entities[id]
		if !ok {
			continue
		}
		g.peers.remember(id, e.peer, e.kind)

		s := chat.Summary{
			ID:          id,
			Name:        e.name,
			Type:        e.kind,
			UnreadCount: dialog.UnreadCount,
		}
		if s.Name == "" {
			s.Name = "Unknown chat"
		}
		if e.photoID != 0 {
			s.PhotoID = strconv.FormatInt(e.photoID, 10)
		}
		if msg, ok := tops[id+":"+strconv.Itoa(dialog.TopMessage)]; ok {
			s.LastMessage = msg.Message
			s.Timestamp = time.Unix(int64(msg.Date), 0).UTC()
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (g *GotdGateway) resolve(chatID string) (tg.InputPeerClass, error) {
	peer, _, ok := g.peers.resolve(chatID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", chat.ErrChatNotFound, chatID)
	}
	return peer, nil
}

func messagesCount(res tg.MessagesMessagesClass) int {
	switch r := res.(type) {
	case *tg.MessagesMessages:
		return len(r.Messages)
	case *tg.MessagesMessagesSlice:
		return r.Count
	case *tg.MessagesChannelMessages:
		return r.Count
	case *tg.MessagesMessagesNotModified:
		return r.Count
	}
	return 0
}

func (g *GotdGateway) GetChatMessageCount(ctx context.Context, chatID string, _ bool) (int, error) {
	peer, err := g.resolve(chatID)
	if err != nil {
		return 0, err
	}
	var res tg.MessagesMessagesClass
	if err := g.invoke(ctx, func(ctx context.Context) error {
		res, err = g.rpc.SearchOwn(ctx, peer, 1)
		return err
	}); err != nil {
		return 0, err
	}
	return messagesCount(res), nil
}

func (g *GotdGateway) GetChatProfilePhoto(ctx context.Context, chatID, photoID string) (string, error) {
	if photoID == "" {
		return "", nil
	}
	id, err := strconv.ParseInt(photoID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid photo id %q: %w", photoID, err)
	}
	peer, err := g.resolve(chatID)
	if err != nil {
		return "", err
	}

	var raw []byte
	if err := g.invoke(ctx, func(ctx context.Context) error {
		raw, err = g.rpc.DownloadPhoto(ctx, peer, id)
		return err
	}); err != nil {
		return "", err
	}
	return thumbnailDataURI(raw)
}

func (g *GotdGateway) GetMessages(ctx context.Context, chatID string, limit int) ([]chat.Message, error) {
	peer, err := g.resolve(chatID)
	if err != nil {
		return nil, err
	}
	var res tg.MessagesMessagesClass
	if err := g.invoke(ctx, func(ctx context.Context) error {
		res, err = g.rpc.SearchOwn(ctx, peer, limit)
		return err
	}); err != nil {
		return nil, err
	}

	modified, ok := res.AsModified()
	if !ok {
		return nil, nil
	}
	var out []chat.Message
	for _, m := range modified.GetMessages() {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		out = append(out, chat.Message{
			ID:       msg.ID,
			ChatID:   chatID,
			Text:     msg.Message,
			Date:     time.Unix(int64(msg.Date), 0).UTC(),
			Outgoing: msg.Out,
		})
	}
	return out, nil
}

func (g *GotdGateway) DeleteMessages(ctx context.Context, chatID string, ids []int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	peer, err := g.resolve(chatID)
	if err != nil {
		return 0, err
	}
	if err := g.invoke(ctx, func(ctx context.Context) error {
		return g.rpc.Delete(ctx, peer, ids)
	}); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (g *GotdGateway) SendCode(ctx context.Context, phone string) (chat.SentCode, error) {
	if err := g.waitReady(ctx); err != nil {
		return chat.SentCode{}, err
	}
	if g.client == nil {
		return chat.SentCode{}, errors.New("mtproto client not configured")
	}
	sent, err := g.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return chat.SentCode{}, mapRPCError(err)
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return chat.SentCode{}, fmt.Errorf("unexpected sent code type %T", sent)
	}
	return chat.SentCode{Phone: phone, PhoneCodeHash: code.PhoneCodeHash}, nil
}

func (g *GotdGateway) SignIn(ctx context.Context, req chat.SignInRequest) (chat.Authorization, error) {
	if err := g.waitReady(ctx); err != nil {
		return chat.Authorization{}, err
	}
	if g.client == nil {
		return chat.Authorization{}, errors.New("mtproto client not configured")
	}
	a, err := g.client.Auth().SignIn(ctx, req.Phone, req.Code, req.PhoneCodeHash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return chat.Authorization{}, chat.ErrPasswordRequired
	}
	if err != nil {
		return chat.Authorization{}, mapRPCError(err)
	}
	return g.authorization(ctx, a)
}

func (g *GotdGateway) CheckPassword(ctx context.Context, _ string, password string) (chat.Authorization, error) {
	if err := g.waitReady(ctx); err != nil {
		return chat.Authorization{}, err
	}
	if g.client == nil {
		return chat.Authorization{}, errors.New("mtproto client not configured")
	}
	a, err := g.client.Auth().Password(ctx, password)
	if err != nil {
		return chat.Authorization{}, mapRPCError(err)
	}
	return g.authorization(ctx, a)
}

func (g *GotdGateway) authorization(ctx context.Context, a *tg.AuthAuthorization) (chat.Authorization, error) {
	user, ok := a.User.(*tg.User)
	if !ok {
		return chat.Authorization{}, fmt.Errorf("unexpected user type %T", a.User)
	}
	g.peers.clear()
	return chat.Authorization{
		UserID:        strconv.FormatInt(user.ID, 10),
		SessionString: g.storage.Current(ctx),
		Token:         uuid.NewString(),
	}, nil
}

// Revalidate checks that the connected session is still authorized and issues a
// new local token.
func (g *GotdGateway) Revalidate(ctx context.Context, _ session.Record) (string, error) {
	if err := g.waitReady(ctx); err != nil {
		return "", err
	}
	if g.client == nil {
		return "", errors.New("mtproto client not configured")
	}
	status, err := g.client.Auth().Status(ctx)
	if err != nil {
		return "", mapRPCError(err)
	}
	if !status.Authorized {
		return "", chat.ErrSessionExpired
	}
	return uuid.NewString(), nil
}
