package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-tgclean/core/config"
	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/domains/session"
)

// HTTPGateway talks to the Telegram edge functions over JSON.
// Each call carries the stored user id; the stored token is sent as bearer when present.
type HTTPGateway struct {
	client     *resty.Client
	anonKey    string
	sessions   session.Store
	maxRetries uint64
	baseDelay  time.Duration
}

var (
	_ chat.Gateway        = (*HTTPGateway)(nil)
	_ chat.Authenticator  = (*HTTPGateway)(nil)
	_ session.Revalidator = (*HTTPGateway)(nil)
)

// NewHTTPGateway builds the client from the telegram config section.
func NewHTTPGateway(cfg config.TelegramConfig, sessions session.Store) *HTTPGateway {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.APIBaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &HTTPGateway{
		client:     c,
		anonKey:    cfg.AnonKey,
		sessions:   sessions,
		maxRetries: uint64(retries),
		baseDelay:  300 * time.Millisecond,
	}
}

// remoteError keeps the status and body of a failed call.
type remoteError struct {
	Path   string
	Status int
	Body   string
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Path, e.Status, e.Body)
}

type userScoped struct {
	UserID string `json:"userId"`
}

// post sends body to path and decodes the response into out, retrying rate limits
// and server errors with exponential backoff.
func (g *HTTPGateway) post(ctx context.Context, path string, body, out any) error {
	token := ""
	if g.sessions != nil {
		if t, err := g.sessions.LoadToken(ctx); err == nil {
			token = t
		}
	}
	if token == "" {
		token = g.anonKey
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = g.baseDelay
	exp.Multiplier = 2
	exp.MaxInterval = 5 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, g.maxRetries), ctx)

	op := func() error {
		resp, err := g.client.R().
			SetContext(ctx).
			SetHeader("apikey", g.anonKey).
			SetAuthToken(token).
			SetBody(body).
			ForceContentType("application/json").
			SetResult(out).
			Post(path)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if isDecodeError(err) {
				return backoff.Permanent(fmt.Errorf("failed to decode %s response: %w", path, err))
			}
			return fmt.Errorf("failed to call %s: %w", path, err)
		}
		if !resp.IsError() {
			return nil
		}

		rerr := &remoteError{Path: path, Status: resp.StatusCode(), Body: resp.String()}
		switch classifyStatus(resp.StatusCode(), resp.String()) {
		case KindSessionExpired:
			return backoff.Permanent(errors.Join(chat.ErrSessionExpired, rerr))
		case KindPasswordRequired:
			return backoff.Permanent(chat.ErrPasswordRequired)
		case KindRateLimited, KindTemporary:
			logrus.Debugf("[GATEWAY] %s failed with %d, retrying", path, resp.StatusCode())
			return rerr
		default:
			return backoff.Permanent(rerr)
		}
	}

	return backoff.Retry(op, policy)
}

func (g *HTTPGateway) userID(ctx context.Context) (string, error) {
	if g.sessions == nil {
		return "", session.ErrAuthRequired
	}
	userID, _, err := g.sessions.LoadSession(ctx)
	if err != nil {
		return "", err
	}
	if userID == "" {
		return "", session.ErrAuthRequired
	}
	return userID, nil
}

// isDecodeError reports whether err comes from a malformed response body, which
// retrying cannot fix.
func isDecodeError(err error) bool {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// flexString accepts a JSON string or number. Numbers keep their exact decimal form.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type remoteChat struct {
	ID          flexString `json:"id"`
	Title       string     `json:"title"`
	Type        string     `json:"type"`
	PhotoID     flexString `json:"photoId"`
	UnreadCount int        `json:"unreadCount"`
	LastMessage *struct {
		ID   int       `json:"id"`
		Text *string   `json:"text"`
		Date time.Time `json:"date"`
	} `json:"lastMessage"`
}

func normalizeType(t string) chat.Type {
	switch strings.ToLower(t) {
	case "channel":
		return chat.TypeChannel
	case "group", "supergroup", "megagroup":
		return chat.TypeGroup
	default:
		return chat.TypePrivate
	}
}

func (rc remoteChat) summary() chat.Summary {
	name := strings.TrimSpace(rc.Title)
	if name == "" {
		name = "Unknown chat"
	}
	s := chat.Summary{
		ID:          string(rc.ID),
		Name:        name,
		Type:        normalizeType(rc.Type),
		UnreadCount: rc.UnreadCount,
		PhotoID:     string(rc.PhotoID),
	}
	if rc.LastMessage != nil {
		if rc.LastMessage.Text != nil {
			s.LastMessage = *rc.LastMessage.Text
		}
		s.Timestamp = rc.LastMessage.Date
	}
	return s
}

func (g *HTTPGateway) GetChatsQuick(ctx context.Context) ([]chat.Summary, error) {
	userID, err := g.userID(ctx)
	if err != nil {
		return nil, err
	}

	var out struct {
		Chats []remoteChat `json:"chats"`
	}
	if err := g.post(ctx, "/telegram-get-chats-quick", userScoped{UserID: userID}, &out); err != nil {
		return nil, err
	}

	summaries := make([]chat.Summary, 0, len(out.Chats))
	for _, rc := range out.Chats {
		summaries = append(summaries, rc.summary())
	}
	return summaries, nil
}

func (g *HTTPGateway) GetChatMessageCount(ctx context.Context, chatID string, isPrivate bool) (int, error) {
	userID, err := g.userID(ctx)
	if err != nil {
		return 0, err
	}

	req := struct {
		UserID    string `json:"userId"`
		ChatID    string `json:"chatId"`
		IsPrivate bool   `json:"isPrivate"`
	}{userID, chatID, isPrivate}

	var out struct {
		Count int `json:"count"`
	}
	if err := g.post(ctx, "/telegram-get-message-count", req, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (g *HTTPGateway) GetChatProfilePhoto(ctx context.Context, chatID, photoID string) (string, error) {
	userID, err := g.userID(ctx)
	if err != nil {
		return "", err
	}

	req := struct {
		UserID  string `json:"userId"`
		ChatID  string `json:"chatId"`
		PhotoID string `json:"photoId,omitempty"`
	}{userID, chatID, photoID}

	var out struct {
		PhotoData *string `json:"photoData"`
	}
	if err := g.post(ctx, "/telegram-get-profile-photo", req, &out); err != nil {
		return "", err
	}
	if out.PhotoData == nil {
		return "", nil
	}
	return *out.PhotoData, nil
}

func (g *HTTPGateway) GetMessages(ctx context.Context, chatID string, limit int) ([]chat.Message, error) {
	userID, err := g.userID(ctx)
	if err != nil {
		return nil, err
	}

	req := struct {
		UserID string `json:"userId"`
		ChatID string `json:"chatId"`
		Limit  int    `json:"limit"`
	}{userID, chatID, limit}

	var out struct {
		Messages []struct {
			ID       int        `json:"id"`
			Text     *string    `json:"text"`
			Date     *time.Time `json:"date"`
			Outgoing bool       `json:"outgoing"`
		} `json:"messages"`
	}
	if err := g.post(ctx, "/telegram-get-messages", req, &out); err != nil {
		return nil, err
	}

	msgs := make([]chat.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := chat.Message{ID: m.ID, ChatID: chatID, Outgoing: m.Outgoing, Date: time.Unix(0, 0).UTC()}
		if m.Text != nil {
			msg.Text = *m.Text
		}
		if m.Date != nil {
			msg.Date = *m.Date
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (g *HTTPGateway) DeleteMessages(ctx context.Context, chatID string, ids []int) (int, error) {
	userID, err := g.userID(ctx)
	if err != nil {
		return 0, err
	}

	req := struct {
		UserID     string `json:"userId"`
		ChatID     string `json:"chatId"`
		MessageIDs []int  `json:"messageIds"`
	}{userID, chatID, ids}

	var out struct {
		Success      bool `json:"success"`
		DeletedCount int  `json:"deletedCount"`
	}
	if err := g.post(ctx, "/telegram-delete-messages", req, &out); err != nil {
		return 0, err
	}
	if !out.Success {
		return out.DeletedCount, fmt.Errorf("remote refused to delete messages in chat %s", chatID)
	}
	return out.DeletedCount, nil
}

func (g *HTTPGateway) SendCode(ctx context.Context, phone string) (chat.SentCode, error) {
	req := struct {
		UserID      string `json:"userId"`
		PhoneNumber string `json:"phoneNumber"`
	}{phone, phone}

	var out struct {
		PhoneCodeHash string `json:"phoneCodeHash"`
	}
	if err := g.post(ctx, "/telegram-send-code", req, &out); err != nil {
		return chat.SentCode{}, err
	}
	return chat.SentCode{Phone: phone, PhoneCodeHash: out.PhoneCodeHash}, nil
}

type remoteAuthorization struct {
	Success       bool   `json:"success"`
	SessionString string `json:"sessionString"`
	Token         string `json:"token"`
	Error         string `json:"error"`
}

// authorization builds the credentials; the session itself lives on the server
// when it does not return one.
func (ra remoteAuthorization) authorization(phone string) (chat.Authorization, error) {
	if !ra.Success {
		if classifyStatus(0, ra.Error) == KindPasswordRequired {
			return chat.Authorization{}, chat.ErrPasswordRequired
		}
		return chat.Authorization{}, fmt.Errorf("sign in rejected: %s", ra.Error)
	}
	sess := ra.SessionString
	if sess == "" {
		sess = "remote:" + phone
	}
	return chat.Authorization{UserID: phone, SessionString: sess, Token: ra.Token}, nil
}

func (g *HTTPGateway) SignIn(ctx context.Context, req chat.SignInRequest) (chat.Authorization, error) {
	body := struct {
		UserID        string `json:"userId"`
		PhoneNumber   string `json:"phoneNumber"`
		PhoneCodeHash string `json:"phoneCodeHash"`
		Code          string `json:"code"`
	}{req.Phone, req.Phone, req.PhoneCodeHash, req.Code}

	var out remoteAuthorization
	if err := g.post(ctx, "/telegram-sign-in", body, &out); err != nil {
		return chat.Authorization{}, err
	}
	return out.authorization(req.Phone)
}

func (g *HTTPGateway) CheckPassword(ctx context.Context, phone, password string) (chat.Authorization, error) {
	body := struct {
		UserID      string `json:"userId"`
		PhoneNumber string `json:"phoneNumber"`
		Password    string `json:"password"`
	}{phone, phone, password}

	var out remoteAuthorization
	if err := g.post(ctx, "/telegram-check-password", body, &out); err != nil {
		return chat.Authorization{}, err
	}
	return out.authorization(phone)
}

// Revalidate asks the server for a fresh token for the stored session.
func (g *HTTPGateway) Revalidate(ctx context.Context, rec session.Record) (string, error) {
	body := struct {
		UserID        string `json:"userId"`
		SessionString string `json:"sessionString"`
	}{rec.UserID, rec.SessionString}

	var out struct {
		Token string `json:"token"`
	}
	if err := g.post(ctx, "/telegram-validate-session", body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}
