package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gotd/td/tgerr"

	"github.com/AzielCF/az-tgclean/domains/chat"
)

// ErrorKind classifies a remote failure for retry decisions.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindSessionExpired
	KindPasswordRequired
	KindRateLimited
	KindTemporary
	KindPermanent
)

// authErrorTypes are Telegram RPC error types that invalidate the stored session.
var authErrorTypes = []string{
	"AUTH_KEY_UNREGISTERED",
	"AUTH_KEY_INVALID",
	"SESSION_REVOKED",
	"SESSION_EXPIRED",
	"USER_DEACTIVATED",
	"USER_DEACTIVATED_BAN",
}

// classifyStatus maps an HTTP status plus response body of the edge functions.
func classifyStatus(status int, body string) ErrorKind {
	upper := strings.ToUpper(body)
	if strings.Contains(upper, "SESSION_PASSWORD_NEEDED") {
		return KindPasswordRequired
	}
	if isAuthErrorText(upper) || strings.Contains(upper, "SESSION NOT FOUND") {
		return KindSessionExpired
	}
	if strings.Contains(upper, "FLOOD") {
		return KindRateLimited
	}

	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindSessionExpired
	case status == http.StatusTooManyRequests, status == 420:
		return KindRateLimited
	case status >= 500:
		return KindTemporary
	case status >= 400:
		return KindPermanent
	}
	return KindUnknown
}

// classifyRPC maps a gotd RPC error.
func classifyRPC(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if _, ok := tgerr.AsFloodWait(err); ok {
		return KindRateLimited
	}
	rpcErr, ok := tgerr.As(err)
	if !ok {
		return KindUnknown
	}
	if rpcErr.Type == "SESSION_PASSWORD_NEEDED" {
		return KindPasswordRequired
	}
	if tgerr.Is(err, authErrorTypes...) || rpcErr.Code == 401 {
		return KindSessionExpired
	}
	switch {
	case rpcErr.Code == 420 || rpcErr.Code == 429:
		return KindRateLimited
	case rpcErr.Code >= 500:
		return KindTemporary
	case rpcErr.Code >= 400:
		return KindPermanent
	}
	return KindUnknown
}

func isAuthErrorText(upper string) bool {
	for _, t := range authErrorTypes {
		if strings.Contains(upper, t) {
			return true
		}
	}
	return false
}

// mapRPCError converts auth failures into the domain sentinels and leaves the rest untouched.
func mapRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch classifyRPC(err) {
	case KindSessionExpired:
		return errors.Join(chat.ErrSessionExpired, err)
	case KindPasswordRequired:
		return chat.ErrPasswordRequired
	}
	return err
}
