package gateway

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"

	"github.com/AzielCF/az-tgclean/domains/chat"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   ErrorKind
	}{
		{200, "", KindUnknown},
		{401, "", KindSessionExpired},
		{403, "", KindSessionExpired},
		{404, `{"error":"Session not found"}`, KindSessionExpired},
		{404, `{"error":"chat missing"}`, KindPermanent},
		{400, `{"error":"AUTH_KEY_UNREGISTERED"}`, KindSessionExpired},
		{400, `{"error":"SESSION_PASSWORD_NEEDED"}`, KindPasswordRequired},
		{400, `{"error":"FLOOD_WAIT_12"}`, KindRateLimited},
		{429, "", KindRateLimited},
		{500, "", KindTemporary},
		{503, "", KindTemporary},
		{422, "", KindPermanent},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d %s", tt.status, tt.body), func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStatus(tt.status, tt.body))
		})
	}
}

func TestClassifyRPC(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
		{"flood", tgerr.New(420, "FLOOD_WAIT_5"), KindRateLimited},
		{"password", tgerr.New(401, "SESSION_PASSWORD_NEEDED"), KindPasswordRequired},
		{"revoked", tgerr.New(401, "SESSION_REVOKED"), KindSessionExpired},
		{"wrapped auth", fmt.Errorf("call: %w", tgerr.New(401, "AUTH_KEY_UNREGISTERED")), KindSessionExpired},
		{"internal", tgerr.New(500, "INTERNAL"), KindTemporary},
		{"bad peer", tgerr.New(400, "PEER_ID_INVALID"), KindPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyRPC(tt.err))
		})
	}
}

func TestMapRPCError(t *testing.T) {
	assert.NoError(t, mapRPCError(nil))

	expired := mapRPCError(tgerr.New(401, "AUTH_KEY_UNREGISTERED"))
	assert.ErrorIs(t, expired, chat.ErrSessionExpired)
	assert.True(t, tgerr.Is(expired, "AUTH_KEY_UNREGISTERED"))

	assert.ErrorIs(t, mapRPCError(tgerr.New(401, "SESSION_PASSWORD_NEEDED")), chat.ErrPasswordRequired)

	other := errors.New("other")
	assert.Same(t, other, mapRPCError(other))
}
