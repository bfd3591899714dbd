package chatview

import (
	"strings"
	"unicode/utf8"

	"github.com/AzielCF/az-tgclean/domains/chat"
)

// Placeholder glyphs.
const (
	GlyphChannel = "📢"
	GlyphGroup   = "👥"
	GlyphDefault = "💬"
)

// Placeholder picks what to render for a chat avatar. It is total: every input
// yields a non-empty string.
func Placeholder(payload string, chatType chat.Type, name string) string {
	if payload != "" {
		return payload
	}
	switch chatType {
	case chat.TypeChannel:
		return GlyphChannel
	case chat.TypeGroup, "supergroup":
		return GlyphGroup
	}
	if r, size := utf8.DecodeRuneInString(name); size > 0 && r != utf8.RuneError {
		return strings.ToUpper(string(r))
	}
	return GlyphDefault
}

// IsPayload reports whether avatar is an inline image rather than a glyph.
func IsPayload(avatar string) bool {
	return strings.HasPrefix(avatar, "data:image")
}
