package chatview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AzielCF/az-tgclean/domains/chat"
)

func TestPlaceholder(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		chatType chat.Type
		chatName string
		want     string
	}{
		{"payload wins", "data:image/jpeg;base64,AA", chat.TypeChannel, "News", "data:image/jpeg;base64,AA"},
		{"channel", "", chat.TypeChannel, "News", "📢"},
		{"group", "", chat.TypeGroup, "Family", "👥"},
		{"supergroup", "", "supergroup", "Devs", "👥"},
		{"private initial", "", chat.TypePrivate, "alice", "A"},
		{"private unicode initial", "", chat.TypePrivate, "élodie", "É"},
		{"private emoji name", "", chat.TypePrivate, "🙂 bob", "🙂"},
		{"private empty name", "", chat.TypePrivate, "", "💬"},
		{"unknown type empty name", "", "", "", "💬"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Placeholder(tt.payload, tt.chatType, tt.chatName))
		})
	}
}

func items() []chat.Item {
	return []chat.Item{
		{Summary: chat.Summary{ID: "1", Name: "Alice", Type: chat.TypePrivate, PhotoID: "p1"}, Avatar: "data:image/jpeg;base64,AA"},
		{Summary: chat.Summary{ID: "2", Name: "Book Club", Type: chat.TypeGroup}, Avatar: "👥"},
		{Summary: chat.Summary{ID: "3", Name: "alex news", Type: chat.TypeChannel}},
	}
}

func TestSearch(t *testing.T) {
	all := items()

	assert.Len(t, Search(all, ""), 3)
	assert.Len(t, Search(all, "   "), 3)

	got := Search(all, "AL")
	assert.Equal(t, []string{"1", "3"}, []string{got[0].ID, got[1].ID})

	assert.Empty(t, Search(all, "zzz"))
}

func TestSelection_ToggleAll(t *testing.T) {
	all := items()
	sel := NewSelection()

	assert.True(t, sel.Toggle("2"))
	assert.False(t, sel.Toggle("2"))
	assert.Equal(t, 0, sel.Len())

	visible := Search(all, "al")
	sel.ToggleAll(visible)
	assert.Equal(t, []string{"1", "3"}, sel.IDs())
	assert.True(t, sel.AllSelected(visible))

	sel.ToggleAll(visible)
	assert.Equal(t, 0, sel.Len())
	assert.False(t, sel.AllSelected(nil))

	sel.Toggle("1")
	sel.Clear()
	assert.Equal(t, 0, sel.Len())
}

func TestProject_StripsInlineImages(t *testing.T) {
	sel := NewSelection("1", "2")
	got := Project(items(), sel)

	assert.Equal(t, []SelectedChat{
		{ID: "1", Name: "Alice", Type: chat.TypePrivate, PhotoID: "p1"},
		{ID: "2", Name: "Book Club", Type: chat.TypeGroup, Avatar: "👥"},
	}, got)
}
