package chatview

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/AzielCF/az-tgclean/domains/chat"
)

// SelectedChat is the minimized form of a chat handed to the next step of a flow.
// Avatar is only set for glyph placeholders; inline images are dropped.
type SelectedChat struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Type    chat.Type `json:"type"`
	PhotoID string    `json:"photoId,omitempty"`
	Avatar  string    `json:"avatar,omitempty"`
}

// Search keeps the items whose name contains query, ignoring case.
// A blank query keeps everything.
func Search(items []chat.Item, query string) []chat.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	return lo.Filter(items, func(it chat.Item, _ int) bool {
		return strings.Contains(strings.ToLower(it.Name), q)
	})
}

// Selection is a set of chat ids. The zero value is not usable; use NewSelection.
type Selection struct {
	ids map[string]struct{}
}

func NewSelection(ids ...string) *Selection {
	s := &Selection{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Toggle flips one chat and reports whether it is now selected.
func (s *Selection) Toggle(id string) bool {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *Selection) IsSelected(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// AllSelected reports whether every visible item is selected.
func (s *Selection) AllSelected(visible []chat.Item) bool {
	if len(visible) == 0 {
		return false
	}
	return lo.EveryBy(visible, func(it chat.Item) bool { return s.IsSelected(it.ID) })
}

// ToggleAll selects every visible item, or deselects them all when they already are.
func (s *Selection) ToggleAll(visible []chat.Item) {
	if s.AllSelected(visible) {
		for _, it := range visible {
			delete(s.ids, it.ID)
		}
		return
	}
	for _, it := range visible {
		s.ids[it.ID] = struct{}{}
	}
}

// SelectAll adds every visible item to the selection.
func (s *Selection) SelectAll(visible []chat.Item) {
	for _, it := range visible {
		s.ids[it.ID] = struct{}{}
	}
}

func (s *Selection) Clear() {
	s.ids = make(map[string]struct{})
}

func (s *Selection) Len() int {
	return len(s.ids)
}

// IDs returns the selected ids in sorted order.
func (s *Selection) IDs() []string {
	ids := lo.Keys(s.ids)
	sort.Strings(ids)
	return ids
}

// Project returns the selected items, in list order, in minimized form.
func Project(items []chat.Item, sel *Selection) []SelectedChat {
	picked := lo.Filter(items, func(it chat.Item, _ int) bool { return sel.IsSelected(it.ID) })
	return lo.Map(picked, func(it chat.Item, _ int) SelectedChat {
		out := SelectedChat{
			ID:      it.ID,
			Name:    it.Name,
			Type:    it.Type,
			PhotoID: it.PhotoID,
		}
		if it.Avatar != "" && !IsPayload(it.Avatar) {
			out.Avatar = it.Avatar
		}
		return out
	})
}
