package mirror

import (
	"slices"

	"github.com/dastanaron/bookmarktree/internal/models"
)

// Starred is the flat list of starred bookmarks shown beside the tree.
// It is not part of the hierarchy.
type Starred struct {
	items []models.Item
}

// Set replaces the whole list.
func (s *Starred) Set(items []models.Item) {
	s.items = slices.Clone(items)
}

// Add appends it, or replaces the entry with the same id.
func (s *Starred) Add(it models.Item) {
	if i := s.index(it.ID); i >= 0 {
		s.items[i] = it
		return
	}
	s.items = append(s.items, it)
}

// Remove drops id and reports whether it was listed.
func (s *Starred) Remove(id models.ID) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	return true
}

func (s *Starred) Has(id models.ID) bool {
	return s.index(id) >= 0
}

func (s *Starred) Items() []models.Item {
	return slices.Clone(s.items)
}

func (s *Starred) index(id models.ID) int {
	return slices.IndexFunc(s.items, func(it models.Item) bool { return it.ID == id })
}
