package models

import (
	"fmt"
	"strings"
)

// ID identifies a folder or bookmark. Server-assigned ids are positive;
// negative ids belong to nodes created locally and not yet confirmed.
type ID int64

// RootID is the well-known id of the root folder.
const RootID ID = 1

// Temporary reports whether id was allocated locally.
func (id ID) Temporary() bool {
	return id < 0
}

// ItemType represents the type of item (bookmark or folder)
type ItemType string

const (
	ItemTypeBookmark ItemType = "bookmark"
	ItemTypeFolder   ItemType = "folder"
)

// Tag is a label attached to bookmarks. A zero ID means the tag does not
// exist on the store yet and will be created by name.
type Tag struct {
	ID   ID     `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Item is a folder or bookmark as the store reports it.
// Used for child listings, search results and the starred list.
type Item struct {
	Type     ItemType `json:"type"`
	ID       ID       `json:"id"`
	ParentID ID       `json:"parent_id"`
	Title    string   `json:"title"`
	URL      string   `json:"url,omitempty"`
	Favicon  string   `json:"favicon,omitempty"`
	Starred  bool     `json:"starred,omitempty"`
	Tags     []Tag    `json:"tags,omitempty"`
}

// Edit is a partial update of an item. Title is always applied; a nil URL
// or Tags leaves that field unchanged.
type Edit struct {
	Title string  `json:"title"`
	URL   *string `json:"url,omitempty"`
	Tags  *[]Tag  `json:"tags,omitempty"`
}

// IsFolder reports whether the item is a folder.
func (it Item) IsFolder() bool {
	return it.Type == ItemTypeFolder
}

// Node converts a store item into a mirror node.
func (it Item) Node() (*Node, error) {
	switch it.Type {
	case ItemTypeFolder:
		return NewFolder(it.ID, it.Title), nil
	case ItemTypeBookmark:
		n, err := NewBookmark(it.ID, it.Title, it.URL)
		if err != nil {
			return nil, err
		}
		n.Favicon = it.Favicon
		n.Starred = it.Starred
		n.Tags = CloneTags(it.Tags)
		return n, nil
	default:
		return nil, fmt.Errorf("%w: unknown item type %q", ErrInvalidNode, it.Type)
	}
}

// TagNames joins tag names for display.
func TagNames(tags []Tag) string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return strings.Join(names, ", ")
}

// CloneTags returns a copy of tags, nil for an empty set.
func CloneTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]Tag, len(tags))
	copy(out, tags)
	return out
}
