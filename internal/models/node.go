package models

import (
	"fmt"
	"slices"
)

// Kind distinguishes folders from bookmarks.
type Kind uint8

const (
	KindFolder Kind = iota + 1
	KindBookmark
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindBookmark:
		return "bookmark"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Node is one entry of the mirrored hierarchy.
//
// Folder-only fields: Children, Loaded.
// Bookmark-only fields: URL, Favicon, Tags, Starred.
// ParentID is a lookup back-reference; the parent's Children slice is the
// ownership record.
type Node struct {
	ID       ID
	Kind     Kind
	Title    string
	ParentID ID

	URL     string
	Favicon string
	Tags    []Tag
	Starred bool

	Children []ID
	Loaded   bool
}

// NewFolder returns an unloaded folder node.
func NewFolder(id ID, title string) *Node {
	return &Node{ID: id, Kind: KindFolder, Title: title}
}

// NewBookmark returns a bookmark node. A bookmark must carry a URL.
func NewBookmark(id ID, title, url string) (*Node, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: bookmark %d has no url", ErrInvalidNode, id)
	}
	return &Node{ID: id, Kind: KindBookmark, Title: title, URL: url, Loaded: true}, nil
}

func (n *Node) IsFolder() bool   { return n.Kind == KindFolder }
func (n *Node) IsBookmark() bool { return n.Kind == KindBookmark }

// Validate checks the variant invariants.
func (n *Node) Validate() error {
	switch n.Kind {
	case KindFolder:
		if n.URL != "" || n.Favicon != "" || len(n.Tags) > 0 || n.Starred {
			return fmt.Errorf("%w: folder %d carries bookmark fields", ErrInvalidNode, n.ID)
		}
	case KindBookmark:
		if n.URL == "" {
			return fmt.Errorf("%w: bookmark %d has no url", ErrInvalidNode, n.ID)
		}
		if len(n.Children) > 0 {
			return fmt.Errorf("%w: bookmark %d has children", ErrInvalidNode, n.ID)
		}
	default:
		return fmt.Errorf("%w: node %d has %s", ErrInvalidNode, n.ID, n.Kind)
	}
	return nil
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	c := *n
	c.Tags = CloneTags(n.Tags)
	c.Children = slices.Clone(n.Children)
	return &c
}

// Item converts the node back into its store representation.
func (n *Node) Item() Item {
	it := Item{
		ID:       n.ID,
		ParentID: n.ParentID,
		Title:    n.Title,
	}
	if n.IsFolder() {
		it.Type = ItemTypeFolder
		return it
	}
	it.Type = ItemTypeBookmark
	it.URL = n.URL
	it.Favicon = n.Favicon
	it.Starred = n.Starred
	it.Tags = CloneTags(n.Tags)
	return it
}
