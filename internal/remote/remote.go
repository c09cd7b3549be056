// Package remote defines the collaborators the tree engine talks to: the
// authoritative bookmark store and its change-notification channel.
package remote

import (
	"context"

	"github.com/dastanaron/bookmarktree/internal/models"
)

// Operation names, used in logs, models.RemoteError and failure injection.
const (
	OpChildren       = "children"
	OpCreateFolder   = "create_folder"
	OpCreateBookmark = "create_bookmark"
	OpUpdate         = "update"
	OpDelete         = "delete"
	OpMove           = "move"
	OpStar           = "star"
	OpStarred        = "starred"
	OpTags           = "tags"
	OpBookmarkTags   = "bookmark_tags"
	OpSearch         = "search"
)

// Store is the authoritative owner of the hierarchy. Every method blocks
// until the store answers, so callers on the event loop must go through a
// loop.Executor.
type Store interface {
	// Children lists a folder's direct children, folders first.
	Children(ctx context.Context, folderID models.ID) ([]models.Item, error)
	CreateFolder(ctx context.Context, parentID models.ID, name string) (models.ID, error)
	// CreateBookmark returns the stored bookmark, with whatever title and
	// favicon the store resolved for url.
	CreateBookmark(ctx context.Context, parentID models.ID, url string) (*models.Item, error)
	Update(ctx context.Context, id models.ID, e models.Edit) error
	// Delete removes an item and, for a folder, everything below it.
	Delete(ctx context.Context, id models.ID) error
	Move(ctx context.Context, id, destinationID models.ID) error
	// Star sets the starred flag. When star is true the starred bookmark is
	// returned.
	Star(ctx context.Context, id models.ID, star bool) (*models.Item, error)
	Starred(ctx context.Context) ([]models.Item, error)
	Tags(ctx context.Context) ([]models.Tag, error)
	BookmarkTags(ctx context.Context, id models.ID) ([]models.Tag, error)
	Search(ctx context.Context, query string) ([]models.Item, error)
}

// Notifier delivers payload-less "something changed" signals.
type Notifier interface {
	// Listen calls onChange for every signal until ctx is done or the
	// channel breaks. onChange is called from Listen's goroutine.
	Listen(ctx context.Context, onChange func()) error
}
