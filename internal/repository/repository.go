package repository

import (
	"context"

	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/remote"
)

// Repository is the authoritative bookmark store plus the batch operations
// used by import, export and clear-doubles.
type Repository interface {
	remote.Store

	// List returns every item except the root, parents before children and
	// siblings in display order.
	List(ctx context.Context) ([]models.Item, error)
	// UpsertFolder returns the folder called name under parentID, creating
	// it when missing.
	UpsertFolder(ctx context.Context, parentID models.ID, name string) (models.ID, error)
	// UpsertBookmark creates a bookmark if its URL doesn't exist, otherwise
	// updates the existing one. Returns true if created, false if updated.
	UpsertBookmark(ctx context.Context, parentID models.ID, it models.Item) (bool, error)
	// SetPageInfo stores a resolved title and favicon.
	SetPageInfo(ctx context.Context, id models.ID, title, favicon string) error
	Close() error
}
