// Package movecheck decides whether a drag-and-drop or cut/paste move is legal.
package movecheck

import (
	"slices"

	"github.com/dastanaron/bookmarktree/internal/models"
)

// Lookup is the read access CanMove needs from the tree.
type Lookup interface {
	Get(id models.ID) (models.Node, error)
	Descendants(id models.ID) ([]models.ID, error)
}

// CanMove returns nil when dragged may be dropped into destination, a
// *models.MoveError naming the first failing rule otherwise, or the lookup
// error when either id is unknown.
//
// Rules, in reporting order: self move, no-op move (already there), move into
// own subtree, destination not a folder.
func CanMove(t Lookup, dragged, destination models.ID) error {
	d, err := t.Get(dragged)
	if err != nil {
		return err
	}
	dst, err := t.Get(destination)
	if err != nil {
		return err
	}

	reject := func(r models.MoveReason) error {
		return &models.MoveError{Reason: r, Dragged: dragged, Destination: destination}
	}

	if dragged == destination {
		return reject(models.SelfMove)
	}
	if d.ParentID == destination {
		return reject(models.NoOpMove)
	}
	if d.IsFolder() {
		below, err := t.Descendants(dragged)
		if err != nil {
			return err
		}
		if slices.Contains(below, destination) {
			return reject(models.IntoOwnSubtree)
		}
	}
	if !dst.IsFolder() {
		return reject(models.DestinationNotFolder)
	}
	return nil
}
