// Package clipboard holds the single cut slot used by cut/paste moves.
package clipboard

import (
	"errors"

	"github.com/dastanaron/bookmarktree/internal/models"
)

// Mover performs a validated move. PerformMove returns nil once the move has
// been accepted, before the store confirms it.
type Mover interface {
	PerformMove(dragged, destination models.ID) error
	Node(id models.ID) (models.Node, error)
}

// Entry is the item waiting to be pasted.
type Entry struct {
	ID       models.ID
	IsFolder bool
}

// State is the one-slot clipboard. Like the mirror it lives on the event
// loop and is not safe for concurrent use.
type State struct {
	mover Mover
	entry Entry
	full  bool
}

func New(m Mover) *State {
	return &State{mover: m}
}

// Cut puts id in the slot, replacing whatever was there.
func (s *State) Cut(id models.ID, isFolder bool) {
	s.entry = Entry{ID: id, IsFolder: isFolder}
	s.full = true
}

// Content returns the slot and whether it is occupied.
func (s *State) Content() (Entry, bool) {
	return s.entry, s.full
}

func (s *State) Empty() bool { return !s.full }

func (s *State) Clear() {
	s.entry = Entry{}
	s.full = false
}

// Paste moves the cut item into destination. With an empty slot it does
// nothing. The slot is emptied as soon as the move is accepted, whatever
// the store later answers; a rejected move leaves it in place unless the
// cut item itself no longer exists.
func (s *State) Paste(destination models.ID) error {
	if !s.full {
		return nil
	}
	if err := s.mover.PerformMove(s.entry.ID, destination); err != nil {
		if errors.Is(err, models.ErrNotFound) && s.gone() {
			s.Clear()
		}
		return err
	}
	s.Clear()
	return nil
}

// gone reports whether the cut item was deleted or dropped by a reload.
func (s *State) gone() bool {
	_, err := s.mover.Node(s.entry.ID)
	return errors.Is(err, models.ErrNotFound)
}
