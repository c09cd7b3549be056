package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrParentNotFound  = errors.New("parent not found")
	ErrParentNotFolder = errors.New("parent is not a folder")
	ErrFolderRequired  = errors.New("folder required")
	ErrRootImmutable   = errors.New("root folder cannot be moved or deleted")
	ErrDuplicateID     = errors.New("id already present")
	ErrCycle           = errors.New("move would create a cycle")
	ErrInvalidNode     = errors.New("invalid node")
	ErrUnconfirmed     = errors.New("item is still being saved")
	ErrInvalidMove     = errors.New("invalid move")
	ErrRemote          = errors.New("remote failure")
)

// MoveReason says why a move was rejected.
type MoveReason uint8

const (
	SelfMove MoveReason = iota + 1
	NoOpMove
	IntoOwnSubtree
	DestinationNotFolder
)

func (r MoveReason) String() string {
	switch r {
	case SelfMove:
		return "self move"
	case NoOpMove:
		return "no-op move"
	case IntoOwnSubtree:
		return "move into own subtree"
	case DestinationNotFolder:
		return "destination is not a folder"
	default:
		return fmt.Sprintf("move reason(%d)", uint8(r))
	}
}

// MoveError is returned when a move is rejected before anything is mutated.
type MoveError struct {
	Reason      MoveReason
	Dragged     ID
	Destination ID
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("cannot move %d into %d: %s", e.Dragged, e.Destination, e.Reason)
}

// Is lets errors.Is match ErrInvalidMove.
func (e *MoveError) Is(target error) bool {
	return target == ErrInvalidMove
}

// Silent reports whether the rejection comes from an accidental gesture and
// should not be shown to the user.
func (e *MoveError) Silent() bool {
	switch e.Reason {
	case SelfMove, NoOpMove, IntoOwnSubtree:
		return true
	}
	return false
}

// IsSilent reports whether err is a move rejection that must not be surfaced.
func IsSilent(err error) bool {
	var me *MoveError
	return errors.As(err, &me) && me.Silent()
}

// RemoteError wraps a failure reported by the store collaborator.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrRemote.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}
