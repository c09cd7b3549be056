package remote

import (
	"errors"

	"github.com/dastanaron/bookmarktree/internal/models"
)

// Error codes carried in HTTP problem bodies so the client can restore the
// sentinel error the server saw.
const (
	CodeNotFound        = "not_found"
	CodeParentNotFound  = "parent_not_found"
	CodeParentNotFolder = "parent_not_folder"
	CodeFolderRequired  = "folder_required"
	CodeRootImmutable   = "root_immutable"
	CodeCycle           = "cycle"
	CodeInvalidMove     = "invalid_move"
	CodeInvalid         = "invalid"
)

var codes = []struct {
	err  error
	code string
}{
	{models.ErrNotFound, CodeNotFound},
	{models.ErrParentNotFound, CodeParentNotFound},
	{models.ErrParentNotFolder, CodeParentNotFolder},
	{models.ErrFolderRequired, CodeFolderRequired},
	{models.ErrRootImmutable, CodeRootImmutable},
	{models.ErrCycle, CodeCycle},
	{models.ErrInvalidMove, CodeInvalidMove},
	{models.ErrInvalidNode, CodeInvalid},
}

// ErrorCode returns the code for err, or "" when err matches no sentinel.
func ErrorCode(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

// CodeError returns the sentinel error a code stands for, or nil.
func CodeError(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
