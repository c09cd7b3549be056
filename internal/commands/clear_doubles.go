package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/repository"
)

// ClearDoublesCommand handles removal of duplicate bookmarks
type ClearDoublesCommand struct {
	repo repository.Repository
	out  io.Writer
	log  logrus.FieldLogger
}

func NewClearDoublesCommand(repo repository.Repository, out io.Writer, log logrus.FieldLogger) *ClearDoublesCommand {
	return &ClearDoublesCommand{repo: repo, out: out, log: log}
}

// Execute removes bookmarks whose URL appeared earlier in display order and
// returns how many were deleted.
func (c *ClearDoublesCommand) Execute(ctx context.Context) (int, error) {
	items, err := c.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	seen := make(map[string]models.ID)
	var doubles []models.ID
	for _, it := range items {
		if it.IsFolder() || it.URL == "" {
			continue
		}
		if keep, ok := seen[it.URL]; ok {
			doubles = append(doubles, it.ID)
			c.log.WithFields(logrus.Fields{"node_id": it.ID, "kept_id": keep, "url": it.URL}).Debug("duplicate bookmark")
			continue
		}
		seen[it.URL] = it.ID
	}

	if len(doubles) == 0 {
		fmt.Fprintln(c.out, "No duplicate bookmarks found.")
		return 0, nil
	}

	deleted := 0
	for _, id := range doubles {
		if err := c.repo.Delete(ctx, id); err != nil && !errors.Is(err, models.ErrNotFound) {
			c.log.WithError(err).WithField("node_id", id).Warn("failed to delete duplicate")
			continue
		}
		deleted++
	}
	fmt.Fprintf(c.out, "Deleted %d duplicate bookmark(s).\n", deleted)
	return deleted, nil
}
