package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/parser"
	"github.com/dastanaron/bookmarktree/internal/repository"
)

// ImportCommand merges a bookmark file into the repository. Folders are
// matched by name under their parent and bookmarks by URL, so importing the
// same file twice changes nothing.
type ImportCommand struct {
	repo repository.Repository
	out  io.Writer
	log  logrus.FieldLogger
}

// ImportResult counts what an import did.
type ImportResult struct {
	Created int
	Updated int
	Failed  int
}

func NewImportCommand(repo repository.Repository, out io.Writer, log logrus.FieldLogger) *ImportCommand {
	return &ImportCommand{repo: repo, out: out, log: log}
}

// Execute imports bookmarks from an HTML file
func (c *ImportCommand) Execute(ctx context.Context, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("cannot open file: %w", err)
	}
	defer file.Close()

	res, err := c.Import(ctx, file)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Imported %d bookmarks (%d updated, %d failed).\n", res.Created, res.Updated, res.Failed)
	return nil
}

func (c *ImportCommand) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	root, err := parser.Parse(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to parse HTML: %w", err)
	}
	var res ImportResult
	if err := c.importFolder(ctx, models.RootID, root, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (c *ImportCommand) importFolder(ctx context.Context, parentID models.ID, f *parser.Folder, res *ImportResult) error {
	for _, b := range f.Bookmarks {
		tags := make([]models.Tag, 0, len(b.Tags))
		for _, name := range b.Tags {
			tags = append(tags, models.Tag{Name: name})
		}
		created, err := c.repo.UpsertBookmark(ctx, parentID, models.Item{
			Type:    models.ItemTypeBookmark,
			Title:   b.Title,
			URL:     b.URL,
			Favicon: b.Icon,
			Tags:    tags,
		})
		switch {
		case err != nil:
			c.log.WithError(err).WithField("url", b.URL).Warn("failed to import bookmark")
			res.Failed++
		case created:
			res.Created++
		default:
			res.Updated++
		}
	}
	for _, sub := range f.Folders {
		id, err := c.repo.UpsertFolder(ctx, parentID, sub.Name)
		if err != nil {
			return fmt.Errorf("importing folder %q: %w", sub.Name, err)
		}
		if err := c.importFolder(ctx, id, sub, res); err != nil {
			return err
		}
	}
	return nil
}
