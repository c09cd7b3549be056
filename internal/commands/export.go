package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/parser"
	"github.com/dastanaron/bookmarktree/internal/repository"
)

// Export formats.
const (
	FormatHTML = "html"
	FormatYAML = "yaml"
)

// ExportCommand writes the whole repository to a file.
type ExportCommand struct {
	repo repository.Repository
	out  io.Writer
}

func NewExportCommand(repo repository.Repository, out io.Writer) *ExportCommand {
	return &ExportCommand{repo: repo, out: out}
}

// Execute exports bookmarks to filePath in the given format.
func (c *ExportCommand) Execute(ctx context.Context, filePath, format string) error {
	if format != FormatHTML && format != FormatYAML {
		return fmt.Errorf("unknown export format %q", format)
	}
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("cannot create file: %w", err)
	}
	defer file.Close()

	n, err := c.Export(ctx, file, format)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Exported %d bookmarks to %s\n", n, filePath)
	return file.Close()
}

// Export writes every bookmark and returns how many were written.
func (c *ExportCommand) Export(ctx context.Context, w io.Writer, format string) (int, error) {
	items, err := c.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	root := buildTree(items)

	switch format {
	case FormatHTML:
		err = parser.Write(w, root)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err = enc.Encode(root)
		if err == nil {
			err = enc.Close()
		}
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return 0, err
	}
	return root.Count(), nil
}

// buildTree relies on List returning parents before their children.
func buildTree(items []models.Item) *parser.Folder {
	root := &parser.Folder{}
	folders := map[models.ID]*parser.Folder{models.RootID: root}
	for _, it := range items {
		parent, ok := folders[it.ParentID]
		if !ok {
			continue
		}
		if it.IsFolder() {
			f := &parser.Folder{Name: it.Title}
			parent.Folders = append(parent.Folders, f)
			folders[it.ID] = f
			continue
		}
		b := parser.Bookmark{Title: it.Title, URL: it.URL, Icon: it.Favicon}
		for _, t := range it.Tags {
			b.Tags = append(b.Tags, t.Name)
		}
		parent.Bookmarks = append(parent.Bookmarks, b)
	}
	return root
}
