package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dastanaron/bookmarktree/internal/models"
)

// SQLiteRepository implements Repository using SQLite. Folders and
// bookmarks share one id space so an id names exactly one item.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (and creates, if needed) the database at dbPath.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteRepository{db: db}, nil
}

func initSchema(db *sql.DB) error {
	createTables := `
	CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL CHECK (kind IN ('folder', 'bookmark')),
		parent_id INTEGER REFERENCES nodes(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		favicon TEXT NOT NULL DEFAULT '',
		starred INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS bookmark_tags (
		bookmark_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (bookmark_id, tag_id)
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);
	CREATE INDEX IF NOT EXISTS idx_nodes_url ON nodes(url);
	`
	if _, err := db.Exec(createTables); err != nil {
		return err
	}

	// The root folder always exists with the well-known id.
	_, err := db.Exec(`INSERT OR IGNORE INTO nodes(id, kind, parent_id, title) VALUES (?, 'folder', NULL, 'Bookmarks')`,
		models.RootID)
	return err
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

const itemColumns = `id, kind, parent_id, title, url, favicon, starred`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(s rowScanner) (models.Item, error) {
	var (
		it     models.Item
		kind   string
		parent sql.NullInt64
	)
	if err := s.Scan(&it.ID, &kind, &parent, &it.Title, &it.URL, &it.Favicon, &it.Starred); err != nil {
		return it, err
	}
	it.Type = models.ItemType(kind)
	it.ParentID = models.ID(parent.Int64)
	return it, nil
}

func (r *SQLiteRepository) queryItems(ctx context.Context, q querier, query string, args ...any) ([]models.Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, r.attachTags(ctx, q, items)
}

// attachTags fills in the tags of every bookmark in items.
func (r *SQLiteRepository) attachTags(ctx context.Context, q querier, items []models.Item) error {
	index := make(map[models.ID]int)
	var args []any
	for i, it := range items {
		if it.Type == models.ItemTypeBookmark {
			index[it.ID] = i
			args = append(args, it.ID)
		}
	}
	if len(args) == 0 {
		return nil
	}
	rows, err := q.QueryContext(ctx, `
		SELECT bt.bookmark_id, t.id, t.name
		FROM bookmark_tags AS bt
		JOIN tags AS t ON t.id = bt.tag_id
		WHERE bt.bookmark_id IN (`+placeholders(len(args))+`)
		ORDER BY t.name`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id models.ID
			t  models.Tag
		)
		if err := rows.Scan(&id, &t.ID, &t.Name); err != nil {
			return err
		}
		it := &items[index[id]]
		it.Tags = append(it.Tags, t)
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (r *SQLiteRepository) get(ctx context.Context, q querier, id models.ID) (models.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return it, fmt.Errorf("item %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return it, err
	}
	items := []models.Item{it}
	if err := r.attachTags(ctx, q, items); err != nil {
		return it, err
	}
	return items[0], nil
}

// folder checks that id names a folder that can take children.
func (r *SQLiteRepository) folder(ctx context.Context, q querier, id models.ID) error {
	var kind string
	err := q.QueryRowContext(ctx, `SELECT kind FROM nodes WHERE id = ?`, id).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("folder %d: %w", id, models.ErrParentNotFound)
	}
	if err != nil {
		return err
	}
	if models.ItemType(kind) != models.ItemTypeFolder {
		return fmt.Errorf("item %d: %w", id, models.ErrParentNotFolder)
	}
	return nil
}

func nextPosition(ctx context.Context, q querier, parentID models.ID) (int64, error) {
	var pos int64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) + 1 FROM nodes WHERE parent_id = ?`, parentID).Scan(&pos)
	return pos, err
}

func (r *SQLiteRepository) insert(ctx context.Context, q querier, parentID models.ID, it models.Item) (models.ID, error) {
	if err := r.folder(ctx, q, parentID); err != nil {
		return 0, err
	}
	pos, err := nextPosition(ctx, q, parentID)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO nodes(kind, parent_id, title, url, favicon, starred, position) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(it.Type), parentID, it.Title, it.URL, it.Favicon, it.Starred, pos,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return models.ID(id), nil
}

// withTx runs fn in a transaction, committing when fn succeeds.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Children lists folders first, then bookmarks, each in insertion order.
func (r *SQLiteRepository) Children(ctx context.Context, folderID models.ID) ([]models.Item, error) {
	if err := r.folder(ctx, r.db, folderID); err != nil {
		switch {
		case errors.Is(err, models.ErrParentNotFound):
			return nil, fmt.Errorf("folder %d: %w", folderID, models.ErrNotFound)
		case errors.Is(err, models.ErrParentNotFolder):
			return nil, fmt.Errorf("item %d: %w", folderID, models.ErrFolderRequired)
		}
		return nil, err
	}
	return r.queryItems(ctx, r.db, `SELECT `+itemColumns+` FROM nodes
		WHERE parent_id = ?
		ORDER BY kind = 'bookmark', position, id`, folderID)
}

func (r *SQLiteRepository) CreateFolder(ctx context.Context, parentID models.ID, name string) (models.ID, error) {
	return r.insert(ctx, r.db, parentID, models.Item{Type: models.ItemTypeFolder, Title: name})
}

// CreateBookmark stores url with the url itself as title. Title resolution
// is the server's job.
func (r *SQLiteRepository) CreateBookmark(ctx context.Context, parentID models.ID, url string) (*models.Item, error) {
	id, err := r.insert(ctx, r.db, parentID, models.Item{Type: models.ItemTypeBookmark, Title: url, URL: url})
	if err != nil {
		return nil, err
	}
	it, err := r.get(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id models.ID, e models.Edit) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		it, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if it.IsFolder() && (e.URL != nil || e.Tags != nil) {
			return fmt.Errorf("%w: folder %d has no url or tags", models.ErrInvalidNode, id)
		}
		url := it.URL
		if e.URL != nil {
			url = *e.URL
		}
		if _, err := tx.ExecContext(ctx, `UPDATE nodes SET title = ?, url = ? WHERE id = ?`, e.Title, url, id); err != nil {
			return err
		}
		if e.Tags == nil {
			return nil
		}
		return setTags(ctx, tx, id, *e.Tags)
	})
}

// setTags replaces a bookmark's tags. Tags with a zero id are looked up by
// name and created when missing.
func setTags(ctx context.Context, tx *sql.Tx, id models.ID, tags []models.Tag) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM bookmark_tags WHERE bookmark_id = ?`, id); err != nil {
		return err
	}
	for _, t := range tags {
		if t.ID == 0 {
			name := strings.TrimSpace(t.Name)
			if name == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tags(name) VALUES (?)`, name); err != nil {
				return err
			}
			if err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&t.ID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO bookmark_tags(bookmark_id, tag_id) VALUES (?, ?)`, id, t.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id models.ID) error {
	if id == models.RootID {
		return models.ErrRootImmutable
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("item %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Move(ctx context.Context, id, destinationID models.ID) error {
	if id == models.RootID {
		return models.ErrRootImmutable
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.get(ctx, tx, id); err != nil {
			return err
		}
		if err := r.folder(ctx, tx, destinationID); err != nil {
			return err
		}
		var loops int
		err := tx.QueryRowContext(ctx, `
			WITH RECURSIVE ancestors(id, parent_id) AS (
				SELECT id, parent_id FROM nodes WHERE id = ?
				UNION ALL
				SELECT n.id, n.parent_id FROM nodes AS n JOIN ancestors AS a ON n.id = a.parent_id
			)
			SELECT COUNT(*) FROM ancestors WHERE id = ?`, destinationID, id).Scan(&loops)
		if err != nil {
			return err
		}
		if loops > 0 {
			return fmt.Errorf("%w: %d into %d", models.ErrCycle, id, destinationID)
		}
		pos, err := nextPosition(ctx, tx, destinationID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE nodes SET parent_id = ?, position = ? WHERE id = ?`, destinationID, pos, id)
		return err
	})
}

func (r *SQLiteRepository) Star(ctx context.Context, id models.ID, star bool) (*models.Item, error) {
	it, err := r.get(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	if it.IsFolder() {
		return nil, fmt.Errorf("%w: folder %d cannot be starred", models.ErrInvalidNode, id)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE nodes SET starred = ? WHERE id = ?`, star, id); err != nil {
		return nil, err
	}
	if !star {
		return nil, nil
	}
	it.Starred = true
	return &it, nil
}

func (r *SQLiteRepository) Starred(ctx context.Context) ([]models.Item, error) {
	return r.queryItems(ctx, r.db, `SELECT `+itemColumns+` FROM nodes
		WHERE kind = 'bookmark' AND starred <> 0
		ORDER BY title`)
}

func (r *SQLiteRepository) Tags(ctx context.Context) ([]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (r *SQLiteRepository) BookmarkTags(ctx context.Context, id models.ID) ([]models.Tag, error) {
	it, err := r.get(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return it.Tags, nil
}

// Search matches bookmarks by title, URL or tag name.
func (r *SQLiteRepository) Search(ctx context.Context, query string) ([]models.Item, error) {
	like := "%" + query + "%"
	return r.queryItems(ctx, r.db, `SELECT `+itemColumns+` FROM nodes
		WHERE kind = 'bookmark' AND (
			title LIKE ? OR url LIKE ? OR id IN (
				SELECT bt.bookmark_id FROM bookmark_tags AS bt
				JOIN tags AS t ON t.id = bt.tag_id
				WHERE t.name LIKE ?
			)
		)
		ORDER BY title`, like, like, like)
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Item, error) {
	return r.queryItems(ctx, r.db, `
		WITH RECURSIVE tree(id, depth, path) AS (
			SELECT id, 0, '' FROM nodes WHERE id = ?
			UNION ALL
			SELECT n.id, t.depth + 1,
				t.path || printf('%d:%010d:%010d/', n.kind = 'bookmark', n.position, n.id)
			FROM nodes AS n JOIN tree AS t ON n.parent_id = t.id
		)
		SELECT `+prefixed("n.", itemColumns)+` FROM nodes AS n
		JOIN tree ON tree.id = n.id
		WHERE n.id <> ?
		ORDER BY tree.path`, models.RootID, models.RootID)
}

func prefixed(prefix, columns string) string {
	cols := strings.Split(columns, ", ")
	for i, c := range cols {
		cols[i] = prefix + c
	}
	return strings.Join(cols, ", ")
}

func (r *SQLiteRepository) UpsertFolder(ctx context.Context, parentID models.ID, name string) (models.ID, error) {
	var id models.ID
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM nodes WHERE kind = 'folder' AND parent_id = ? AND title = ?`,
		parentID, name,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return r.CreateFolder(ctx, parentID, name)
}

func (r *SQLiteRepository) UpsertBookmark(ctx context.Context, parentID models.ID, it models.Item) (bool, error) {
	created := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var id models.ID
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM nodes WHERE kind = 'bookmark' AND url = ? ORDER BY id LIMIT 1`, it.URL,
		).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			it.Type = models.ItemTypeBookmark
			id, err = r.insert(ctx, tx, parentID, it)
			if err != nil {
				return err
			}
			created = true
		case err != nil:
			return err
		default:
			if err := r.folder(ctx, tx, parentID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE nodes SET title = ?, favicon = ?, parent_id = ? WHERE id = ?`,
				it.Title, it.Favicon, parentID, id); err != nil {
				return err
			}
		}
		if len(it.Tags) == 0 {
			return nil
		}
		return setTags(ctx, tx, id, it.Tags)
	})
	return created, err
}

func (r *SQLiteRepository) SetPageInfo(ctx context.Context, id models.ID, title, favicon string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nodes SET title = ?, favicon = ? WHERE id = ? AND kind = 'bookmark'`, title, favicon, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("bookmark %d: %w", id, models.ErrNotFound)
	}
	return nil
}
