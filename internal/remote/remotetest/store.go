// Package remotetest provides an in-memory remote.Store for tests.
package remotetest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/remote"
)

type entry struct {
	item     models.Item
	children []models.ID
}

// Store keeps a hierarchy in memory. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	nodes   map[models.ID]*entry
	tags    []models.Tag
	nextID  models.ID
	failing map[string]error
	calls   []string
}

var _ remote.Store = (*Store)(nil)

// NewStore returns a store holding only the root folder. Ids handed out
// start at 100.
func NewStore() *Store {
	root := &entry{item: models.Item{Type: models.ItemTypeFolder, ID: models.RootID, Title: "Bookmarks"}}
	return &Store{
		nodes:   map[models.ID]*entry{models.RootID: root},
		nextID:  100,
		failing: make(map[string]error),
	}
}

// FailOn makes every later call to op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failing, op)
		return
	}
	s.failing[op] = err
}

// Calls returns the operations invoked so far, in order.
func (s *Store) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CallCount counts invocations of op.
func (s *Store) CallCount(op string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

// AddFolder seeds a folder without recording a call.
func (s *Store) AddFolder(parentID models.ID, title string) models.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.add(parentID, models.Item{Type: models.ItemTypeFolder, Title: title})
	if err != nil {
		panic(err)
	}
	return id
}

// AddBookmark seeds a bookmark without recording a call.
func (s *Store) AddBookmark(parentID models.ID, title, url string) models.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.add(parentID, models.Item{Type: models.ItemTypeBookmark, Title: title, URL: url})
	if err != nil {
		panic(err)
	}
	return id
}

// Item returns the stored item.
func (s *Store) Item(id models.ID) (models.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.nodes[id]
	if !ok {
		return models.Item{}, false
	}
	return e.item, true
}

func (s *Store) Children(ctx context.Context, folderID models.ID) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(remote.OpChildren); err != nil {
		return nil, err
	}
	f, err := s.folder(folderID)
	if err != nil {
		return nil, err
	}
	var folders, bookmarks []models.Item
	for _, id := range f.children {
		it := s.nodes[id].item
		if it.IsFolder() {
			folders = append(folders, it)
		} else {
			bookmarks = append(bookmarks, it)
		}
	}
	return append(folders, bookmarks...), nil
}

func (s *Store) CreateFolder(ctx context.Context, parentID models.ID, name string) (models.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(remote.OpCreateFolder); err != nil {
		return 0, err
	}
	return s.add(parentID, models.Item{Type: models.ItemTypeFolder, Title: name})
}

func (s *Store) CreateBookmark(ctx context.Context, parentID models.ID, url string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(remote.OpCreateBookmark); err != nil {
		return nil, err
	}
	id, err := s.add(parentID, models.Item{
		Type:    models.ItemTypeBookmark,
		Title:   "Title of " + url,
		URL:     url,
		Favicon: url + "/favicon.ico",
	})
	if err != nil {
		return nil, err
	}
	it := s.nodes[id].item
	return &it, nil
}

func (s *Store) Update(ctx context.Context, id models.ID, e models.Edit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(remote.OpUpdate); err != nil {
		return err
	}
	n, ok := s.nodes[id]
	if !ok {
		return models.ErrNotFound
	}
	n.item.Title = e.Title
	if e.URL != nil {
		n.item.URL = *e.URL
	}
	if e.Tags != nil {
		tags := make([]models.Tag, 0, len(*e.Tags))
		for _, t := range *e.Tags {
			tags = append(tags, s.tag(t))
		}
		n.item.Tags = tags
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id models.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(remote.OpDelete); err != nil {
		return err
	}
	if id == models.RootID {
		return models.ErrRootImmutable
	}
	n, ok := s.nodes[id]
	if !ok {
		return models.ErrNotFound
	}
	p := s.nodes[n.item.ParentID]
	p.children = slices.DeleteFunc(p.children, func(c models.ID) bool { return c == id })
	s.drop(id)
	return nil
}

func (s *Store) Move(ctx context.Context, id, destinationID models.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(remote.OpMove); err != nil {
		return err
	}
	if id == models.RootID {
		return models.ErrRootImmutable
	}
	n, ok := s.nodes[id]
	if !ok {
		return models.ErrNotFound
	}
	dst, err := s.folder(destinationID)
	if err != nil {
		return err
	}
	for a := destinationID; a != 0; a = s.nodes[a].item.ParentID {
		if a == id {
			return models.ErrCycle
		}
	}
	p := s.nodes[n.item.ParentID]
	p.children = slices.DeleteFunc(p.children, func(c models.ID) bool { return c == id })
	dst.children = append(dst.children, id)
	n.item.ParentID = destinationID
	return nil
}

func (s *Store) Star(ctx context.Context, id models.ID, star bool) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(remote.OpStar); err != nil {
		return nil, err
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if n.item.IsFolder() {
		return nil, models.ErrInvalidNode
	}
	n.item.Starred = star
	if !star {
		return nil, nil
	}
	it := n.item
	return &it, nil
}

func (s *Store) Starred(ctx context.Context) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(remote.OpStarred); err != nil {
		return nil, err
	}
	return s.filter(func(it models.Item) bool { return it.Starred }), nil
}

func (s *Store) Tags(ctx context.Context) ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(remote.OpTags); err != nil {
		return nil, err
	}
	return slices.Clone(s.tags), nil
}

func (s *Store) BookmarkTags(ctx context.Context, id models.ID) ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(remote.OpBookmarkTags); err != nil {
		return nil, err
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return models.CloneTags(n.item.Tags), nil
}

func (s *Store) Search(ctx context.Context, query string) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(remote.OpSearch); err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	return s.filter(func(it models.Item) bool {
		if it.IsFolder() {
			return false
		}
		if strings.Contains(strings.ToLower(it.Title), q) || strings.Contains(strings.ToLower(it.URL), q) {
			return true
		}
		return slices.ContainsFunc(it.Tags, func(t models.Tag) bool { return strings.EqualFold(t.Name, query) })
	}), nil
}

func (s *Store) enter(op string) error {
	s.calls = append(s.calls, op)
	return s.failing[op]
}

func (s *Store) add(parentID models.ID, it models.Item) (models.ID, error) {
	p, err := s.folder(parentID)
	if err != nil {
		return 0, err
	}
	it.ID = s.nextID
	it.ParentID = parentID
	s.nextID++
	s.nodes[it.ID] = &entry{item: it}
	p.children = append(p.children, it.ID)
	return it.ID, nil
}

func (s *Store) folder(id models.ID) (*entry, error) {
	f, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("folder %d: %w", id, models.ErrNotFound)
	}
	if !f.item.IsFolder() {
		return nil, fmt.Errorf("item %d: %w", id, models.ErrParentNotFolder)
	}
	return f, nil
}

func (s *Store) drop(id models.ID) {
	for _, c := range s.nodes[id].children {
		s.drop(c)
	}
	delete(s.nodes, id)
}

func (s *Store) tag(t models.Tag) models.Tag {
	for _, known := range s.tags {
		if known.ID == t.ID || (t.ID == 0 && known.Name == t.Name) {
			return known
		}
	}
	t.ID = models.ID(len(s.tags) + 1)
	s.tags = append(s.tags, t)
	return t
}

func (s *Store) filter(keep func(models.Item) bool) []models.Item {
	var out []models.Item
	for _, e := range s.nodes {
		if keep(e.item) {
			out = append(out, e.item)
		}
	}
	slices.SortFunc(out, func(a, b models.Item) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
