// Package mirror holds the client-side copy of the store's folder/bookmark
// hierarchy.
//
// A Mirror is not safe for concurrent use. It is owned by the event loop and
// every method completes without yielding, so observers never see a
// half-applied change.
package mirror

import (
	"fmt"
	"slices"

	"github.com/dastanaron/bookmarktree/internal/models"
)

// Append inserts at the end of the children sequence.
const Append = -1

// Location is a node's place in the tree.
type Location struct {
	Parent models.ID
	Index  int
}

// Subtree is a detached node together with its descendants, in pre-order,
// and the location it was detached from.
type Subtree struct {
	From  Location
	Nodes []*models.Node
}

// RootID returns the id of the subtree's top node.
func (s *Subtree) RootID() models.ID {
	return s.Nodes[0].ID
}

// Mirror is the in-memory hierarchy plus its id index.
type Mirror struct {
	root     models.ID
	nodes    map[models.ID]*models.Node
	nextTemp models.ID
}

// New returns a mirror holding only the root folder.
func New(rootTitle string) *Mirror {
	return NewWithRoot(models.RootID, rootTitle)
}

// NewWithRoot returns a mirror whose root folder has the given id.
func NewWithRoot(rootID models.ID, rootTitle string) *Mirror {
	root := models.NewFolder(rootID, rootTitle)
	return &Mirror{
		root:     rootID,
		nodes:    map[models.ID]*models.Node{rootID: root},
		nextTemp: -1,
	}
}

func (m *Mirror) Root() models.ID { return m.root }

// Len returns the number of nodes, root included.
func (m *Mirror) Len() int { return len(m.nodes) }

func (m *Mirror) Has(id models.ID) bool {
	_, ok := m.nodes[id]
	return ok
}

// NextTempID allocates a fresh negative id for an unconfirmed node.
func (m *Mirror) NextTempID() models.ID {
	for {
		id := m.nextTemp
		m.nextTemp--
		if _, taken := m.nodes[id]; !taken {
			return id
		}
	}
}

// Get returns a copy of the node.
func (m *Mirror) Get(id models.ID) (models.Node, error) {
	n, err := m.node(id)
	if err != nil {
		return models.Node{}, err
	}
	return *n.Clone(), nil
}

// Children returns copies of the folder's children in display order.
func (m *Mirror) Children(folderID models.ID) ([]models.Node, error) {
	f, err := m.folder(folderID, models.ErrFolderRequired)
	if err != nil {
		return nil, err
	}
	out := make([]models.Node, 0, len(f.Children))
	for _, cid := range f.Children {
		out = append(out, *m.nodes[cid].Clone())
	}
	return out, nil
}

// Position returns the node's parent and its index among the parent's children.
func (m *Mirror) Position(id models.ID) (Location, error) {
	n, err := m.node(id)
	if err != nil {
		return Location{}, err
	}
	if id == m.root {
		return Location{}, models.ErrRootImmutable
	}
	p := m.nodes[n.ParentID]
	return Location{Parent: p.ID, Index: slices.Index(p.Children, id)}, nil
}

// Descendants returns every node below id in pre-order, id excluded.
func (m *Mirror) Descendants(id models.ID) ([]models.ID, error) {
	n, err := m.node(id)
	if err != nil {
		return nil, err
	}
	var out []models.ID
	var walk func(n *models.Node)
	walk = func(n *models.Node) {
		for _, cid := range n.Children {
			out = append(out, cid)
			walk(m.nodes[cid])
		}
	}
	walk(n)
	return out, nil
}

// IsAncestor reports whether ancestor lies on the path from id up to the root.
// A node counts as its own ancestor.
func (m *Mirror) IsAncestor(ancestor, id models.ID) bool {
	for cur, ok := m.nodes[id]; ok; cur, ok = m.nodes[cur.ParentID] {
		if cur.ID == ancestor {
			return true
		}
		if cur.ID == m.root {
			break
		}
	}
	return false
}

// Insert adds a fresh node under parentID at position (Append for the end).
func (m *Mirror) Insert(parentID models.ID, n *models.Node, position int) error {
	p, err := m.folder(parentID, models.ErrParentNotFolder)
	if err != nil {
		return err
	}
	if err := n.Validate(); err != nil {
		return err
	}
	if len(n.Children) > 0 {
		return fmt.Errorf("%w: node %d already has children", models.ErrInvalidNode, n.ID)
	}
	if _, taken := m.nodes[n.ID]; taken {
		return fmt.Errorf("%w: %d", models.ErrDuplicateID, n.ID)
	}
	c := n.Clone()
	c.ParentID = p.ID
	m.nodes[c.ID] = c
	p.Children = insertAt(p.Children, c.ID, position)
	return nil
}

// Remove detaches id and drops its whole subtree from the index. The returned
// Subtree can be handed to Restore to undo the removal.
func (m *Mirror) Remove(id models.ID) (*Subtree, error) {
	if id == m.root {
		return nil, models.ErrRootImmutable
	}
	loc, err := m.Position(id)
	if err != nil {
		return nil, err
	}
	s := &Subtree{From: loc, Nodes: m.capture(id)}
	p := m.nodes[loc.Parent]
	p.Children = deleteAt(p.Children, loc.Index)
	for _, n := range s.Nodes {
		delete(m.nodes, n.ID)
	}
	return s, nil
}

// Restore reinserts a subtree captured by Remove at its original location.
func (m *Mirror) Restore(s *Subtree) error {
	if s == nil || len(s.Nodes) == 0 {
		return fmt.Errorf("%w: empty subtree", models.ErrInvalidNode)
	}
	p, err := m.folder(s.From.Parent, models.ErrParentNotFolder)
	if err != nil {
		return err
	}
	for _, n := range s.Nodes {
		if _, taken := m.nodes[n.ID]; taken {
			return fmt.Errorf("%w: %d", models.ErrDuplicateID, n.ID)
		}
	}
	for _, n := range s.Nodes {
		m.nodes[n.ID] = n.Clone()
	}
	top := m.nodes[s.RootID()]
	top.ParentID = p.ID
	p.Children = insertAt(p.Children, top.ID, s.From.Index)
	return nil
}

// Move reattaches id under newParentID at position in one step and returns
// where the node was before. Only shape is enforced here; move policy lives
// in package movecheck.
func (m *Mirror) Move(id, newParentID models.ID, position int) (Location, error) {
	if id == m.root {
		return Location{}, models.ErrRootImmutable
	}
	from, err := m.Position(id)
	if err != nil {
		return Location{}, err
	}
	np, err := m.folder(newParentID, models.ErrParentNotFolder)
	if err != nil {
		return Location{}, err
	}
	if m.IsAncestor(id, newParentID) {
		return Location{}, fmt.Errorf("%w: %d into %d", models.ErrCycle, id, newParentID)
	}
	op := m.nodes[from.Parent]
	op.Children = deleteAt(op.Children, from.Index)
	np.Children = insertAt(np.Children, id, position)
	m.nodes[id].ParentID = np.ID
	return from, nil
}

// Rename sets the title and returns the previous one.
func (m *Mirror) Rename(id models.ID, title string) (string, error) {
	n, err := m.node(id)
	if err != nil {
		return "", err
	}
	old := n.Title
	n.Title = title
	return old, nil
}

// SetURL replaces a bookmark's URL and returns the previous one.
func (m *Mirror) SetURL(id models.ID, url string) (string, error) {
	n, err := m.bookmark(id)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", fmt.Errorf("%w: bookmark %d has no url", models.ErrInvalidNode, id)
	}
	old := n.URL
	n.URL = url
	return old, nil
}

// SetTags replaces a bookmark's tag set and returns the previous one.
func (m *Mirror) SetTags(id models.ID, tags []models.Tag) ([]models.Tag, error) {
	n, err := m.bookmark(id)
	if err != nil {
		return nil, err
	}
	old := n.Tags
	n.Tags = models.CloneTags(tags)
	return old, nil
}

func (m *Mirror) SetFavicon(id models.ID, favicon string) error {
	n, err := m.bookmark(id)
	if err != nil {
		return err
	}
	n.Favicon = favicon
	return nil
}

// SetStarred flips a bookmark's starred flag and returns the previous value.
func (m *Mirror) SetStarred(id models.ID, starred bool) (bool, error) {
	n, err := m.bookmark(id)
	if err != nil {
		return false, err
	}
	old := n.Starred
	n.Starred = starred
	return old, nil
}

// Rekey renames a node's id in place: the index entry, the parent's
// children entry and the children's back-references all follow.
func (m *Mirror) Rekey(oldID, newID models.ID) error {
	if oldID == m.root {
		return models.ErrRootImmutable
	}
	n, err := m.node(oldID)
	if err != nil {
		return err
	}
	if _, taken := m.nodes[newID]; taken {
		return fmt.Errorf("%w: %d", models.ErrDuplicateID, newID)
	}
	p := m.nodes[n.ParentID]
	p.Children[slices.Index(p.Children, oldID)] = newID
	for _, cid := range n.Children {
		m.nodes[cid].ParentID = newID
	}
	delete(m.nodes, oldID)
	n.ID = newID
	m.nodes[newID] = n
	return nil
}

// ReplaceSubtree discards everything below folderID and installs children
// as its new, unloaded, child list. The folder is marked loaded.
//
// A child id that already lives elsewhere in the mirror is detached from
// there first so every id keeps a single parent.
func (m *Mirror) ReplaceSubtree(folderID models.ID, children []*models.Node) error {
	f, err := m.folder(folderID, models.ErrFolderRequired)
	if err != nil {
		return err
	}
	seen := make(map[models.ID]bool, len(children))
	for _, c := range children {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: %d listed twice under %d", models.ErrDuplicateID, c.ID, folderID)
		}
		seen[c.ID] = true
		if c.ID == m.root || m.IsAncestor(c.ID, folderID) {
			return fmt.Errorf("%w: %d cannot be a child of %d", models.ErrCycle, c.ID, folderID)
		}
	}

	for _, cid := range f.Children {
		for _, n := range m.capture(cid) {
			delete(m.nodes, n.ID)
		}
	}
	f.Children = nil

	for _, c := range children {
		if _, elsewhere := m.nodes[c.ID]; elsewhere {
			// Remove cannot fail here: the id is present and is not the root.
			_, _ = m.Remove(c.ID)
		}
		n := c.Clone()
		n.ParentID = f.ID
		n.Children = nil
		if n.IsFolder() {
			n.Loaded = false
		}
		m.nodes[n.ID] = n
		f.Children = append(f.Children, n.ID)
	}
	f.Loaded = true
	return nil
}

// LoadedFolders lists the folders whose children have been fetched,
// parents before children, starting at the root.
func (m *Mirror) LoadedFolders() []models.ID {
	var out []models.ID
	queue := []models.ID{m.root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n := m.nodes[id]
		if !n.IsFolder() || !n.Loaded {
			continue
		}
		out = append(out, id)
		queue = append(queue, n.Children...)
	}
	return out
}

func (m *Mirror) node(id models.ID) (*models.Node, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrNotFound, id)
	}
	return n, nil
}

// folder resolves id to a folder. notFolder is the error reported when id
// names a bookmark; a missing parent reports ErrParentNotFound.
func (m *Mirror) folder(id models.ID, notFolder error) (*models.Node, error) {
	n, ok := m.nodes[id]
	if !ok {
		if notFolder == models.ErrParentNotFolder {
			return nil, fmt.Errorf("%w: %d", models.ErrParentNotFound, id)
		}
		return nil, fmt.Errorf("%w: %d", models.ErrNotFound, id)
	}
	if !n.IsFolder() {
		return nil, fmt.Errorf("%w: %d", notFolder, id)
	}
	return n, nil
}

func (m *Mirror) bookmark(id models.ID) (*models.Node, error) {
	n, err := m.node(id)
	if err != nil {
		return nil, err
	}
	if !n.IsBookmark() {
		return nil, fmt.Errorf("%w: %d is a folder", models.ErrInvalidNode, id)
	}
	return n, nil
}

// capture clones id and its descendants in pre-order.
func (m *Mirror) capture(id models.ID) []*models.Node {
	var out []*models.Node
	var walk func(id models.ID)
	walk = func(id models.ID) {
		n := m.nodes[id]
		out = append(out, n.Clone())
		for _, cid := range n.Children {
			walk(cid)
		}
	}
	walk(id)
	return out
}

// deleteAt removes ids[i]; an emptied sequence becomes nil so snapshots of
// a restored tree compare equal to the original.
func deleteAt(ids []models.ID, i int) []models.ID {
	ids = slices.Delete(ids, i, i+1)
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func insertAt(ids []models.ID, id models.ID, position int) []models.ID {
	if position < 0 || position > len(ids) {
		position = len(ids)
	}
	return slices.Insert(ids, position, id)
}
