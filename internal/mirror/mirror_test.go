package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/bookmarktree/internal/models"
)

// sample builds root(1) -> [A(2) -> [B(3), bk(10)], bk(11)].
func sample(t *testing.T) *Mirror {
	t.Helper()
	m := New("Bookmarks")
	require.NoError(t, m.Insert(1, models.NewFolder(2, "A"), Append))
	require.NoError(t, m.Insert(2, models.NewFolder(3, "B"), Append))
	require.NoError(t, m.Insert(2, bookmark(t, 10, "https://go.dev/"), Append))
	require.NoError(t, m.Insert(1, bookmark(t, 11, "https://pkg.go.dev/"), Append))
	require.NoError(t, m.Check())
	return m
}

func bookmark(t *testing.T, id models.ID, url string) *models.Node {
	t.Helper()
	n, err := models.NewBookmark(id, url, url)
	require.NoError(t, err)
	return n
}

func childIDs(t *testing.T, m *Mirror, id models.ID) []models.ID {
	t.Helper()
	n, err := m.Get(id)
	require.NoError(t, err)
	return n.Children
}

func TestGetAndChildren(t *testing.T) {
	m := sample(t)

	n, err := m.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "A", n.Title)
	assert.Equal(t, models.ID(1), n.ParentID)

	kids, err := m.Children(2)
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, models.ID(3), kids[0].ID)
	assert.Equal(t, models.ID(10), kids[1].ID)

	_, err = m.Get(99)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = m.Children(10)
	assert.ErrorIs(t, err, models.ErrFolderRequired)
	_, err = m.Children(99)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	m := sample(t)
	n, err := m.Get(2)
	require.NoError(t, err)
	n.Children[0] = 42
	n.Title = "changed"
	assert.Equal(t, []models.ID{3, 10}, childIDs(t, m, 2))
	got, _ := m.Get(2)
	assert.Equal(t, "A", got.Title)
}

func TestInsertErrors(t *testing.T) {
	m := sample(t)
	assert.ErrorIs(t, m.Insert(99, models.NewFolder(20, "x"), Append), models.ErrParentNotFound)
	assert.ErrorIs(t, m.Insert(10, models.NewFolder(20, "x"), Append), models.ErrParentNotFolder)
	assert.ErrorIs(t, m.Insert(1, models.NewFolder(2, "dup"), Append), models.ErrDuplicateID)
	assert.ErrorIs(t, m.Insert(1, &models.Node{ID: 20, Kind: models.KindBookmark}, Append), models.ErrInvalidNode)
	require.NoError(t, m.Check())
}

func TestInsertAtPosition(t *testing.T) {
	m := sample(t)
	require.NoError(t, m.Insert(2, models.NewFolder(4, "first"), 0))
	require.NoError(t, m.Insert(2, models.NewFolder(5, "middle"), 2))
	require.NoError(t, m.Insert(2, models.NewFolder(6, "far"), 100))
	assert.Equal(t, []models.ID{4, 3, 5, 10, 6}, childIDs(t, m, 2))
	require.NoError(t, m.Check())
}

func TestRemoveAndRestore(t *testing.T) {
	m := sample(t)
	before := m.Snapshot()

	s, err := m.Remove(2)
	require.NoError(t, err)
	assert.Equal(t, Location{Parent: 1, Index: 0}, s.From)
	assert.Len(t, s.Nodes, 3)
	assert.False(t, m.Has(2))
	assert.False(t, m.Has(3))
	assert.False(t, m.Has(10))
	assert.Equal(t, 2, m.Len())
	require.NoError(t, m.Check())

	require.NoError(t, m.Restore(s))
	require.NoError(t, m.Check())
	assert.Equal(t, before, m.Snapshot())
}

func TestRemoveErrors(t *testing.T) {
	m := sample(t)
	_, err := m.Remove(1)
	assert.ErrorIs(t, err, models.ErrRootImmutable)
	_, err = m.Remove(99)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRestoreRefusesDuplicates(t *testing.T) {
	m := sample(t)
	s, err := m.Remove(3)
	require.NoError(t, err)
	require.NoError(t, m.Insert(1, models.NewFolder(3, "again"), Append))
	assert.ErrorIs(t, m.Restore(s), models.ErrDuplicateID)
	require.NoError(t, m.Check())
}

func TestMoveAndReverse(t *testing.T) {
	m := sample(t)
	before := m.Snapshot()

	from, err := m.Move(10, 3, Append)
	require.NoError(t, err)
	assert.Equal(t, Location{Parent: 2, Index: 1}, from)
	assert.Equal(t, []models.ID{10}, childIDs(t, m, 3))
	n, _ := m.Get(10)
	assert.Equal(t, models.ID(3), n.ParentID)
	require.NoError(t, m.Check())

	_, err = m.Move(10, from.Parent, from.Index)
	require.NoError(t, err)
	assert.Equal(t, before, m.Snapshot())
}

func TestMoveWithinSameParent(t *testing.T) {
	m := sample(t)
	_, err := m.Move(10, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []models.ID{10, 3}, childIDs(t, m, 2))
	require.NoError(t, m.Check())
}

func TestMoveShapeErrors(t *testing.T) {
	m := sample(t)
	_, err := m.Move(1, 2, Append)
	assert.ErrorIs(t, err, models.ErrRootImmutable)
	_, err = m.Move(2, 3, Append)
	assert.ErrorIs(t, err, models.ErrCycle)
	_, err = m.Move(2, 2, Append)
	assert.ErrorIs(t, err, models.ErrCycle)
	_, err = m.Move(3, 10, Append)
	assert.ErrorIs(t, err, models.ErrParentNotFolder)
	_, err = m.Move(3, 99, Append)
	assert.ErrorIs(t, err, models.ErrParentNotFound)
	_, err = m.Move(99, 1, Append)
	assert.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, m.Check())
}

func TestFieldMutations(t *testing.T) {
	m := sample(t)

	old, err := m.Rename(2, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "A", old)

	oldURL, err := m.SetURL(10, "https://go.dev/doc/")
	require.NoError(t, err)
	assert.Equal(t, "https://go.dev/", oldURL)
	_, err = m.SetURL(10, "")
	assert.ErrorIs(t, err, models.ErrInvalidNode)
	_, err = m.SetURL(2, "https://x")
	assert.ErrorIs(t, err, models.ErrInvalidNode)

	tags := []models.Tag{{ID: 1, Name: "go"}}
	oldTags, err := m.SetTags(10, tags)
	require.NoError(t, err)
	assert.Nil(t, oldTags)
	n, _ := m.Get(10)
	assert.Equal(t, tags, n.Tags)

	prev, err := m.SetStarred(10, true)
	require.NoError(t, err)
	assert.False(t, prev)

	_, err = m.Rename(99, "x")
	assert.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, m.Check())
}

func TestRekey(t *testing.T) {
	m := sample(t)
	tmp := m.NextTempID()
	require.NoError(t, m.Insert(2, models.NewFolder(tmp, "pending"), 1))
	require.NoError(t, m.Insert(tmp, bookmark(t, m.NextTempID(), "https://x.org/"), Append))

	require.NoError(t, m.Rekey(tmp, 40))
	assert.False(t, m.Has(tmp))
	assert.True(t, m.Has(40))
	assert.Equal(t, []models.ID{3, 40, 10}, childIDs(t, m, 2))
	for _, c := range childIDs(t, m, 40) {
		n, _ := m.Get(c)
		assert.Equal(t, models.ID(40), n.ParentID)
	}
	require.NoError(t, m.Check())

	assert.ErrorIs(t, m.Rekey(40, 3), models.ErrDuplicateID)
	assert.ErrorIs(t, m.Rekey(tmp, 41), models.ErrNotFound)
	assert.ErrorIs(t, m.Rekey(1, 41), models.ErrRootImmutable)
}

func TestNextTempIDSkipsTakenIDs(t *testing.T) {
	m := New("root")
	require.NoError(t, m.Insert(1, models.NewFolder(-1, "taken"), Append))
	assert.Equal(t, models.ID(-2), m.NextTempID())
	assert.Equal(t, models.ID(-3), m.NextTempID())
}

func TestReplaceSubtree(t *testing.T) {
	m := sample(t)
	b := bookmark(t, 12, "https://example.com/")
	require.NoError(t, m.ReplaceSubtree(2, []*models.Node{models.NewFolder(3, "B"), b}))

	assert.Equal(t, []models.ID{3, 12}, childIDs(t, m, 2))
	assert.False(t, m.Has(10))
	a, _ := m.Get(2)
	assert.True(t, a.Loaded)
	f, _ := m.Get(3)
	assert.False(t, f.Loaded)
	require.NoError(t, m.Check())
}

func TestReplaceSubtreeDetachesMovedNodes(t *testing.T) {
	m := sample(t)
	// 11 moved from root into A on the server; A reloads before root does.
	require.NoError(t, m.ReplaceSubtree(2, []*models.Node{bookmark(t, 11, "https://pkg.go.dev/")}))
	assert.Equal(t, []models.ID{2}, childIDs(t, m, 1))
	assert.Equal(t, []models.ID{11}, childIDs(t, m, 2))
	require.NoError(t, m.Check())
}

func TestReplaceSubtreeRejectsBadInput(t *testing.T) {
	m := sample(t)
	before := m.Snapshot()

	assert.ErrorIs(t, m.ReplaceSubtree(10, nil), models.ErrFolderRequired)
	assert.ErrorIs(t, m.ReplaceSubtree(3, []*models.Node{models.NewFolder(2, "A")}), models.ErrCycle)
	assert.ErrorIs(t, m.ReplaceSubtree(3, []*models.Node{models.NewFolder(1, "root")}), models.ErrCycle)
	assert.ErrorIs(t, m.ReplaceSubtree(3, []*models.Node{models.NewFolder(7, "x"), models.NewFolder(7, "y")}), models.ErrDuplicateID)
	assert.Equal(t, before, m.Snapshot())
}

func TestReplaceSubtreeDropsPendingNodes(t *testing.T) {
	m := sample(t)
	tmp := m.NextTempID()
	require.NoError(t, m.Insert(3, bookmark(t, tmp, "https://pending.example/"), Append))
	require.NoError(t, m.ReplaceSubtree(3, nil))
	assert.False(t, m.Has(tmp))
	require.NoError(t, m.Check())
}

func TestDescendantsAndLoadedFolders(t *testing.T) {
	m := sample(t)
	d, err := m.Descendants(2)
	require.NoError(t, err)
	assert.Equal(t, []models.ID{3, 10}, d)
	assert.True(t, m.IsAncestor(2, 3))
	assert.True(t, m.IsAncestor(1, 10))
	assert.False(t, m.IsAncestor(3, 2))

	require.NoError(t, m.ReplaceSubtree(1, []*models.Node{models.NewFolder(2, "A"), models.NewFolder(5, "C")}))
	require.NoError(t, m.ReplaceSubtree(5, nil))
	assert.Equal(t, []models.ID{1, 5}, m.LoadedFolders())
}

func TestCheckDetectsCorruption(t *testing.T) {
	m := sample(t)
	m.nodes[3].Children = []models.ID{2}
	assert.Error(t, m.Check())

	m = sample(t)
	m.nodes[10].ParentID = 1
	assert.Error(t, m.Check())

	m = sample(t)
	m.nodes[2].Children = append(m.nodes[2].Children, 99)
	assert.Error(t, m.Check())
}

func TestStarred(t *testing.T) {
	var s Starred
	s.Add(models.Item{ID: 10, Title: "go"})
	s.Add(models.Item{ID: 11, Title: "pkg"})
	s.Add(models.Item{ID: 10, Title: "go dev"})
	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "go dev", items[0].Title)

	assert.True(t, s.Remove(10))
	assert.False(t, s.Remove(10))
	assert.False(t, s.Has(10))
	assert.True(t, s.Has(11))
}
