package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/bookmarktree/internal/mirror"
	"github.com/dastanaron/bookmarktree/internal/models"
)

func fixtureTree(t *testing.T) *mirror.Mirror {
	t.Helper()
	m := mirror.New("Bookmarks")
	dev := models.NewFolder(10, "Dev")
	golang, err := models.NewBookmark(11, "Go docs", "https://go.dev/")
	require.NoError(t, err)
	golang.Starred = true
	other := models.NewFolder(12, "Other")
	require.NoError(t, m.ReplaceSubtree(models.RootID, []*models.Node{dev, other}))
	require.NoError(t, m.ReplaceSubtree(10, []*models.Node{golang}))
	tmp, err := models.NewBookmark(m.NextTempID(), "https://new.dev/", "https://new.dev/")
	require.NoError(t, err)
	require.NoError(t, m.Insert(10, tmp, 1))
	return m
}

func TestBuildTree(t *testing.T) {
	m := fixtureTree(t)
	root := buildTree(m.Snapshot(), marks{expanded: map[models.ID]bool{10: true, 12: true}, cut: 11})

	assert.True(t, root.IsExpanded())
	children := root.GetChildren()
	require.Len(t, children, 2)

	dev := children[0]
	assert.Equal(t, "- Dev", dev.GetText())
	assert.True(t, dev.IsExpanded())
	require.Len(t, dev.GetChildren(), 2)
	assert.Equal(t, "* Go docs (cut)", dev.GetChildren()[0].GetText())
	assert.Equal(t, "https://new.dev/ (saving)", dev.GetChildren()[1].GetText())

	// Expanded but never loaded: stays closed.
	other := children[1]
	assert.Equal(t, "+ Other", other.GetText())
	assert.False(t, other.IsExpanded())
}

func TestFindNode(t *testing.T) {
	m := fixtureTree(t)
	root := buildTree(m.Snapshot(), marks{expanded: map[models.ID]bool{}})

	n := findNode(root, 11)
	require.NotNil(t, n)
	id, ok := nodeID(n)
	assert.True(t, ok)
	assert.Equal(t, models.ID(11), id)

	assert.Nil(t, findNode(root, 99))
	_, ok = nodeID(nil)
	assert.False(t, ok)
}

func TestParseTags(t *testing.T) {
	known := []models.Tag{{ID: 3, Name: "go"}}
	got := parseTags(" go, docs,, go ,new ", known)
	assert.Equal(t, []models.Tag{{ID: 3, Name: "go"}, {Name: "docs"}, {Name: "new"}}, got)
	assert.Empty(t, parseTags("  ", known))
}
