package httpstore_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/remote/httpstore"
	"github.com/dastanaron/bookmarktree/internal/repository"
	"github.com/dastanaron/bookmarktree/internal/server"
)

func newClient(t *testing.T) *httpstore.Client {
	t.Helper()
	repo, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "bookmarks.db"))
	require.NoError(t, err)
	log, _ := test.NewNullLogger()
	srv := server.New(repo, server.Options{Log: log})
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
		repo.Close()
	})
	return httpstore.New(hs.URL+"/", 0, log)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	folder, err := c.CreateFolder(ctx, models.RootID, "Go")
	require.NoError(t, err)
	bk, err := c.CreateBookmark(ctx, folder, "https://go.dev/")
	require.NoError(t, err)
	assert.Equal(t, folder, bk.ParentID)
	assert.Equal(t, models.ItemTypeBookmark, bk.Type)

	url := "https://go.dev/doc/"
	tags := []models.Tag{{Name: "docs"}}
	require.NoError(t, c.Update(ctx, bk.ID, models.Edit{Title: "Docs", URL: &url, Tags: &tags}))

	items, err := c.Children(ctx, folder)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Docs", items[0].Title)
	assert.Equal(t, url, items[0].URL)

	got, err := c.BookmarkTags(ctx, bk.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	all, err := c.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, all)

	starred, err := c.Star(ctx, bk.ID, true)
	require.NoError(t, err)
	require.NotNil(t, starred)
	assert.True(t, starred.Starred)
	list, err := c.Starred(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	unstarred, err := c.Star(ctx, bk.ID, false)
	require.NoError(t, err)
	assert.Nil(t, unstarred)

	found, err := c.Search(ctx, "docs & more")
	require.NoError(t, err)
	assert.Empty(t, found)
	found, err = c.Search(ctx, "doc")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, c.Move(ctx, bk.ID, models.RootID))
	require.NoError(t, c.Delete(ctx, folder))
	items, err = c.Children(ctx, models.RootID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, bk.ID, items[0].ID)
}

func TestErrorsKeepTheirSentinel(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	a, err := c.CreateFolder(ctx, models.RootID, "A")
	require.NoError(t, err)
	b, err := c.CreateFolder(ctx, a, "B")
	require.NoError(t, err)
	bk, err := c.CreateBookmark(ctx, models.RootID, "https://go.dev/")
	require.NoError(t, err)

	_, err = c.Children(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = c.CreateFolder(ctx, 999, "x")
	assert.ErrorIs(t, err, models.ErrParentNotFound)
	_, err = c.CreateFolder(ctx, bk.ID, "x")
	assert.ErrorIs(t, err, models.ErrParentNotFolder)
	assert.ErrorIs(t, c.Move(ctx, a, b), models.ErrCycle)
	assert.ErrorIs(t, c.Delete(ctx, models.RootID), models.ErrRootImmutable)
	_, err = c.Star(ctx, a, true)
	assert.ErrorIs(t, err, models.ErrInvalidNode)
	_, err = c.CreateBookmark(ctx, models.RootID, "")
	assert.ErrorIs(t, err, models.ErrInvalidNode)
}

func TestUnknownErrorBody(t *testing.T) {
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer hs.Close()
	log, _ := test.NewNullLogger()
	c := httpstore.New(hs.URL, 0, log)

	_, err := c.Starred(context.Background())
	var se *httpstore.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.Equal(t, "upstream down", se.Detail)
}
