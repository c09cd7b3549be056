package push_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/remote/push"
	"github.com/dastanaron/bookmarktree/internal/repository"
	"github.com/dastanaron/bookmarktree/internal/server"
)

func TestListenReceivesChanges(t *testing.T) {
	repo, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "bookmarks.db"))
	require.NoError(t, err)
	defer repo.Close()
	log, _ := test.NewNullLogger()
	srv := server.New(repo, server.Options{Log: log})
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()
	defer srv.Close()

	n, err := push.New(hs.URL, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var changes atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- n.Listen(ctx, func() { changes.Add(1) })
	}()
	require.Eventually(t, func() bool { return srv.Clients() == 1 }, time.Second, 10*time.Millisecond)

	// The server's own handler broadcasts, so go through HTTP.
	resp, err := hs.Client().Post(hs.URL+"/api/folders", "application/json",
		strings.NewReader(`{"parent_id":1,"name":"Go"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Eventually(t, func() bool { return changes.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}

	items, err := repo.Children(context.Background(), models.RootID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestListenReturnsWhenServerCloses(t *testing.T) {
	repo, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "bookmarks.db"))
	require.NoError(t, err)
	defer repo.Close()
	log, _ := test.NewNullLogger()
	srv := server.New(repo, server.Options{Log: log})
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()

	n, err := push.New(hs.URL, log)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() {
		done <- n.Listen(context.Background(), func() {})
	}()
	require.Eventually(t, func() bool { return srv.Clients() == 1 }, time.Second, 10*time.Millisecond)

	srv.Close()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after the server closed")
	}
}

func TestNewRejectsScheme(t *testing.T) {
	_, err := push.New("ftp://example.com", nil)
	assert.Error(t, err)

	_, err = push.New("https://example.com/", nil)
	assert.NoError(t, err)
}
