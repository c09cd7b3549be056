package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/remote"
	"github.com/dastanaron/bookmarktree/internal/repository"
)

type resolverFunc func(ctx context.Context, pageURL string) (PageInfo, error)

func (f resolverFunc) Resolve(ctx context.Context, pageURL string) (PageInfo, error) {
	return f(ctx, pageURL)
}

type fixture struct {
	srv  *Server
	http *httptest.Server
	repo *repository.SQLiteRepository
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	repo, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "bookmarks.db"))
	require.NoError(t, err)
	if opts.Log == nil {
		log, _ := test.NewNullLogger()
		opts.Log = log
	}
	srv := New(repo, opts)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
		repo.Close()
	})
	return &fixture{srv: srv, http: hs, repo: repo}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, f.http.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeProblem(t *testing.T, data []byte) problem {
	t.Helper()
	var p problem
	require.NoError(t, json.Unmarshal(data, &p))
	return p
}

func TestCreateAndList(t *testing.T) {
	f := newFixture(t, Options{})

	resp, data := f.do(t, http.MethodPost, "/api/folders", map[string]any{"parent_id": 1, "name": "Go"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created idResponse
	require.NoError(t, json.Unmarshal(data, &created))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	resp, data = f.do(t, http.MethodPost, "/api/bookmarks", map[string]any{"parent_id": created.ID, "url": "https://go.dev/"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var bk models.Item
	require.NoError(t, json.Unmarshal(data, &bk))
	assert.Equal(t, "https://go.dev/", bk.Title)
	assert.Equal(t, created.ID, bk.ParentID)

	resp, data = f.do(t, http.MethodGet, fmt.Sprintf("/api/folders/%d/children", created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.Item
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, bk.ID, list[0].ID)

	resp, data = f.do(t, http.MethodGet, "/api/starred", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(data))
}

func TestCreateBookmarkResolvesPage(t *testing.T) {
	f := newFixture(t, Options{Resolver: resolverFunc(func(ctx context.Context, pageURL string) (PageInfo, error) {
		return PageInfo{Title: "The Go Programming Language", Favicon: pageURL + "favicon.ico"}, nil
	})})

	resp, data := f.do(t, http.MethodPost, "/api/bookmarks", map[string]any{"parent_id": 1, "url": "https://go.dev/"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var bk models.Item
	require.NoError(t, json.Unmarshal(data, &bk))
	assert.Equal(t, "The Go Programming Language", bk.Title)
	assert.Equal(t, "https://go.dev/favicon.ico", bk.Favicon)

	stored, err := f.repo.Children(context.Background(), models.RootID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, bk.Title, stored[0].Title)
}

func TestCreateBookmarkKeepsURLWhenResolveFails(t *testing.T) {
	f := newFixture(t, Options{Resolver: resolverFunc(func(ctx context.Context, pageURL string) (PageInfo, error) {
		return PageInfo{}, errors.New("unreachable")
	})})

	resp, data := f.do(t, http.MethodPost, "/api/bookmarks", map[string]any{"parent_id": 1, "url": "https://go.dev/"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var bk models.Item
	require.NoError(t, json.Unmarshal(data, &bk))
	assert.Equal(t, "https://go.dev/", bk.Title)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, Options{})
	bk, err := f.repo.CreateBookmark(context.Background(), models.RootID, "https://go.dev/")
	require.NoError(t, err)
	a, err := f.repo.CreateFolder(context.Background(), models.RootID, "A")
	require.NoError(t, err)
	b, err := f.repo.CreateFolder(context.Background(), a, "B")
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"missing folder", http.MethodGet, "/api/folders/999/children", nil, http.StatusNotFound, remote.CodeNotFound},
		{"children of bookmark", http.MethodGet, fmt.Sprintf("/api/folders/%d/children", bk.ID), nil, http.StatusConflict, remote.CodeFolderRequired},
		{"bad id", http.MethodDelete, "/api/items/abc", nil, http.StatusBadRequest, remote.CodeInvalid},
		{"empty name", http.MethodPost, "/api/folders", map[string]any{"parent_id": 1, "name": ""}, http.StatusBadRequest, remote.CodeInvalid},
		{"bad url", http.MethodPost, "/api/bookmarks", map[string]any{"parent_id": 1, "url": "not a url"}, http.StatusBadRequest, remote.CodeInvalid},
		{"missing parent", http.MethodPost, "/api/folders", map[string]any{"parent_id": 999, "name": "x"}, http.StatusNotFound, remote.CodeParentNotFound},
		{"parent is bookmark", http.MethodPost, "/api/folders", map[string]any{"parent_id": bk.ID, "name": "x"}, http.StatusConflict, remote.CodeParentNotFolder},
		{"delete root", http.MethodDelete, "/api/items/1", nil, http.StatusConflict, remote.CodeRootImmutable},
		{"move into child", http.MethodPost, fmt.Sprintf("/api/items/%d/move", a), map[string]any{"destination_id": b}, http.StatusConflict, remote.CodeCycle},
		{"star folder", http.MethodPost, fmt.Sprintf("/api/bookmarks/%d/star", a), map[string]any{"star": true}, http.StatusBadRequest, remote.CodeInvalid},
		{"malformed body", http.MethodPost, "/api/folders", "{", http.StatusBadRequest, remote.CodeInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
			assert.Equal(t, tt.code, decodeProblem(t, data).Code)
		})
	}
}

func TestUpdateMoveStarDelete(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	bk, err := f.repo.CreateBookmark(ctx, models.RootID, "https://go.dev/")
	require.NoError(t, err)
	a, err := f.repo.CreateFolder(ctx, models.RootID, "A")
	require.NoError(t, err)

	resp, _ := f.do(t, http.MethodPatch, fmt.Sprintf("/api/items/%d", bk.ID), map[string]any{
		"title": "Go",
		"tags":  []map[string]any{{"id": 0, "name": "golang"}},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data := f.do(t, http.MethodGet, fmt.Sprintf("/api/bookmarks/%d/tags", bk.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tags []models.Tag
	require.NoError(t, json.Unmarshal(data, &tags))
	require.Len(t, tags, 1)
	assert.Equal(t, "golang", tags[0].Name)

	resp, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/items/%d/move", bk.ID), map[string]any{"destination_id": a})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data = f.do(t, http.MethodPost, fmt.Sprintf("/api/bookmarks/%d/star", bk.ID), map[string]any{"star": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var starred models.Item
	require.NoError(t, json.Unmarshal(data, &starred))
	assert.True(t, starred.Starred)
	assert.Equal(t, a, starred.ParentID)

	resp, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/bookmarks/%d/star", bk.ID), map[string]any{"star": false})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data = f.do(t, http.MethodGet, "/api/search?q=golang", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found []models.Item
	require.NoError(t, json.Unmarshal(data, &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Go", found[0].Title)

	resp, _ = f.do(t, http.MethodDelete, fmt.Sprintf("/api/items/%d", a), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, fmt.Sprintf("/api/bookmarks/%d/tags", bk.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSocketSignalsMutations(t *testing.T) {
	f := newFixture(t, Options{})
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/socket/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.srv.Clients() == 1 }, time.Second, 10*time.Millisecond)

	resp, _ := f.do(t, http.MethodPost, "/api/folders", map[string]any{"parent_id": 1, "name": "Go"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, ChangedMessage, string(msg))

	// Reads do not signal.
	f.do(t, http.MethodGet, "/api/tags", nil)
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestSocketOrigins(t *testing.T) {
	f := newFixture(t, Options{CORSOrigins: []string{"https://app.example"}})
	host := strings.TrimPrefix(f.http.URL, "http://")
	url := "ws://" + host + "/socket/"

	cases := []struct {
		origin string
		ok     bool
	}{
		{"", true},
		{"http://" + host, true},
		{"https://app.example", true},
		{"http://" + host + ".evil.example", false},
		{"http://evil.example/?" + host, false},
	}
	for _, tc := range cases {
		t.Run(tc.origin, func(t *testing.T) {
			header := http.Header{}
			if tc.origin != "" {
				header.Set("Origin", tc.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tc.ok {
				require.NoError(t, err)
				conn.Close()
				return
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestPanicRecovery(t *testing.T) {
	log, hook := test.NewNullLogger()
	srv := New(nil, Options{Log: log})
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()

	resp, err := http.Get(hs.URL + "/api/tags")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestHTMLResolver(t *testing.T) {
	pages := http.NewServeMux()
	pages.HandleFunc("/with-icon", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title> Gophers </title><link rel="shortcut icon" href="/static/g.png"></head><body><title>no</title></body></html>`)
	})
	pages.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Plain</title></head></html>`)
	})
	pages.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	hs := httptest.NewServer(pages)
	defer hs.Close()

	res := HTMLResolver{Client: hs.Client()}
	info, err := res.Resolve(context.Background(), hs.URL+"/with-icon")
	require.NoError(t, err)
	assert.Equal(t, "Gophers", info.Title)
	assert.Equal(t, hs.URL+"/static/g.png", info.Favicon)

	info, err = res.Resolve(context.Background(), hs.URL+"/plain")
	require.NoError(t, err)
	assert.Equal(t, "Plain", info.Title)
	assert.Equal(t, hs.URL+"/favicon.ico", info.Favicon)

	_, err = res.Resolve(context.Background(), hs.URL+"/gone")
	assert.Error(t, err)
}
