// Package httpstore implements remote.Store against the bookmark server's
// HTTP/JSON API.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/remote"
)

const requestIDHeader = "X-Request-ID"

// Client talks to one bookmark server.
type Client struct {
	base string
	http *http.Client
	log  logrus.FieldLogger
}

var _ remote.Store = (*Client)(nil)

// New returns a client for the server at baseURL. A zero timeout leaves
// requests bounded only by their context.
func New(baseURL string, timeout time.Duration, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// problem mirrors the server's error body.
type problem struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// StatusError is returned for error responses whose code has no sentinel.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server answered %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Detail)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	req.Header.Set(requestIDHeader, id)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	l := c.log.WithFields(logrus.Fields{"request_id": id, "method": method, "path": path})
	resp, err := c.http.Do(req)
	if err != nil {
		l.WithError(err).Debug("request failed")
		return err
	}
	defer resp.Body.Close()
	l.WithField("status", resp.StatusCode).Debug("request done")

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeError restores the sentinel named by the problem code so callers
// can match it with errors.Is.
func decodeError(resp *http.Response) error {
	var p problem
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &p); err != nil {
		return &StatusError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(data))}
	}
	if sentinel := remote.CodeError(p.Code); sentinel != nil {
		return fmt.Errorf("%w (%s)", sentinel, p.Detail)
	}
	return &StatusError{Status: resp.StatusCode, Detail: p.Detail}
}

func (c *Client) Children(ctx context.Context, folderID models.ID) ([]models.Item, error) {
	var items []models.Item
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/folders/%d/children", folderID), nil, &items)
	return items, err
}

func (c *Client) CreateFolder(ctx context.Context, parentID models.ID, name string) (models.ID, error) {
	var resp struct {
		ID models.ID `json:"id"`
	}
	body := map[string]any{"parent_id": parentID, "name": name}
	if err := c.do(ctx, http.MethodPost, "/api/folders", body, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (c *Client) CreateBookmark(ctx context.Context, parentID models.ID, pageURL string) (*models.Item, error) {
	var it models.Item
	body := map[string]any{"parent_id": parentID, "url": pageURL}
	if err := c.do(ctx, http.MethodPost, "/api/bookmarks", body, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) Update(ctx context.Context, id models.ID, e models.Edit) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/items/%d", id), e, nil)
}

func (c *Client) Delete(ctx context.Context, id models.ID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/items/%d", id), nil, nil)
}

func (c *Client) Move(ctx context.Context, id, destinationID models.ID) error {
	body := map[string]any{"destination_id": destinationID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/items/%d/move", id), body, nil)
}

func (c *Client) Star(ctx context.Context, id models.ID, star bool) (*models.Item, error) {
	body := map[string]any{"star": star}
	if !star {
		return nil, c.do(ctx, http.MethodPost, fmt.Sprintf("/api/bookmarks/%d/star", id), body, nil)
	}
	var it models.Item
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/bookmarks/%d/star", id), body, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) Starred(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := c.do(ctx, http.MethodGet, "/api/starred", nil, &items)
	return items, err
}

func (c *Client) Tags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := c.do(ctx, http.MethodGet, "/api/tags", nil, &tags)
	return tags, err
}

func (c *Client) BookmarkTags(ctx context.Context, id models.ID) ([]models.Tag, error) {
	var tags []models.Tag
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/bookmarks/%d/tags", id), nil, &tags)
	return tags, err
}

func (c *Client) Search(ctx context.Context, query string) ([]models.Item, error) {
	var items []models.Item
	err := c.do(ctx, http.MethodGet, "/api/search?q="+url.QueryEscape(query), nil, &items)
	return items, err
}
