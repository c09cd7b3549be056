package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/remote"
)

type idResponse struct {
	ID models.ID `json:"id"`
}

func pathID(r *http.Request) (models.ID, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return models.ID(id), nil
}

// withID parses the {id} path segment or answers 400.
func withID(w http.ResponseWriter, r *http.Request) (models.ID, bool) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, remote.CodeInvalid, "invalid id")
		return 0, false
	}
	return id, true
}

// decode parses and validates a request body or answers 400.
func decode(w http.ResponseWriter, r *http.Request, req interface{ Validate() error }) bool {
	if err := parseJSON(w, r, req); err != nil {
		respondError(w, http.StatusBadRequest, remote.CodeInvalid, err.Error())
		return false
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, remote.CodeInvalid, err.Error())
		return false
	}
	return true
}

func itemList(list []models.Item) []models.Item {
	if list == nil {
		return []models.Item{}
	}
	return list
}

func tagList(list []models.Tag) []models.Tag {
	if list == nil {
		return []models.Tag{}
	}
	return list
}

// GET /api/folders/{id}/children
func (s *Server) children(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	list, err := s.repo.Children(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, itemList(list))
}

// POST /api/folders
func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := s.repo.CreateFolder(r.Context(), req.ParentID, req.Name)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.entry(r).WithField("node_id", id).Info("folder created")
	s.changed()
	respondJSON(w, http.StatusCreated, idResponse{ID: id})
}

// POST /api/bookmarks
// The answer carries the page title and favicon when the page could be
// fetched within the resolve timeout.
func (s *Server) createBookmark(w http.ResponseWriter, r *http.Request) {
	var req createBookmarkRequest
	if !decode(w, r, &req) {
		return
	}
	it, err := s.repo.CreateBookmark(r.Context(), req.ParentID, req.URL)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.resolve(r, it)
	s.entry(r).WithField("node_id", it.ID).Info("bookmark created")
	s.changed()
	respondJSON(w, http.StatusCreated, it)
}

func (s *Server) resolve(r *http.Request, it *models.Item) {
	if s.resolver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.resolveTimeout)
	defer cancel()
	info, err := s.resolver.Resolve(ctx, it.URL)
	if err != nil {
		s.entry(r).WithError(err).WithField("url", it.URL).Warn("resolving page info failed")
		return
	}
	if info.Title == "" {
		info.Title = it.Title
	}
	if err := s.repo.SetPageInfo(r.Context(), it.ID, info.Title, info.Favicon); err != nil {
		s.entry(r).WithError(err).WithField("node_id", it.ID).Error("storing page info failed")
		return
	}
	it.Title, it.Favicon = info.Title, info.Favicon
}

// PATCH /api/items/{id}
func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.repo.Update(r.Context(), id, models.Edit(req)); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.changed()
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/items/{id}
func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.entry(r).WithField("node_id", id).Info("item deleted")
	s.changed()
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/items/{id}/move
func (s *Server) move(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.repo.Move(r.Context(), id, req.DestinationID); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.changed()
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/bookmarks/{id}/star
// Unstarring answers 204 since there is no bookmark snapshot to return.
func (s *Server) star(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req starRequest
	if err := parseJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, remote.CodeInvalid, err.Error())
		return
	}
	it, err := s.repo.Star(r.Context(), id, req.Star)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.changed()
	if it == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, it)
}

// GET /api/bookmarks/{id}/tags
func (s *Server) bookmarkTags(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	list, err := s.repo.BookmarkTags(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tagList(list))
}

// GET /api/starred
func (s *Server) starred(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.Starred(r.Context())
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, itemList(list))
}

// GET /api/tags
func (s *Server) tags(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.Tags(r.Context())
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tagList(list))
}

// GET /api/search?q=
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, itemList(list))
}
