package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dastanaron/bookmarktree/internal/remote"
)

// problem is an RFC 7807 error body.
type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	// Code names the sentinel error so clients can map it back.
	Code string `json:"code,omitempty"`
}

// respondJSON marshals first so an encoding failure never leaves a partial
// response behind.
func respondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "", "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

func respondError(w http.ResponseWriter, status int, code, detail string) {
	payload, err := json.Marshal(problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Code:   code,
	})
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	w.Write(payload)
}

var statuses = map[string]int{
	remote.CodeNotFound:        http.StatusNotFound,
	remote.CodeParentNotFound:  http.StatusNotFound,
	remote.CodeParentNotFolder: http.StatusConflict,
	remote.CodeFolderRequired:  http.StatusConflict,
	remote.CodeRootImmutable:   http.StatusConflict,
	remote.CodeCycle:           http.StatusConflict,
	remote.CodeInvalidMove:     http.StatusConflict,
	remote.CodeInvalid:         http.StatusBadRequest,
}

// respondStoreError maps a repository error to its status code.
func (s *Server) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var verr validation.Errors
	if errors.As(err, &verr) {
		respondError(w, http.StatusBadRequest, remote.CodeInvalid, err.Error())
		return
	}
	if code := remote.ErrorCode(err); code != "" {
		respondError(w, statuses[code], code, err.Error())
		return
	}
	s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	respondError(w, http.StatusInternalServerError, "", "internal server error")
}

// parseJSON decodes a request body of at most 1MB.
func parseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
