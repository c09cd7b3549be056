// Package server exposes a bookmark repository over HTTP/JSON and signals
// every successful mutation on a websocket so clients can reload.
package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/dastanaron/bookmarktree/internal/repository"
)

// RequestIDHeader carries the id that ties client and server log lines.
const RequestIDHeader = "X-Request-ID"

const defaultResolveTimeout = 5 * time.Second

type Options struct {
	Log logrus.FieldLogger
	// Resolver fills in page titles of new bookmarks. Nil keeps the URL as
	// the title.
	Resolver       Resolver
	ResolveTimeout time.Duration
	CORSOrigins    []string
}

type Server struct {
	repo           repository.Repository
	hub            *hub
	log            logrus.FieldLogger
	resolver       Resolver
	resolveTimeout time.Duration
	corsOrigins    []string
}

func New(repo repository.Repository, opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	timeout := opts.ResolveTimeout
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &Server{
		repo:           repo,
		hub:            newHub(log, opts.CORSOrigins),
		log:            log,
		resolver:       opts.Resolver,
		resolveTimeout: timeout,
		corsOrigins:    opts.CORSOrigins,
	}
}

// Handler returns the routed API with request ids, panic recovery, access
// logging and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/folders/{id}/children", s.children)
	mux.HandleFunc("POST /api/folders", s.createFolder)
	mux.HandleFunc("POST /api/bookmarks", s.createBookmark)
	mux.HandleFunc("PATCH /api/items/{id}", s.update)
	mux.HandleFunc("DELETE /api/items/{id}", s.delete)
	mux.HandleFunc("POST /api/items/{id}/move", s.move)
	mux.HandleFunc("POST /api/bookmarks/{id}/star", s.star)
	mux.HandleFunc("GET /api/bookmarks/{id}/tags", s.bookmarkTags)
	mux.HandleFunc("GET /api/starred", s.starred)
	mux.HandleFunc("GET /api/tags", s.tags)
	mux.HandleFunc("GET /api/search", s.search)
	mux.HandleFunc("GET /socket/", s.hub.serveWS)

	var handler http.Handler = mux
	handler = s.recovery(handler)
	handler = s.accessLog(handler)
	handler = requestID(handler)
	if len(s.corsOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		}).Handler(handler)
	}
	return handler
}

// Clients returns the number of connected websocket listeners.
func (s *Server) Clients() int {
	return s.hub.Len()
}

// Close disconnects every websocket client.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) changed() {
	s.hub.Broadcast()
}

type requestIDKey struct{}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) entry(r *http.Request) *logrus.Entry {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return s.log.WithFields(logrus.Fields{
		"request_id": id,
		"method":     r.Method,
		"path":       r.URL.Path,
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack hands the connection to the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.entry(r).WithFields(logrus.Fields{
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("request served")
	})
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.entry(r).WithFields(logrus.Fields{
					"error": err,
					"stack": string(debug.Stack()),
				}).Error("panic recovered")
				respondError(w, http.StatusInternalServerError, "", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
