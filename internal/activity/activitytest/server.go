// Package activitytest provides a fake activity store HTTP server for tests.
package activitytest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/emissiontracker/emissiontracker/internal/activity"
)

// DefaultBasePath is the path of the activity collection.
const DefaultBasePath = "/api/transport-activity"

// Request is a request received by the server.
type Request struct {
	Method        string
	Path          string
	RawQuery      string
	RequestID     string
	Authorization string
	Body          []byte
}

// Server is an activity store REST API backed by an InMemoryStore.
type Server struct {
	*httptest.Server

	Store    *activity.InMemoryStore
	basePath string
	logger   zerolog.Logger

	rateLimit       int
	rateLimitWindow time.Duration

	mu          sync.Mutex
	tokens      map[string]bool
	requireAuth bool
	failures    []int
	requests    []Request
}

// Option configures a Server.
type Option func(*Server)

// WithAcceptedTokens requires one of tokens as bearer token. Other requests
// get 401.
func WithAcceptedTokens(tokens ...string) Option {
	return func(s *Server) {
		s.requireAuth = true
		for _, t := range tokens {
			s.tokens[t] = true
		}
	}
}

// WithBasePath mounts the collection at path instead of DefaultBasePath.
func WithBasePath(path string) Option {
	return func(s *Server) {
		s.basePath = "/" + strings.Trim(path, "/")
	}
}

// WithLogger logs handled requests to log at debug level.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = log
	}
}

// WithRateLimit answers 429 once a client sends more than limit requests
// within window.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimit = limit
		s.rateLimitWindow = window
	}
}

// NewServer starts a fake activity store. Callers must Close it.
func NewServer(opts ...Option) *Server {
	s := &Server{
		Store:    activity.NewInMemoryStore(),
		basePath: DefaultBasePath,
		logger:   zerolog.Nop(),
		tokens:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewServer(s.router())
	return s
}

// BaseURL returns the absolute URL of the activity collection.
func (s *Server) BaseURL() string {
	return s.URL + s.basePath
}

// AcceptToken adds a valid bearer token.
func (s *Server) AcceptToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireAuth = true
	s.tokens[token] = true
}

// RevokeToken invalidates a bearer token.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// FailNext makes the next requests fail with the given status codes, one
// per request, before they reach the store.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestID)
	r.Use(logRequests(s.logger))
	if s.rateLimit > 0 {
		r.Use(rateLimit(s.rateLimit, s.rateLimitWindow))
	}
	r.Use(s.intercept)

	r.Route(s.basePath, func(r chi.Router) {
		r.Get("/", s.list)
		r.Post("/", s.create)
		r.Get("/{activityId}", s.get)
		r.Put("/{activityId}", s.update)
		r.Delete("/{activityId}", s.delete)
	})

	return r
}

// intercept records the request, injects queued failures and checks the
// bearer token.
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			writeErrors(w, http.StatusBadRequest, []activity.FieldError{{Message: "unreadable body"}})
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			RawQuery:      r.URL.RawQuery,
			RequestID:     getRequestID(r.Context()),
			Authorization: r.Header.Get("Authorization"),
			Body:          body,
		})

		var failWith int
		if len(s.failures) > 0 {
			failWith = s.failures[0]
			s.failures = s.failures[1:]
		}

		authorized := !s.requireAuth
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && s.tokens[token] {
			authorized = true
		}
		s.mu.Unlock()

		if failWith != 0 {
			writeErrors(w, failWith, []activity.FieldError{{Message: http.StatusText(failWith)}})
			return
		}
		if !authorized {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	opts, err := activity.ParseListOptions(r.URL.Query())
	if err != nil {
		writeErrors(w, http.StatusBadRequest, []activity.FieldError{{InstancePath: "/query", Message: err.Error()}})
		return
	}

	items, err := s.Store.List(r.Context(), opts)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req activity.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, []activity.FieldError{{Message: "invalid JSON body"}})
		return
	}

	id, err := s.Store.Create(r.Context(), &req)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Location", s.basePath+"/"+id)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Store.Get(r.Context(), chi.URLParam(r, "activityId"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	req := activity.UpdateRequest{ID: chi.URLParam(r, "activityId")}
	if err := json.NewDecoder(r.Body).Decode(&req.CreateRequest); err != nil {
		writeErrors(w, http.StatusBadRequest, []activity.FieldError{{Message: "invalid JSON body"}})
		return
	}

	if err := s.Store.Update(r.Context(), &req); err != nil {
		writeStoreError(w, err)
		return
	}

	rec, err := s.Store.Get(r.Context(), req.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Delete(r.Context(), chi.URLParam(r, "activityId")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readBody reads the request body and puts a fresh reader back for the
// handlers.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func writeStoreError(w http.ResponseWriter, err error) {
	var apiErr *activity.APIError
	switch {
	case errors.As(err, &apiErr):
		writeErrors(w, apiErr.StatusCode, apiErr.Errors)
	case errors.Is(err, activity.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	default:
		writeErrors(w, http.StatusInternalServerError, []activity.FieldError{{Message: err.Error()}})
	}
}

func writeErrors(w http.ResponseWriter, status int, errs []activity.FieldError) {
	writeJSON(w, status, errs)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
