// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package remotetest provides an in-memory implementation of the remote
// resource API for adapter and end-to-end tests. It assigns positive ids on
// create, records call counts per route and can inject failures.
package remotetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	Issuer  = "field-api"
	SignKey = "remotetest-secret"
)

// Failure is a canned response returned instead of the normal handling.
type Failure struct {
	Status int
	Body   string
}

// Server is an httptest server backed by in-memory collections.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	records     map[models.EntityKind]map[int64]models.Entity
	nextID      int64
	calls       map[string]int
	creators    map[int64]int64
	failures    map[string][]Failure
	listGate    chan struct{}
	requireAuth bool
}

// Option configures a [Server].
type Option func(*Server)

// WithAuth makes every resource route require a bearer token signed with
// [SignKey].
func WithAuth() Option {
	return func(s *Server) { s.requireAuth = true }
}

// WithFirstID sets the first identifier assigned on create.
func WithFirstID(id int64) Option {
	return func(s *Server) { s.nextID = id }
}

// New starts a server and registers its shutdown with t.Cleanup.
func New(t interface{ Cleanup(func()) }, opts ...Option) *Server {
	s := &Server{
		records:  make(map[models.EntityKind]map[int64]models.Entity),
		nextID:   1000,
		calls:    make(map[string]int),
		creators: make(map[int64]int64),
		failures: make(map[string][]Failure),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Get("/api/{collection}", s.list)
		r.Post("/api/{collection}", s.create)
		r.Put("/api/{collection}/{id}", s.update)
		r.Delete("/api/{collection}/{id}", s.delete)
	})

	return router
}

// Token returns a bearer token for userID accepted by a server started
// with [WithAuth].
func Token(userID int64) string {
	token, err := utils.GenerateJWTToken(Issuer, userID, time.Hour, SignKey)
	if err != nil {
		panic(err)
	}
	return token
}

// Seed stores entities as if they had been created on the server.
func (s *Server) Seed(entities ...models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entities {
		s.collection(e.Kind())[e.GetID()] = e.Clone()
	}
}

// Get returns the server copy of a record.
func (s *Server) Get(kind models.EntityKind, id int64) (models.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[kind][id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// All returns every record of kind ordered by id.
func (s *Server) All(kind models.EntityKind) []models.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sorted(kind)
}

// Remove deletes a record directly, bypassing the API.
func (s *Server) Remove(kind models.EntityKind, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records[kind], id)
}

// CreatedBy returns the authenticated user that created the record with
// the given id, or 0 when the server runs without authentication.
func (s *Server) CreatedBy(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.creators[id]
}

// Calls returns how many requests reached method on the collection of kind,
// injected failures included.
func (s *Server) Calls(method string, kind models.EntityKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[routeKey(method, kind.Collection())]
}

// TotalCalls returns the number of requests with the given method across
// all collections.
func (s *Server) TotalCalls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, kind := range models.EntityKinds {
		total += s.calls[routeKey(method, kind.Collection())]
	}
	return total
}

// FailNext makes the next n requests with method on kind's collection
// answer with f.
func (s *Server) FailNext(method string, kind models.EntityKind, n int, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := routeKey(method, kind.Collection())
	for range n {
		s.failures[key] = append(s.failures[key], f)
	}
}

// HoldLists blocks every list request until the returned function is
// called.
func (s *Server) HoldLists() (release func()) {
	gate := make(chan struct{})

	s.mu.Lock()
	s.listGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.listGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.requireAuth {
			next.ServeHTTP(w, r)
			return
		}

		token, err := utils.ParseBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		userID, err := utils.ValidateAndParseJWTToken(token, SignKey, Issuer)
		if err != nil {
			http.Error(w, "token is expired or invalid", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(utils.WithUserID(r.Context(), userID)))
	})
}

// begin records the call and reports an injected failure, if any. The
// returned kind is empty for an unknown collection.
func (s *Server) begin(w http.ResponseWriter, r *http.Request) (models.EntityKind, bool) {
	collection := chi.URLParam(r, "collection")

	s.mu.Lock()
	key := routeKey(r.Method, collection)
	s.calls[key]++
	queue := s.failures[key]
	var failure *Failure
	if len(queue) > 0 {
		failure = &queue[0]
		s.failures[key] = queue[1:]
	}
	gate := s.listGate
	s.mu.Unlock()

	if r.Method == http.MethodGet && gate != nil {
		<-gate
	}

	if failure != nil {
		w.WriteHeader(failure.Status)
		_, _ = io.WriteString(w, failure.Body)
		return "", false
	}

	kind, ok := kindOf(collection)
	if !ok {
		http.Error(w, "unknown collection", http.StatusNotFound)
		return "", false
	}
	return kind, true
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.begin(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	out := s.sorted(kind)
	s.mu.Unlock()

	_, _ = utils.WriteJSON(w, out, http.StatusOK)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.begin(w, r)
	if !ok {
		return
	}

	e, ok := decodeBody(w, r, kind)
	if !ok {
		return
	}

	s.mu.Lock()
	s.nextID++
	e.SetID(s.nextID)
	if e.Modified().IsZero() {
		e.Touch(time.Now())
	}
	if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
		s.creators[e.GetID()] = userID
	}
	s.collection(kind)[e.GetID()] = e.Clone()
	s.mu.Unlock()

	_, _ = utils.WriteJSON(w, e, http.StatusCreated)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.begin(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	e, ok := decodeBody(w, r, kind)
	if !ok {
		return
	}
	e.SetID(id)

	s.mu.Lock()
	_, exists := s.records[kind][id]
	if exists {
		s.collection(kind)[id] = e.Clone()
	}
	s.mu.Unlock()

	if !exists {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	_, _ = utils.WriteJSON(w, e, http.StatusOK)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.begin(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, exists := s.records[kind][id]
	delete(s.records[kind], id)
	s.mu.Unlock()

	if !exists {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, kind models.EntityKind) (models.Entity, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(body) {
		http.Error(w, "Invalid JSON was passed", http.StatusBadRequest)
		return nil, false
	}
	e, err := models.DecodeEntity(kind, body)
	if err != nil {
		http.Error(w, "Invalid JSON was passed", http.StatusBadRequest)
		return nil, false
	}
	return e, true
}

func (s *Server) collection(kind models.EntityKind) map[int64]models.Entity {
	c, ok := s.records[kind]
	if !ok {
		c = make(map[int64]models.Entity)
		s.records[kind] = c
	}
	return c
}

func (s *Server) sorted(kind models.EntityKind) []models.Entity {
	out := make([]models.Entity, 0, len(s.records[kind]))
	for _, e := range s.records[kind] {
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, b models.Entity) int {
		switch {
		case a.GetID() < b.GetID():
			return -1
		case a.GetID() > b.GetID():
			return 1
		}
		return 0
	})
	return out
}

func kindOf(collection string) (models.EntityKind, bool) {
	for _, kind := range models.EntityKinds {
		if kind.Collection() == collection {
			return kind, true
		}
	}
	return "", false
}

func routeKey(method, collection string) string {
	return method + " " + collection
}
