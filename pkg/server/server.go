// Package server exposes registered models over a small REST surface.
package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/mapdexdb/mapdex/pkg/model"
	"github.com/mapdexdb/mapdex/pkg/schema"
	"github.com/mapdexdb/mapdex/pkg/storage"
)

// Server holds the embedded storage engine and the models registered on it.
type Server struct {
	router *mux.Router
	engine *storage.Engine

	mu     sync.RWMutex
	models map[string]*model.Model
}

// NewServer creates a new instance of Server.
func NewServer(storageOptions ...storage.Option) *Server {
	s := &Server{
		router: mux.NewRouter(),
		engine: storage.NewEngine(storageOptions...),
		models: make(map[string]*model.Model),
	}
	s.routes()

	// Use the logging middleware for all routes
	s.router.Use(requestLoggerMiddleware)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("WARN: No route found for %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	})

	return s
}

// requestLoggerMiddleware logs the method, URL path, and duration for each request.
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)
		log.Printf("INFO: Request %s %s took %s", r.Method, r.URL.Path, elapsed)
	})
}

// RegisterModel declares a model over the embedded engine and makes it
// addressable under /models/{name}.
func (s *Server) RegisterModel(ctx context.Context, name string, sch *schema.Schema, specs ...model.IndexSpec) error {
	m, err := model.New(ctx, s.engine, name, sch, specs...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.models[name] = m
	s.mu.Unlock()
	log.Printf("INFO: Registered model '%s'", name)
	return nil
}

func (s *Server) lookupModel(name string) (*model.Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[name]
	return m, ok
}

// InitDB loads data from a file, if one exists.
func (s *Server) InitDB(filename string) {
	if err := s.engine.LoadFromFile(filename); err != nil {
		log.Printf("ERROR: Could not load DB from file %s: %v", filename, err)
	} else {
		log.Printf("INFO: Loaded DB from file %s successfully", filename)
	}
}

// SaveDB saves the current database state to file
func (s *Server) SaveDB(filename string) {
	if err := s.engine.SaveToFile(filename); err != nil {
		log.Printf("ERROR: Could not save DB to file %s: %v", filename, err)
	} else {
		log.Printf("INFO: Saved DB to file %s successfully", filename)
	}
}

// Engine exposes the embedded storage engine.
func (s *Server) Engine() *storage.Engine {
	return s.engine
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}

// routes defines all REST endpoints.
func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/models/{model}/documents", s.handleInsert).Methods("POST")
	s.router.HandleFunc("/models/{model}/query", s.handleQuery).Methods("POST")
	s.router.HandleFunc("/models/{model}/documents", s.handleUpdate).Methods("PATCH")
	s.router.HandleFunc("/models/{model}/documents", s.handleRemove).Methods("DELETE")
	s.router.HandleFunc("/models/{model}/documents/{id}", s.handleGetById).Methods("GET")
	s.router.HandleFunc("/models/{model}/documents/{id}", s.handleSave).Methods("PUT")
}
