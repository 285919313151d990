// Package server exposes the post-scan query surface over HTTP. All
// endpoints are read-only: they serve the current ScanResult snapshot, which
// is swapped atomically when a new scan completes.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/classlens/classlens/internal/graph"
)

const cacheSize = 1024

// Server is the classlens HTTP server.
type Server struct {
	result     atomic.Pointer[graph.ScanResult]
	cache      *lru.Cache[string, []string]
	httpServer *http.Server
	port       int
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance. Call SetResult before Start, or the
// query endpoints answer 503 until a snapshot is loaded.
func New(cfg Config) (*Server, error) {
	cache, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating query cache: %w", err)
	}

	s := &Server{
		cache: cache,
		port:  cfg.Port,
	}

	mux := http.NewServeMux()

	single := func(fn func(*graph.ScanResult, string) []string) http.HandlerFunc {
		return s.corsMiddleware(s.handleSingleName(fn))
	}

	mux.HandleFunc("/api/subclasses", single((*graph.ScanResult).SubclassesOf))
	mux.HandleFunc("/api/superclasses", single((*graph.ScanResult).SuperclassesOf))
	mux.HandleFunc("/api/subinterfaces", single((*graph.ScanResult).SubinterfacesOf))
	mux.HandleFunc("/api/superinterfaces", single((*graph.ScanResult).SuperinterfacesOf))
	mux.HandleFunc("/api/meta-annotated", single((*graph.ScanResult).AnnotationsWithMetaAnnotation))
	mux.HandleFunc("/api/annotations", single((*graph.ScanResult).AnnotationsOnClass))
	mux.HandleFunc("/api/meta-annotations", single((*graph.ScanResult).MetaAnnotationsOnAnnotation))

	mux.HandleFunc("/api/implementing", s.corsMiddleware(s.handleMultiName(
		(*graph.ScanResult).ImplementingAllOf,
		(*graph.ScanResult).ImplementingAnyOf,
	)))
	mux.HandleFunc("/api/annotated", s.corsMiddleware(s.handleMultiName(
		(*graph.ScanResult).WithAnnotationAllOf,
		(*graph.ScanResult).WithAnnotationAnyOf,
	)))

	mux.HandleFunc("/api/types", s.corsMiddleware(s.handleTypes))
	mux.HandleFunc("/api/constants", s.corsMiddleware(s.handleConstants))
	mux.HandleFunc("/api/stats", s.corsMiddleware(s.handleStats))
	mux.HandleFunc("/api/health", s.corsMiddleware(s.handleHealth))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// SetResult swaps in a fresh snapshot and drops the stale response cache.
// Readers mid-request keep the snapshot they already loaded.
func (s *Server) SetResult(r *graph.ScanResult) {
	s.result.Store(r)
	s.cache.Purge()
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on http://localhost:%d", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// corsMiddleware adds CORS headers for local development.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// queryResponse is the common shape of name-set answers.
type queryResponse struct {
	Name  string   `json:"name,omitempty"`
	Names []string `json:"names"`
	Count int      `json:"count"`
}

// snapshot returns the current result, or answers 503 and nil when no scan
// has been loaded yet.
func (s *Server) snapshot(w http.ResponseWriter) *graph.ScanResult {
	res := s.result.Load()
	if res == nil {
		writeError(w, http.StatusServiceUnavailable, "no scan loaded")
		return nil
	}
	return res
}

// handleSingleName serves the ?name= queries that take exactly one type name.
func (s *Server) handleSingleName(fn func(*graph.ScanResult, string) []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			writeError(w, http.StatusBadRequest, "missing name parameter")
			return
		}
		res := s.snapshot(w)
		if res == nil {
			return
		}
		key := r.URL.Path + "\x00" + name
		names, ok := s.cache.Get(key)
		if !ok {
			names = fn(res, name)
			s.cache.Add(key, names)
		}
		writeJSON(w, http.StatusOK, queryResponse{Name: name, Names: names, Count: len(names)})
	}
}

// handleMultiName serves queries over one or more names combined with
// match=all (default, intersection) or match=any (union).
func (s *Server) handleMultiName(all, any func(*graph.ScanResult, ...string) []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		names := r.URL.Query()["name"]
		if len(names) == 0 {
			writeError(w, http.StatusBadRequest, "missing name parameter")
			return
		}
		match := r.URL.Query().Get("match")
		if match == "" {
			match = "all"
		}
		if match != "all" && match != "any" {
			writeError(w, http.StatusBadRequest, "match must be all or any")
			return
		}
		res := s.snapshot(w)
		if res == nil {
			return
		}
		key := r.URL.Path + "\x00" + match + "\x00" + strings.Join(names, "\x00")
		out, ok := s.cache.Get(key)
		if !ok {
			if match == "any" {
				out = any(res, names...)
			} else {
				out = all(res, names...)
			}
			s.cache.Add(key, out)
		}
		writeJSON(w, http.StatusOK, queryResponse{Names: out, Count: len(out)})
	}
}

// handleTypes returns all in-scope resolved names plus cited external
// supertypes.
func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res := s.snapshot(w)
	if res == nil {
		return
	}
	names := res.AllTypes()
	writeJSON(w, http.StatusOK, queryResponse{Names: names, Count: len(names)})
}

// handleConstants returns field constant matches, optionally filtered with
// repeated ?field=com.example.Widget.VERSION parameters.
func (s *Server) handleConstants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res := s.snapshot(w)
	if res == nil {
		return
	}
	matches := res.Constants(r.URL.Query()["field"]...)
	writeJSON(w, http.StatusOK, map[string]any{
		"constants": matches,
		"count":     len(matches),
	})
}

// handleStats returns snapshot statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res := s.snapshot(w)
	if res == nil {
		return
	}
	writeJSON(w, http.StatusOK, res.Stats())
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON: %v", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
