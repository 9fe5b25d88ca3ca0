// Package api exposes the indexer's read surface: a small JSON API plus a
// Torznab search feed, guarded by a single configured API key. Routing and
// middleware mirror the original indexer's Rocket fairing-based router,
// expressed with chi per the rest of the pack's HTTP services.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/oxidized-project/oxidized/internal/filter"
	"github.com/oxidized-project/oxidized/internal/store"
)

// Server wires handlers to a chi router.
type Server struct {
	store  *store.Store
	filter *filter.Filter
	apiKey string
}

// New builds the router. apiKey may be empty, in which case every request
// that carries no key is accepted (matching the original guard's
// empty-string-equals-empty-string comparison when no key is configured);
// a request that does carry a non-empty key is still rejected.
func New(st *store.Store, ft *filter.Filter, apiKey string) http.Handler {
	s := &Server{store: st, filter: ft, apiKey: apiKey}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", s.handleIndex)
	r.Get("/stats", s.requireAuth(s.handleStats))
	r.Get("/list", s.requireAuth(s.handleList))
	r.Post("/add", s.requireAuth(s.handleAdd))
	r.Get("/api", s.requireAuth(s.handleTorznab))
	r.Get("/{info_hash}", s.requireAuth(s.handleGet))

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("took", time.Since(start)).Msg("request")
	})
}

// requireAuth enforces the single-API-key check: GET requests read
// ?apikey=, POST requests read Authorization: Bearer <key>. Missing or
// mismatched keys return 401.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var got string
		switch r.Method {
		case http.MethodGet:
			got = r.URL.Query().Get("apikey")
		case http.MethodPost:
			got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}

		if got != s.apiKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}
