package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oxidized-project/oxidized/internal/domain"
)

const defaultPostsPerPage = 100

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"hello": "world"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	page := int64(1)
	if v := r.URL.Query().Get("page"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		page = parsed
	}

	perPage := int64(defaultPostsPerPage)
	if v := r.URL.Query().Get("posts_per_page"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		perPage = parsed
	}

	posts, numPages, err := s.store.FindTorrentsInPage(r.Context(), page, perPage)
	if err != nil {
		status := http.StatusInternalServerError
		if err == domain.ErrInvalidPage {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"posts":     posts,
		"num_pages": numPages,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	infoHash := chi.URLParam(r, "info_hash")

	start := time.Now()
	torrent, err := s.store.FindTorrentByInfoHash(r.Context(), infoHash)
	speedMS := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		status := http.StatusInternalServerError
		if err == domain.ErrTorrentNotFound {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"torrent": torrent,
		"speed":   speedMS,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := s.store.GetStats(r.Context())
	speedMS := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats": stats,
		"speed": speedMS,
	})
}

type addRequest struct {
	InfoHash string `json:"info_hash"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	torrent, err := s.store.CreateTorrent(r.Context(), req.InfoHash)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"torrent": torrent})
}
