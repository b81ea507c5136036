// Package handlers exposes the HTTP API. Lookups that miss every tier
// return 404 with a JSON body; soft internal failures never surface as
// errors to clients.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"bookvault/internal/common/errors"
	"bookvault/internal/common/logging"
	"bookvault/internal/covers"
	"bookvault/internal/service"
)

type Handlers struct {
	books     *service.BookService
	search    *service.SearchService
	recommend *service.RecommendationService
	coverSvc  *service.CoverService
	health    func() map[string]string
	logger    logging.Logger
}

func New(books *service.BookService, search *service.SearchService, recommend *service.RecommendationService, coverSvc *service.CoverService, health func() map[string]string, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		books:     books,
		search:    search,
		recommend: recommend,
		coverSvc:  coverSvc,
		health:    health,
		logger:    logger,
	}
}

// RegisterRoutes attaches every endpoint to the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/books/{id}", h.GetBook).Methods("GET")
	api.HandleFunc("/books/{id}/cover", h.GetCover).Methods("GET")
	api.HandleFunc("/books/{id}/provenance", h.GetProvenance).Methods("GET")
	api.HandleFunc("/books/{id}/recommendations", h.GetRecommendations).Methods("GET")
	api.HandleFunc("/books/{id}/cache", h.InvalidateBook).Methods("DELETE")
	api.HandleFunc("/search", h.Search).Methods("GET")
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if h.health != nil {
		status = h.health()
	}

	code := http.StatusOK
	for _, v := range status {
		if v != "ok" {
			code = http.StatusServiceUnavailable
			break
		}
	}
	respondJSON(w, code, status)
}

func (h *Handlers) GetBook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	book, err := h.books.GetBook(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, book)
}

func (h *Handlers) GetCover(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	pref := covers.ParsePreference(r.URL.Query().Get("pref"))

	details, err := h.coverSvc.GetCover(r.Context(), id, pref)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, details)
}

func (h *Handlers) GetProvenance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	prov, err := h.coverSvc.GetProvenance(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, prov)
}

func (h *Handlers) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	books, err := h.recommend.Recommend(r.Context(), id, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"book_id":         id,
		"recommendations": books,
	})
}

func (h *Handlers) InvalidateBook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.books.InvalidateBook(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "evicted", "id": id})
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.search.Search(r.Context(), query, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func (h *Handlers) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.IsNotFound(err):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.IsType(err, errors.ErrTypeValidation):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("Request failed", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func respondJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
