package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/quorumworks/logbook/internal/api"
	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/search"
)

type SearchService interface {
	Search(ctx context.Context, input search.SearchInput) (*search.SearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// Search runs a full-text query. Privacy levels come from the caller as a
// comma-separated list and default to shared only.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		api.Error(w, http.StatusBadRequest, "q is required")
		return
	}

	levels := []domain.PrivacyLevel{domain.PrivacyShared}
	if raw := r.URL.Query().Get("privacy"); raw != "" {
		levels = levels[:0]
		for _, part := range strings.Split(raw, ",") {
			level := domain.PrivacyLevel(strings.TrimSpace(part))
			if !domain.IsValidPrivacyLevel(level) {
				api.Error(w, http.StatusBadRequest, "invalid privacy level")
				return
			}
			levels = append(levels, level)
		}
	}

	var limit, offset int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = parsed
	}

	result, err := h.svc.Search(r.Context(), search.SearchInput{
		Query:         query,
		PrivacyLevels: levels,
		DocType:       r.URL.Query().Get("doc_type"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}
