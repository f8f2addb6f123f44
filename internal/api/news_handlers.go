package api

import (
	"net/http"
	"strings"

	apperrors "github.com/followread/backend/internal/errors"
	"github.com/followread/backend/internal/news"
)

type NewsHandlers struct {
	newsService *news.Service
}

func NewNewsHandlers(newsService *news.Service) *NewsHandlers {
	return &NewsHandlers{newsService: newsService}
}

var validCategories = map[string]bool{
	"":              true,
	"business":      true,
	"entertainment": true,
	"general":       true,
	"health":        true,
	"science":       true,
	"sports":        true,
	"technology":    true,
}

// GetHeadlines handles GET /api/v1/news?category=
func (h *NewsHandlers) GetHeadlines(w http.ResponseWriter, r *http.Request) {
	category := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))
	if !validCategories[category] {
		writeError(w, r, apperrors.ValidationError("unknown news category"))
		return
	}

	headlines, err := h.newsService.Headlines(r.Context(), category)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, headlines)
}
