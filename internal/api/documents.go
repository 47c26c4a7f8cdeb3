package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/leonardcser/storefront/internal/coa"
)

type categoriesResponse struct {
	Success    bool     `json:"success"`
	Status     int      `json:"status"`
	Categories []string `json:"categories"`
}

type documentsResponse struct {
	Success   bool           `json:"success"`
	Status    int            `json:"status"`
	Category  string         `json:"category"`
	FileCount int            `json:"fileCount"`
	Files     []coa.Document `json:"files"`
}

// Storage failures degrade inside the library, so these handlers never fail.
func (s *Server) listCOACategories(w http.ResponseWriter, r *http.Request) {
	cats := s.documents.Categories(r.Context())
	w.Header().Set("Cache-Control", listingCacheControl)
	respondJSON(w, http.StatusOK, categoriesResponse{Success: true, Status: http.StatusOK, Categories: cats})
}

func (s *Server) listCOAFiles(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(chi.URLParam(r, "category"))
	files := s.documents.Files(r.Context(), category)
	// Signed URLs expire, so shared caches must not outlive the listing.
	w.Header().Set("Cache-Control", "private, max-age=300")
	respondJSON(w, http.StatusOK, documentsResponse{
		Success:   true,
		Status:    http.StatusOK,
		Category:  category,
		FileCount: len(files),
		Files:     files,
	})
}
