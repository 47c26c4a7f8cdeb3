package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/leonardcser/storefront/internal/config"
	"github.com/leonardcser/storefront/internal/logger"
	"github.com/leonardcser/storefront/internal/woo"
)

// Shared-cache hints for catalog responses.
const (
	listingCacheControl = "public, s-maxage=300, stale-while-revalidate=600"
	productCacheControl = "public, s-maxage=600, stale-while-revalidate=1200"
)

type errorBody struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L().Error().Err(err).Msg("encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// cacheHeaders advertises freshness to shared caches and whether this
// instance answered from its own cache.
func cacheHeaders(w http.ResponseWriter, control string, cached bool) {
	w.Header().Set("Cache-Control", control)
	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
}

// fail maps a catalog error onto the error envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *woo.APIError
	switch {
	case errors.Is(err, config.ErrMissingCredentials):
		respondJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "Missing WooCommerce configuration",
			Missing: s.catalog.Missing(),
		})
	case errors.As(err, &apiErr):
		logger.L().Warn().Str("request_id", RequestID(r.Context())).Err(err).Msg("upstream error")
		respondJSON(w, apiErr.Status, errorBody{
			Error:   fmt.Sprintf("WooCommerce API error: %d %s", apiErr.Status, apiErr.StatusText),
			Details: apiErr.Body,
		})
	default:
		logger.L().Error().Str("request_id", RequestID(r.Context())).Err(err).Msg("request failed")
		respondJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "Internal server error",
			Details: err.Error(),
		})
	}
}
