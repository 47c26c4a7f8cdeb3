package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/leonardcser/storefront/internal/audit"
	"github.com/leonardcser/storefront/internal/events"
	"github.com/leonardcser/storefront/internal/pricing"
)

// AdminTokenHeader authorizes catalog mutations.
const AdminTokenHeader = "X-Admin-Token"

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type auditResponse struct {
	Success bool           `json:"success"`
	Status  int            `json:"status"`
	Records []audit.Record `json:"records"`
}

type pricingResponse struct {
	Success bool           `json:"success"`
	Status  int            `json:"status"`
	Report  pricing.Report `json:"report"`
}

// authorized reports whether the request carries the admin token. With no
// token configured admin routes are closed.
func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if s.adminToken == "" {
		respondError(w, http.StatusForbidden, "Admin endpoints are disabled")
		return false
	}
	got := r.Header.Get(AdminTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) != 1 {
		respondError(w, http.StatusUnauthorized, "Invalid admin token")
		return false
	}
	return true
}

func (s *Server) updateVapePricing(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if s.pricing == nil {
		respondError(w, http.StatusServiceUnavailable, "Pricing job is not configured")
		return
	}
	if m := s.catalog.Missing(); len(m) > 0 {
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "Missing WooCommerce configuration", Missing: m})
		return
	}

	q := r.URL.Query()
	job := pricing.Job{
		Category: q.Get("category"),
		DryRun:   strings.EqualFold(q.Get("dryRun"), "true"),
	}
	if raw := q.Get("options"); raw != "" {
		opts, err := pricing.ParseOptions(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		job.Options = opts
	}

	// A client that hangs up must not leave the category half converted.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.pricingTimeout)
	defer cancel()

	rep, err := pricing.Run(ctx, s.pricing, job)
	changed := rep.Changed()
	s.record(r, audit.Record{
		Action:     "pricing.update-vape",
		ProductIDs: changed,
		DryRun:     job.DryRun,
		Outcome:    pricingOutcome(rep, err),
	})
	if len(changed) > 0 {
		for _, id := range changed {
			s.catalog.InvalidateProduct(id)
			s.publish(ctx, id, events.ActionPriced)
		}
		s.catalog.InvalidateListings()
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, pricingResponse{Success: true, Status: http.StatusOK, Report: rep})
}

func pricingOutcome(rep pricing.Report, err error) string {
	if err != nil {
		return outcome(err)
	}
	return fmt.Sprintf("updated=%d skipped=%d planned=%d failed=%d", rep.Updated, rep.Skipped, rep.Planned, rep.Failed)
}

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	limit := int64(defaultAuditLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}
	recs, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, auditResponse{Success: true, Status: http.StatusOK, Records: recs})
}
