package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leonardcser/storefront/internal/audit"
	"github.com/leonardcser/storefront/internal/catalog"
	"github.com/leonardcser/storefront/internal/events"
	"github.com/leonardcser/storefront/internal/logger"
)

const maxUpdateBody = 1 << 20

type listingResponse struct {
	Success      bool `json:"success"`
	Status       int  `json:"status"`
	ProductCount int  `json:"productCount"`
	Products     any  `json:"products"`
	Cached       bool `json:"cached"`
}

type productResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Product any  `json:"product"`
	Cached  bool `json:"cached"`
}

type subscriptionsResponse struct {
	Success           bool                   `json:"success"`
	Status            int                    `json:"status"`
	SubscriptionCount int                    `json:"subscriptionCount"`
	Subscriptions     []catalog.Subscription `json:"subscriptions"`
	Cached            bool                   `json:"cached"`
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	l, err := s.catalog.Products(r.Context(), r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cacheHeaders(w, listingCacheControl, l.Cached)
	respondJSON(w, http.StatusOK, listingResponse{
		Success:      true,
		Status:       http.StatusOK,
		ProductCount: len(l.Products),
		Products:     l.Products,
		Cached:       l.Cached,
	})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, err := s.catalog.Product(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cacheHeaders(w, productCacheControl, p.Cached)
	respondJSON(w, http.StatusOK, productResponse{Success: true, Status: http.StatusOK, Product: p.Product, Cached: p.Cached})
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBody))
	if err != nil || !json.Valid(body) {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	updated, err := s.catalog.UpdateProduct(r.Context(), id, body)
	s.record(r, audit.Record{Action: "product.update", ProductIDs: []int64{id}, Outcome: outcome(err)})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.publish(r.Context(), id, events.ActionUpdated)
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, productResponse{Success: true, Status: http.StatusOK, Product: updated, Cached: false})
}

func (s *Server) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, cached, err := s.catalog.Subscriptions(r.Context(), r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cacheHeaders(w, listingCacheControl, cached)
	respondJSON(w, http.StatusOK, subscriptionsResponse{
		Success:           true,
		Status:            http.StatusOK,
		SubscriptionCount: len(subs),
		Subscriptions:     subs,
		Cached:            cached,
	})
}

func (s *Server) listDisplay(w http.ResponseWriter, r *http.Request) {
	products, cached, err := s.catalog.Display(r.Context(), r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cacheHeaders(w, listingCacheControl, cached)
	respondJSON(w, http.StatusOK, listingResponse{
		Success:      true,
		Status:       http.StatusOK,
		ProductCount: len(products),
		Products:     products,
		Cached:       cached,
	})
}

func (s *Server) getDisplay(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, cached, err := s.catalog.DisplayOne(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cacheHeaders(w, productCacheControl, cached)
	respondJSON(w, http.StatusOK, productResponse{Success: true, Status: http.StatusOK, Product: p, Cached: cached})
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid product id")
		return 0, false
	}
	return id, true
}

// publish announces a product change to other instances. Failures are
// logged; the local cache is already invalidated.
func (s *Server) publish(ctx context.Context, id int64, action string) {
	if err := s.events.Publish(ctx, events.NewProductEvent(id, action)); err != nil {
		logger.L().Warn().Err(err).Int64("product_id", id).Msg("publish product event")
	}
}

func (s *Server) record(r *http.Request, rec audit.Record) {
	rec.RequestID = RequestID(r.Context())
	if err := s.audit.Save(context.WithoutCancel(r.Context()), rec); err != nil {
		logger.L().Warn().Err(err).Str("action", rec.Action).Msg("audit record")
	}
}

func outcome(err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
