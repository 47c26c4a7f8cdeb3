// Package api is the storefront's HTTP surface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leonardcser/storefront/internal/audit"
	"github.com/leonardcser/storefront/internal/catalog"
	"github.com/leonardcser/storefront/internal/coa"
	"github.com/leonardcser/storefront/internal/events"
	"github.com/leonardcser/storefront/internal/pricing"
)

const (
	requestTimeout = 60 * time.Second
	// DefaultPricingTimeout bounds a pricing run started over HTTP.
	DefaultPricingTimeout = 10 * time.Minute
)

// Deps are the collaborators the handlers use. Events and Audit may be nil.
type Deps struct {
	Catalog        *catalog.Service
	Documents      *coa.Library
	Pricing        pricing.Store
	Events         events.Publisher
	Audit          audit.Recorder
	AdminToken     string
	PricingTimeout time.Duration
}

type Server struct {
	catalog        *catalog.Service
	documents      *coa.Library
	pricing        pricing.Store
	events         events.Publisher
	audit          audit.Recorder
	adminToken     string
	pricingTimeout time.Duration
}

func NewServer(d Deps) *Server {
	s := &Server{
		catalog:        d.Catalog,
		documents:      d.Documents,
		pricing:        d.Pricing,
		events:         d.Events,
		audit:          d.Audit,
		adminToken:     d.AdminToken,
		pricingTimeout: d.PricingTimeout,
	}
	if s.pricingTimeout <= 0 {
		s.pricingTimeout = DefaultPricingTimeout
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	return s
}

// Router mounts every route behind the request id, access log and panic
// recovery middleware. The pricing job runs under its own deadline rather
// than the request timeout.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(recoverer)

	r.With(middleware.Timeout(requestTimeout)).Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/woo-products/update-vape-pricing", s.updateVapePricing)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/woo-products", s.listProducts)
			r.Get("/woo-products/{id}", s.getProduct)
			r.Put("/woo-products/{id}", s.updateProduct)
			r.Get("/woo-subscriptions", s.listSubscriptions)

			r.Get("/catalog", s.listDisplay)
			r.Get("/catalog/{id}", s.getDisplay)

			r.Get("/coa", s.listCOACategories)
			r.Get("/coa/{category}", s.listCOAFiles)

			r.Get("/cache/stats", s.cacheStats)
			r.Get("/admin/audit", s.listAudit)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  http.StatusOK,
		"stats":   s.catalog.Memo().Stats(),
	})
}
