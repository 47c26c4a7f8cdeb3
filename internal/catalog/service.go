package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/leonardcser/storefront/internal/cache"
	"github.com/leonardcser/storefront/internal/config"
	"github.com/leonardcser/storefront/internal/logger"
	"github.com/leonardcser/storefront/internal/woo"
	"golang.org/x/sync/errgroup"
)

// variationFetchLimit bounds concurrent variation calls for one listing.
const variationFetchLimit = 8

// Upstream is the part of the WooCommerce client the catalog needs.
type Upstream interface {
	Config() config.Woo
	ListProducts(ctx context.Context, q url.Values) ([]byte, error)
	GetProduct(ctx context.Context, id int64) ([]byte, error)
	UpdateProduct(ctx context.Context, id int64, body any) ([]byte, error)
	ListVariations(ctx context.Context, id int64) ([]byte, error)
}

// Listing is a product collection as WooCommerce returned it.
type Listing struct {
	Products []json.RawMessage
	Cached   bool
}

// Single is one product as WooCommerce returned it.
type Single struct {
	Product json.RawMessage
	Cached  bool
}

// Service is the catalog proxy: upstream calls go through one shared Memo.
type Service struct {
	woo  Upstream
	memo *cache.Memo
}

func NewService(up Upstream, memo *cache.Memo) *Service {
	return &Service{woo: up, memo: memo}
}

// Memo exposes the cache, for stats and invalidation by event consumers.
func (s *Service) Memo() *cache.Memo { return s.memo }

// Missing names the unset upstream credentials.
func (s *Service) Missing() []string { return s.woo.Config().Missing() }

// Products lists products for the recognized parameters in q.
func (s *Service) Products(ctx context.Context, q url.Values) (Listing, error) {
	if err := s.woo.Config().Validate(); err != nil {
		return Listing{}, err
	}
	query := woo.ListQuery(q)
	key := woo.CacheKey("/products", query)
	r, err := s.memo.Fetch(ctx, key, config.ListingTTL, func(ctx context.Context) ([]byte, error) {
		logger.Debugf("upstream fetch %s", key)
		return s.woo.ListProducts(ctx, query)
	})
	if err != nil {
		return Listing{}, err
	}
	var products []json.RawMessage
	if err := json.Unmarshal(r.Value, &products); err != nil {
		return Listing{}, fmt.Errorf("decode product listing: %w", err)
	}
	return Listing{Products: products, Cached: r.Cached}, nil
}

// Product fetches one product by id.
func (s *Service) Product(ctx context.Context, id int64) (Single, error) {
	if err := s.woo.Config().Validate(); err != nil {
		return Single{}, err
	}
	key := woo.CacheKey(woo.ProductPath(id), nil)
	r, err := s.memo.Fetch(ctx, key, config.ProductTTL, func(ctx context.Context) ([]byte, error) {
		logger.Debugf("upstream fetch %s", key)
		return s.woo.GetProduct(ctx, id)
	})
	if err != nil {
		return Single{}, err
	}
	if !json.Valid(r.Value) {
		return Single{}, fmt.Errorf("decode product %d: invalid json", id)
	}
	return Single{Product: json.RawMessage(r.Value), Cached: r.Cached}, nil
}

// UpdateProduct forwards body upstream and drops the product's cached
// entries. Listings that include it stay cached until their window ends.
func (s *Service) UpdateProduct(ctx context.Context, id int64, body json.RawMessage) (json.RawMessage, error) {
	if err := s.woo.Config().Validate(); err != nil {
		return nil, err
	}
	b, err := s.woo.UpdateProduct(ctx, id, body)
	if err != nil {
		return nil, err
	}
	s.InvalidateProduct(id)
	return json.RawMessage(b), nil
}

// InvalidateProduct drops the cached record and variations of product id.
func (s *Service) InvalidateProduct(id int64) {
	s.memo.Invalidate(woo.CacheKey(woo.ProductPath(id), nil))
	s.memo.InvalidatePrefix("GET " + woo.ProductPath(id) + "/")
}

// InvalidateListings drops every cached product listing.
func (s *Service) InvalidateListings() int {
	return s.memo.InvalidatePrefix(woo.CacheKey("/products", nil) + "?")
}

// Variations returns the variation records of a product.
func (s *Service) Variations(ctx context.Context, id int64) ([]woo.Variation, error) {
	key := woo.CacheKey(woo.VariationsPath(id), woo.VariationQuery())
	r, err := s.memo.Fetch(ctx, key, config.ProductTTL, func(ctx context.Context) ([]byte, error) {
		return s.woo.ListVariations(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	var vs []woo.Variation
	if err := json.Unmarshal(r.Value, &vs); err != nil {
		return nil, fmt.Errorf("decode variations of %d: %w", id, err)
	}
	return vs, nil
}

// Display lists transformed products. Variation lookups that fail leave the
// product on its default price table.
func (s *Service) Display(ctx context.Context, q url.Values) ([]DisplayProduct, bool, error) {
	l, err := s.Products(ctx, q)
	if err != nil {
		return nil, false, err
	}
	products := make([]woo.Product, 0, len(l.Products))
	for _, raw := range l.Products {
		var p woo.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			logger.Warnf("skipping undecodable product: %v", err)
			continue
		}
		products = append(products, p)
	}

	variations := make([][]woo.Variation, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(variationFetchLimit)
	for i, p := range products {
		if !hasVariations(p) {
			continue
		}
		g.Go(func() error {
			vs, err := s.Variations(gctx, p.ID)
			if err != nil {
				logger.Warnf("variations of product %d: %v", p.ID, err)
				return nil
			}
			variations[i] = vs
			return nil
		})
	}
	_ = g.Wait()

	out := make([]DisplayProduct, len(products))
	for i, p := range products {
		out[i] = Transform(p, variations[i])
	}
	return out, l.Cached, nil
}

// DisplayOne returns one transformed product.
func (s *Service) DisplayOne(ctx context.Context, id int64) (DisplayProduct, bool, error) {
	single, err := s.Product(ctx, id)
	if err != nil {
		return DisplayProduct{}, false, err
	}
	var p woo.Product
	if err := json.Unmarshal(single.Product, &p); err != nil {
		return DisplayProduct{}, false, fmt.Errorf("decode product %d: %w", id, err)
	}
	var vs []woo.Variation
	if hasVariations(p) {
		if vs, err = s.Variations(ctx, id); err != nil {
			logger.Warnf("variations of product %d: %v", id, err)
		}
	}
	return Transform(p, vs), single.Cached, nil
}

func hasVariations(p woo.Product) bool {
	return strings.EqualFold(p.Type, "variable") || len(p.Variations) > 0
}
