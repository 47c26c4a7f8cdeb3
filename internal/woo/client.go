// Package woo is a small client for the WooCommerce REST API (wc/v3).
package woo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/leonardcser/storefront/internal/config"
)

const (
	apiPrefix       = "/wp-json/wc/v3"
	MaxResponseSize = 8 * 1024 * 1024 // 8MB
	maxErrorBody    = 2 * 1024
)

// Recognized listing parameters; anything else a client sends is dropped.
var listParams = []string{"per_page", "page", "search", "category", "tag", "status", "featured"}

// Defaults applied to every listing query.
const (
	DefaultPerPage = "100"
	DefaultStatus  = "publish"
)

// APIError is a non-2xx answer from WooCommerce.
type APIError struct {
	Method     string
	Path       string
	Status     int
	StatusText string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("woo: %s %s: %d %s", e.Method, e.Path, e.Status, e.StatusText)
}

// Client talks to one store. Credentials travel as HTTP Basic auth only, so
// request URLs (and the cache keys derived from them) never carry secrets.
type Client struct {
	cfg    config.Woo
	client *http.Client
}

func NewClient(cfg config.Woo, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// Config exposes the credentials the client was built with.
func (c *Client) Config() config.Woo { return c.cfg }

// ListQuery keeps only the recognized listing parameters (first value wins)
// and applies the defaults.
func ListQuery(in url.Values) url.Values {
	out := url.Values{}
	for _, k := range listParams {
		if v := strings.TrimSpace(in.Get(k)); v != "" {
			out.Set(k, v)
		}
	}
	if out.Get("per_page") == "" {
		out.Set("per_page", DefaultPerPage)
	}
	if out.Get("status") == "" {
		out.Set("status", DefaultStatus)
	}
	return out
}

// CacheKey identifies a GET by path and canonical query. url.Values.Encode
// sorts by key, so equivalent requests produce identical keys.
func CacheKey(path string, q url.Values) string {
	key := "GET " + path
	if enc := q.Encode(); enc != "" {
		key += "?" + enc
	}
	return key
}

// ProductPath is the resource path of one product.
func ProductPath(id int64) string { return "/products/" + strconv.FormatInt(id, 10) }

// VariationsPath is the resource path of a product's variations.
func VariationsPath(id int64) string { return ProductPath(id) + "/variations" }

func (c *Client) ListProducts(ctx context.Context, q url.Values) ([]byte, error) {
	return c.Get(ctx, "/products", q)
}

func (c *Client) GetProduct(ctx context.Context, id int64) ([]byte, error) {
	return c.Get(ctx, ProductPath(id), nil)
}

// UpdateProduct sends body as the PUT payload and returns the updated record.
func (c *Client) UpdateProduct(ctx context.Context, id int64, body any) ([]byte, error) {
	return c.Do(ctx, http.MethodPut, ProductPath(id), nil, body)
}

func (c *Client) ListVariations(ctx context.Context, id int64) ([]byte, error) {
	return c.Get(ctx, VariationsPath(id), VariationQuery())
}

// VariationQuery is the fixed query used for variation listings.
func VariationQuery() url.Values { return url.Values{"per_page": {DefaultPerPage}} }

func (c *Client) BatchVariations(ctx context.Context, id int64, batch BatchVariations) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, VariationsPath(id)+"/batch", nil, batch)
}

func (c *Client) ListCategories(ctx context.Context, q url.Values) ([]byte, error) {
	return c.Get(ctx, "/products/categories", q)
}

// CategoryBySlug resolves a category slug to its id.
func (c *Client) CategoryBySlug(ctx context.Context, slug string) (Term, error) {
	b, err := c.ListCategories(ctx, url.Values{"slug": {slug}})
	if err != nil {
		return Term{}, err
	}
	var terms []Term
	if err := json.Unmarshal(b, &terms); err != nil {
		return Term{}, fmt.Errorf("decode categories: %w", err)
	}
	for _, t := range terms {
		if t.Slug == slug {
			return t, nil
		}
	}
	return Term{}, fmt.Errorf("woo: category %q not found", slug)
}

func (c *Client) Get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, q, nil)
}

// Do performs one API call and returns the raw response body.
func (c *Client) Do(ctx context.Context, method, path string, q url.Values, body any) ([]byte, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	endpoint := c.cfg.BaseURL + apiPrefix + path
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}

	var rdr io.Reader
	if body != nil {
		var b []byte
		switch v := body.(type) {
		case json.RawMessage:
			b = v
		case []byte:
			b = v
		default:
			var err error
			if b, err = json.Marshal(v); err != nil {
				return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
			}
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// url.Error repeats the URL; it carries no credentials.
		return nil, fmt.Errorf("woo: %s %s: %w", method, path, unwrapURLError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("woo: read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &APIError{
			Method:     method,
			Path:       path,
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       string(data),
		}
	}
	return data, nil
}

func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
