// Package coa lists certificate-of-analysis PDFs kept in a Supabase Storage
// bucket laid out as CATEGORY/file.pdf.
package coa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leonardcser/storefront/internal/config"
)

const maxListEntries = 1000

// Object is one entry of a bucket listing. Folders come back with a nil ID.
type Object struct {
	ID        *string        `json:"id"`
	Name      string         `json:"name"`
	UpdatedAt string         `json:"updated_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// StorageError is a non-2xx answer from the storage API.
type StorageError struct {
	Op     string
	Status int
	Body   string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

// Storage is a minimal Supabase Storage REST client.
type Storage struct {
	baseURL string
	key     string
	bucket  string
	client  *http.Client
}

func NewStorage(cfg config.Storage, timeout time.Duration) *Storage {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		key:     cfg.Key,
		bucket:  cfg.Bucket,
		client:  &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the client has somewhere to talk to.
func (s *Storage) Configured() bool { return s.baseURL != "" && s.key != "" }

// List returns the entries directly under prefix ("" for the bucket root).
func (s *Storage) List(ctx context.Context, prefix string) ([]Object, error) {
	body := map[string]any{
		"prefix": prefix,
		"limit":  maxListEntries,
		"offset": 0,
		"sortBy": map[string]string{"column": "name", "order": "asc"},
	}
	var out []Object
	if err := s.post(ctx, "list", "/object/list/"+url.PathEscape(s.bucket), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SignedURL returns a time-limited URL for path. With download set the
// storage service answers with an attachment disposition.
func (s *Storage) SignedURL(ctx context.Context, path string, ttl time.Duration, download bool) (string, error) {
	body := map[string]any{"expiresIn": int(ttl / time.Second)}
	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := s.post(ctx, "sign", "/object/sign/"+url.PathEscape(s.bucket)+"/"+escapePath(path), body, &out); err != nil {
		return "", err
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("storage sign: empty signedURL")
	}
	u := s.baseURL + "/storage/v1" + out.SignedURL
	if download {
		u += "&download=" + url.QueryEscape(fileName(path))
	}
	return u, nil
}

// PublicURL builds the unauthenticated URL of path in a public bucket.
func (s *Storage) PublicURL(path string, download bool) string {
	u := s.baseURL + "/storage/v1/object/public/" + url.PathEscape(s.bucket) + "/" + escapePath(path)
	if download {
		u += "?download=" + url.QueryEscape(fileName(path))
	}
	return u
}

func (s *Storage) post(ctx context.Context, op, path string, in, out any) error {
	if !s.Configured() {
		return fmt.Errorf("storage %s: SUPABASE_URL and SUPABASE_KEY are required", op)
	}
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/storage/v1"+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage %s: %w", op, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return fmt.Errorf("storage %s: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > 2048 {
			data = data[:2048]
		}
		return &StorageError{Op: op, Status: resp.StatusCode, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("storage %s: decode: %w", op, err)
	}
	return nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func fileName(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
