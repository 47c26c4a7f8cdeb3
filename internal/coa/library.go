package coa

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"time"

	"github.com/leonardcser/storefront/internal/cache"
	"github.com/leonardcser/storefront/internal/config"
	"github.com/leonardcser/storefront/internal/logger"
)

// listingTTL is how long bucket listings are served from cache.
const listingTTL = 5 * time.Minute

const placeholder = ".emptyFolderPlaceholder"

// FallbackCategories is served whenever the bucket cannot be listed.
var FallbackCategories = []string{"FLOWER", "VAPE", "EDIBLE", "CONCENTRATE", "MOONWATER"}

// Document is one certificate PDF with the URLs a browser needs.
type Document struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Category    string `json:"category"`
	ViewURL     string `json:"viewUrl"`
	DownloadURL string `json:"downloadUrl"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Lister is the storage surface the library uses.
type Lister interface {
	List(ctx context.Context, prefix string) ([]Object, error)
	SignedURL(ctx context.Context, path string, ttl time.Duration, download bool) (string, error)
	PublicURL(path string, download bool) string
}

// Library lists categories and documents. Storage failures never reach the
// caller: categories fall back to FallbackCategories and files to an empty
// list.
type Library struct {
	store      Lister
	memo       *cache.Memo
	publicURLs bool
	signedTTL  time.Duration
	filesTTL   time.Duration
}

func NewLibrary(store Lister, memo *cache.Memo, cfg config.Storage) *Library {
	ttl := cfg.SignedTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Library{
		store:      store,
		memo:       memo,
		publicURLs: cfg.PublicURLs,
		signedTTL:  ttl,
		filesTTL:   filesTTL(cfg.PublicURLs, ttl),
	}
}

// filesTTL keeps cached file listings well inside the lifetime of the signed
// URLs they carry.
func filesTTL(public bool, signed time.Duration) time.Duration {
	if public {
		return listingTTL
	}
	return min(listingTTL, signed/2)
}

// Categories returns the top-level folder names of the bucket.
func (l *Library) Categories(ctx context.Context) []string {
	r, err := l.memo.Fetch(ctx, "coa:categories", listingTTL, func(ctx context.Context) ([]byte, error) {
		objs, err := l.store.List(ctx, "")
		if err != nil {
			return nil, err
		}
		return json.Marshal(folderNames(objs))
	})
	if err != nil {
		logger.Warnf("coa categories: %v", err)
		return fallback()
	}
	var names []string
	if err := json.Unmarshal(r.Value, &names); err != nil {
		logger.Warnf("coa categories: %v", err)
		return fallback()
	}
	return names
}

// Files returns the PDFs in category with view and download URLs.
func (l *Library) Files(ctx context.Context, category string) []Document {
	category = strings.Trim(category, "/ ")
	if category == "" {
		return []Document{}
	}
	r, err := l.memo.Fetch(ctx, "coa:files:"+category, l.filesTTL, func(ctx context.Context) ([]byte, error) {
		objs, err := l.store.List(ctx, category)
		if err != nil {
			return nil, err
		}
		docs := make([]Document, 0, len(objs))
		for _, o := range objs {
			if !isPDF(o.Name) {
				continue
			}
			p := path.Join(category, o.Name)
			docs = append(docs, Document{
				Name:        o.Name,
				Path:        p,
				Category:    category,
				ViewURL:     l.url(ctx, p, false),
				DownloadURL: l.url(ctx, p, true),
				UpdatedAt:   o.UpdatedAt,
			})
		}
		return json.Marshal(docs)
	})
	if err != nil {
		logger.Warnf("coa files %s: %v", category, err)
		return []Document{}
	}
	var docs []Document
	if err := json.Unmarshal(r.Value, &docs); err != nil {
		logger.Warnf("coa files %s: %v", category, err)
		return []Document{}
	}
	return docs
}

// url signs p unless the deployment serves a public bucket. A failed
// signing falls back to the public URL.
func (l *Library) url(ctx context.Context, p string, download bool) string {
	if l.publicURLs {
		return l.store.PublicURL(p, download)
	}
	u, err := l.store.SignedURL(ctx, p, l.signedTTL, download)
	if err != nil {
		logger.Warnf("sign %s: %v", p, err)
		return l.store.PublicURL(p, download)
	}
	return u
}

func folderNames(objs []Object) []string {
	out := []string{}
	for _, o := range objs {
		if o.Name == "" || o.Name == placeholder || strings.Contains(o.Name, ".") {
			continue
		}
		out = append(out, o.Name)
	}
	return out
}

func isPDF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

func fallback() []string {
	return append([]string(nil), FallbackCategories...)
}
