// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredentials is returned by Woo.Validate when any upstream
// credential is unset.
var ErrMissingCredentials = errors.New("config: missing upstream credentials")

// Freshness windows for the catalog proxy.
const (
	ListingTTL = 5 * time.Minute
	ProductTTL = 10 * time.Minute
)

type Woo struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
}

// Missing names the absent credentials by env var, never by value.
func (w Woo) Missing() []string {
	var out []string
	if strings.TrimSpace(w.BaseURL) == "" {
		out = append(out, "WOO_URL")
	}
	if strings.TrimSpace(w.ConsumerKey) == "" {
		out = append(out, "WOO_CONSUMER_KEY")
	}
	if strings.TrimSpace(w.ConsumerSecret) == "" {
		out = append(out, "WOO_CONSUMER_SECRET")
	}
	return out
}

func (w Woo) Validate() error {
	if m := w.Missing(); len(m) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(m, ", "))
	}
	return nil
}

type Storage struct {
	URL        string
	Key        string
	Bucket     string
	PublicURLs bool
	SignedTTL  time.Duration
}

type Config struct {
	Addr            string
	Woo             Woo
	Storage         Storage
	UpstreamTimeout time.Duration

	CacheMaxEntries int
	CacheDB         string
	RedisAddr       string

	RabbitURL string
	MongoURI  string
	MongoDB   string

	AdminToken string
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr: defaultString(getenv("ADDR"), ":8080"),
		Woo: Woo{
			BaseURL:        strings.TrimRight(getenv("WOO_URL"), "/"),
			ConsumerKey:    getenv("WOO_CONSUMER_KEY"),
			ConsumerSecret: getenv("WOO_CONSUMER_SECRET"),
		},
		Storage: Storage{
			URL:    strings.TrimRight(getenv("SUPABASE_URL"), "/"),
			Key:    getenv("SUPABASE_KEY"),
			Bucket: defaultString(getenv("COA_BUCKET"), "coa"),
		},
		CacheDB:    getenv("CACHE_DB"),
		RedisAddr:  getenv("REDIS_ADDR"),
		RabbitURL:  getenv("RABBITMQ_URL"),
		MongoURI:   getenv("MONGO_URI"),
		MongoDB:    defaultString(getenv("MONGO_DB"), "storefront"),
		AdminToken: getenv("ADMIN_TOKEN"),
	}

	var err error
	if cfg.Storage.PublicURLs, err = parseBool(getenv("COA_PUBLIC_URLS"), false); err != nil {
		return Config{}, fmt.Errorf("COA_PUBLIC_URLS: %w", err)
	}
	if cfg.Storage.SignedTTL, err = parseDuration(getenv("COA_SIGNED_TTL"), time.Hour); err != nil {
		return Config{}, fmt.Errorf("COA_SIGNED_TTL: %w", err)
	}
	if cfg.UpstreamTimeout, err = parseDuration(getenv("UPSTREAM_TIMEOUT"), 20*time.Second); err != nil {
		return Config{}, fmt.Errorf("UPSTREAM_TIMEOUT: %w", err)
	}
	if cfg.CacheMaxEntries, err = parseInt(getenv("CACHE_MAX_ENTRIES"), 1024); err != nil {
		return Config{}, fmt.Errorf("CACHE_MAX_ENTRIES: %w", err)
	}
	if cfg.CacheMaxEntries <= 0 {
		return Config{}, fmt.Errorf("CACHE_MAX_ENTRIES must be positive, got %d", cfg.CacheMaxEntries)
	}
	return cfg, nil
}

func defaultString(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func parseBool(v string, d bool) (bool, error) {
	if v == "" {
		return d, nil
	}
	return strconv.ParseBool(v)
}

func parseInt(v string, d int) (int, error) {
	if v == "" {
		return d, nil
	}
	return strconv.Atoi(v)
}

func parseDuration(v string, d time.Duration) (time.Duration, error) {
	if v == "" {
		return d, nil
	}
	return time.ParseDuration(v)
}
