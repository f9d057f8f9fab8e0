package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "doc-manager-app/pkg/errors"
)

// MaxUploadSize is the per-file upload limit (100 MiB)
const MaxUploadSize int64 = 100 * 1024 * 1024

// AppConfig holds application configuration
type AppConfig struct {
	// Document service
	APIBaseURL string
	APITimeout time.Duration

	// File list
	PageSize          int
	DeleteConcurrency int

	// Upload
	MaxUploadSize int64
	UploadAccept  []string

	// Preview
	PreviewCacheSize int
	PreviewCacheTTL  time.Duration

	LogLevel       string
	KeyringService string

	Storage StorageConfig
}

// StorageConfig describes the S3-compatible store used by diagnostics
type StorageConfig struct {
	Endpoint     string // empty means AWS
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// DefaultConfig returns default application configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		APIBaseURL:        "http://localhost:8080/api",
		APITimeout:        30 * time.Second,
		PageSize:          10,
		DeleteConcurrency: 4,
		MaxUploadSize:     MaxUploadSize,
		UploadAccept:      nil,
		PreviewCacheSize:  32,
		PreviewCacheTTL:   5 * time.Minute,
		LogLevel:          "info",
		KeyringService:    "doc-manager-app",
		Storage: StorageConfig{
			Region:       "us-east-1",
			UsePathStyle: true,
		},
	}
}

// Load reads optional .env files, then the process environment, on top of
// DefaultConfig. Malformed values and failed validation are reported as a
// single INVALID_CONFIG error.
func Load(files ...string) (*AppConfig, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	if len(files) > 0 {
		// godotenv never overrides variables already set in the environment
		if err := godotenv.Load(files...); err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrConfigurationError, "failed to read env file", err)
		}
	}

	def := DefaultConfig()
	e := &envReader{}
	cfg := &AppConfig{
		APIBaseURL:        e.String("API_BASE_URL", def.APIBaseURL),
		APITimeout:        e.Duration("API_TIMEOUT", def.APITimeout),
		PageSize:          e.Int("PAGE_SIZE", def.PageSize),
		DeleteConcurrency: e.Int("DELETE_CONCURRENCY", def.DeleteConcurrency),
		MaxUploadSize:     e.Int64("MAX_UPLOAD_SIZE", def.MaxUploadSize),
		UploadAccept:      e.List("UPLOAD_ACCEPT", def.UploadAccept),
		PreviewCacheSize:  e.Int("PREVIEW_CACHE_SIZE", def.PreviewCacheSize),
		PreviewCacheTTL:   e.Duration("PREVIEW_CACHE_TTL", def.PreviewCacheTTL),
		LogLevel:          e.String("LOG_LEVEL", def.LogLevel),
		KeyringService:    e.String("KEYRING_SERVICE", def.KeyringService),
		Storage: StorageConfig{
			Endpoint:     e.String("S3_ENDPOINT", def.Storage.Endpoint),
			Region:       e.String("S3_REGION", def.Storage.Region),
			Bucket:       e.String("S3_BUCKET", def.Storage.Bucket),
			AccessKey:    e.String("S3_ACCESS_KEY", def.Storage.AccessKey),
			SecretKey:    e.String("S3_SECRET_KEY", def.Storage.SecretKey),
			UsePathStyle: e.Bool("S3_USE_PATH_STYLE", def.Storage.UsePathStyle),
		},
	}

	if len(e.problems) > 0 {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidConfig, strings.Join(e.problems, "; "), nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the controllers cannot work with
func (c *AppConfig) Validate() error {
	var problems []string

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("API_BASE_URL %q must be an absolute http(s) URL", c.APIBaseURL))
	}
	if c.APITimeout <= 0 {
		problems = append(problems, "API_TIMEOUT must be positive")
	}
	if c.PageSize < 1 {
		problems = append(problems, "PAGE_SIZE must be at least 1")
	}
	if c.DeleteConcurrency < 1 {
		problems = append(problems, "DELETE_CONCURRENCY must be at least 1")
	}
	if c.MaxUploadSize < 1 {
		problems = append(problems, "MAX_UPLOAD_SIZE must be positive")
	}
	for _, a := range c.UploadAccept {
		if a == "" || (!strings.HasPrefix(a, ".") && !strings.Contains(a, "/")) {
			problems = append(problems, fmt.Sprintf("UPLOAD_ACCEPT entry %q must be an extension or MIME type", a))
		}
	}
	if c.PreviewCacheSize < 0 {
		problems = append(problems, "PREVIEW_CACHE_SIZE must not be negative")
	}
	if c.PreviewCacheTTL < 0 {
		problems = append(problems, "PREVIEW_CACHE_TTL must not be negative")
	}
	if c.Storage.Endpoint != "" {
		if u, err := url.Parse(c.Storage.Endpoint); err != nil || u.Host == "" {
			problems = append(problems, fmt.Sprintf("S3_ENDPOINT %q must be an absolute URL", c.Storage.Endpoint))
		}
	}

	if len(problems) > 0 {
		return apperrors.NewAppError(apperrors.ErrInvalidConfig, strings.Join(problems, "; "), nil)
	}
	return nil
}

// HasStorage reports whether enough is configured to reach the object store
func (c *AppConfig) HasStorage() bool {
	return c.Storage.Bucket != "" && c.Storage.Region != ""
}

// envReader reads typed values and records every malformed one
type envReader struct {
	problems []string
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) String(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) Int(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (e *envReader) Int64(key string, def int64) int64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (e *envReader) Bool(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s: invalid bool %q", key, v))
		return def
	}
	return b
}

func (e *envReader) Duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

// List splits a comma separated value, dropping blanks
func (e *envReader) List(key string, def []string) []string {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
