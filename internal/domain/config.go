package domain

import "time"

// StoreBackend selects where cache entries and rate-limit state are persisted
type StoreBackend string

const (
	// StoreBackendFile keeps one file per key under the cache path (default)
	StoreBackendFile StoreBackend = "file"
	// StoreBackendSQLite keeps every key in a single SQLite database under the cache path
	StoreBackendSQLite StoreBackend = "sqlite"
)

const (
	DefaultProtocolVersion = 1
	DefaultDomain          = "http://api.anidb.net:9001"
	DefaultDownloadURL     = "http://anidb.net/api/anime-titles.xml.gz"
	DefaultCachePath       = "./cache"
	DefaultDownloadPath    = "./cache"
	DefaultMaxRequests     = 1
	DefaultWindow          = 2 * time.Second
	DefaultRefreshInterval = 24 * time.Hour
)

type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests" validate:"gte=1"`
	Window      time.Duration `mapstructure:"window" validate:"gt=0"`
	// Retention drops rate-window buckets older than this on registration. Zero keeps them forever.
	Retention time.Duration `mapstructure:"retention" validate:"gte=0"`
}

type CacheConfig struct {
	// TTL of a cached response. Zero means entries never expire.
	TTL            time.Duration `mapstructure:"ttl" validate:"gte=0"`
	DeleteOnExpire bool          `mapstructure:"delete_on_expire"`
}

type CatalogConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"gte=1m"`
}

type StoreConfig struct {
	Backend StoreBackend `mapstructure:"backend" validate:"oneof=file sqlite"`
}

// Config is the client configuration. It is built once and never mutated afterwards.
type Config struct {
	Client          string          `mapstructure:"client" validate:"required"`
	ClientVersion   int             `mapstructure:"client_version" validate:"required,gte=1"`
	ProtocolVersion int             `mapstructure:"protocol_version" validate:"gte=1"`
	Domain          string          `mapstructure:"domain" validate:"required,url"`
	DownloadURL     string          `mapstructure:"download_url" validate:"required,url"`
	CachePath       string          `mapstructure:"cache_path" validate:"required"`
	DownloadPath    string          `mapstructure:"download_path" validate:"required"`
	LogLevel        string          `mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	Cache           CacheConfig     `mapstructure:"cache"`
	Catalog         CatalogConfig   `mapstructure:"catalog"`
	Store           StoreConfig     `mapstructure:"store"`
}

// DefaultConfig returns a Config with every optional field set. Client and ClientVersion are left empty.
func DefaultConfig() Config {
	return Config{
		ProtocolVersion: DefaultProtocolVersion,
		Domain:          DefaultDomain,
		DownloadURL:     DefaultDownloadURL,
		CachePath:       DefaultCachePath,
		DownloadPath:    DefaultDownloadPath,
		LogLevel:        "info",
		RateLimit: RateLimitConfig{
			MaxRequests: DefaultMaxRequests,
			Window:      DefaultWindow,
		},
		Catalog: CatalogConfig{
			RefreshInterval: DefaultRefreshInterval,
		},
		Store: StoreConfig{
			Backend: StoreBackendFile,
		},
	}
}
