package domain

import "time"

// Config represents the complete application configuration
type Config struct {
	Environment string            `mapstructure:"environment"`
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	ExternalAPI ExternalAPIConfig `mapstructure:"external_api"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// StorageConfig selects the profile store backend. Driver is "sqlite"
// or "postgres"; SQLitePath is only read for the sqlite driver.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DatabaseConfig holds PostgreSQL configuration, used when the storage
// driver is postgres.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ExternalAPIConfig groups the drug data service clients
type ExternalAPIConfig struct {
	RxNorm  RxNormConfig  `mapstructure:"rxnorm"`
	OpenFDA OpenFDAConfig `mapstructure:"openfda"`
	OCR     OCRConfig     `mapstructure:"ocr"`
}

// RxNormConfig holds settings for the RxNorm terminology client.
type RxNormConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RxClassBaseURL string        `mapstructure:"rxclass_base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      int           `mapstructure:"rate_limit"`
	MaxCandidates  int           `mapstructure:"max_candidates"`
}

// OpenFDAConfig holds settings for the openFDA adverse-event client.
type OpenFDAConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"`
}

// OCRConfig holds settings for the prescription extraction service.
// Extraction runs a vision model upstream, hence the long default timeout.
type OCRConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds settings for the corroboration result cache. The
// memory tier is always on; the Redis tier activates when RedisURL is
// set.
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	MemorySize  int           `mapstructure:"memory_size"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
