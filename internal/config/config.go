// Package config defines all configuration structures for the GeoInsight
// routing core.  No I/O or parsing logic lives here — only plain data types
// and validation.  The hot-reloadable routing tables (aliases, endpoint
// catalog, scoring weights) are NOT part of this package; they live in the
// registry document consumed by internal/registry.
package config

import (
	"fmt"
	"time"

	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
)

// Version is the build version, overridable at link time.
var Version = "dev"

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// RedisConfig holds connection parameters for the shared result store.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// DatabaseConfig holds PostgreSQL connection parameters for query history.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// KafkaConfig holds event-producer parameters for downstream collaborators.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// MilvusConfig holds the exemplar vector-index connection parameters used by
// the semantic classification layer.
type MilvusConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Addr          string `mapstructure:"addr"`
	Collection    string `mapstructure:"collection"`
	VectorField   string `mapstructure:"vector_field"`
	EndpointField string `mapstructure:"endpoint_field"`
	EmbeddingDim  int    `mapstructure:"embedding_dim"`
	DefaultTopK   int    `mapstructure:"default_top_k"`
}

// EmbeddingConfig holds the embedding serving backend parameters.  When the
// backend is absent the semantic layer degrades to no-opinion.
type EmbeddingConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig points at the analysis service the selected endpoints
// are called on.
type AnalysisConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerInterval  time.Duration `mapstructure:"breaker_interval"`
}

// CacheConfig holds ResultCache tunables.
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	MaxEntries      int           `mapstructure:"max_entries"`
	SharedStore     bool          `mapstructure:"shared_store"` // write-through to redis
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RegistryConfig points at the hot-reloadable registry document.
type RegistryConfig struct {
	Path        string `mapstructure:"path"`
	WatchReload bool   `mapstructure:"watch_reload"`
}

// Config is the root configuration aggregate.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Analysis  AnalysisConfig    `mapstructure:"analysis"`
	Log       logging.LogConfig `mapstructure:"log"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Kafka     KafkaConfig       `mapstructure:"kafka"`
	Milvus    MilvusConfig      `mapstructure:"milvus"`
	Embedding EmbeddingConfig   `mapstructure:"embedding"`
	Cache     CacheConfig       `mapstructure:"cache"`
	Registry  RegistryConfig    `mapstructure:"registry"`
}

// Validate checks cross-field consistency.  Defaults must already be applied.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug|release|test, got %q", c.Server.Mode)
	}
	if c.Analysis.BaseURL == "" {
		return fmt.Errorf("analysis.base_url must be set")
	}
	if c.Registry.Path == "" {
		return fmt.Errorf("registry.path must be set")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must be set when redis is enabled")
	}
	if c.Database.Enabled && c.Database.Host == "" {
		return fmt.Errorf("database.host must be set when database is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must be set when kafka is enabled")
	}
	if c.Milvus.Enabled {
		if c.Milvus.Addr == "" {
			return fmt.Errorf("milvus.addr must be set when milvus is enabled")
		}
		if c.Milvus.EmbeddingDim <= 0 {
			return fmt.Errorf("milvus.embedding_dim must be positive")
		}
	}
	if c.Embedding.Enabled && c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url must be set when embedding is enabled")
	}
	return nil
}
