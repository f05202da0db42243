package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Search store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Capacity evaluation modes.
const (
	CapacityModeBatch    = "batch"
	CapacityModeParallel = "parallel"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
	Search    SearchConfig    `mapstructure:"search"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	ReadTimeout    int `mapstructure:"read_timeout"`
	WriteTimeout   int `mapstructure:"write_timeout"`
	RequestTimeout int `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	// AuditEvery is the audit schedule interval in minutes.
	AuditEvery int `mapstructure:"audit_every"`
	// AuditHorizon is how many hours ahead each audit looks.
	AuditHorizon int `mapstructure:"audit_horizon"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SearchConfig tunes the availability search engine.
type SearchConfig struct {
	DefaultRadiusKm float64 `mapstructure:"default_radius_km"`
	Store           string  `mapstructure:"store"`
	CapacityMode    string  `mapstructure:"capacity_mode"`
	Parallelism     int     `mapstructure:"parallelism"`
	// CandidateCacheTTL is in seconds; 0 disables the candidate cache.
	CandidateCacheTTL int  `mapstructure:"candidate_cache_ttl"`
	SnapshotReads     bool `mapstructure:"snapshot_reads"`
	// ReloadInterval is in seconds; 0 reloads the memory store only on events.
	ReloadInterval int `mapstructure:"reload_interval"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.request_timeout", 15)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "stasher")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "stashpoint")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "stashpoint-audit")
	v.SetDefault("temporal.audit_every", 60)
	v.SetDefault("temporal.audit_horizon", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("search.default_radius_km", 10.0)
	v.SetDefault("search.store", StorePostgres)
	v.SetDefault("search.capacity_mode", CapacityModeBatch)
	v.SetDefault("search.parallelism", 8)
	v.SetDefault("search.candidate_cache_ttl", 60)
	v.SetDefault("search.snapshot_reads", true)
	v.SetDefault("search.reload_interval", 300)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: STASHPOINT_SEARCH_DEFAULT_RADIUS_KM → search.default_radius_km
	v.SetEnvPrefix("STASHPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "database.max_conns must be positive")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "server.request_timeout must be positive")
	}
	if c.Search.DefaultRadiusKm <= 0 {
		errs = append(errs, fmt.Sprintf("search.default_radius_km must be positive, got %g", c.Search.DefaultRadiusKm))
	}
	switch c.Search.Store {
	case StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Sprintf("search.store must be %q or %q, got %q", StorePostgres, StoreMemory, c.Search.Store))
	}
	switch c.Search.CapacityMode {
	case CapacityModeBatch, CapacityModeParallel:
	default:
		errs = append(errs, fmt.Sprintf("search.capacity_mode must be %q or %q, got %q", CapacityModeBatch, CapacityModeParallel, c.Search.CapacityMode))
	}
	if c.Search.Parallelism <= 0 {
		errs = append(errs, "search.parallelism must be positive")
	}
	if c.Search.CandidateCacheTTL < 0 {
		errs = append(errs, "search.candidate_cache_ttl must not be negative")
	}
	if c.Search.ReloadInterval < 0 {
		errs = append(errs, "search.reload_interval must not be negative")
	}
	// A postgres snapshot is a single transaction, which cannot serve
	// concurrent queries.
	if c.Search.Store == StorePostgres && c.Search.SnapshotReads && c.Search.CapacityMode == CapacityModeParallel {
		errs = append(errs, "search.snapshot_reads cannot be combined with search.capacity_mode=parallel on the postgres store")
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}
	if c.Temporal.AuditEvery <= 0 || c.Temporal.AuditHorizon <= 0 {
		errs = append(errs, "temporal.audit_every and temporal.audit_horizon must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
