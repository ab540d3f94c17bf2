// Package config loads and validates app config from env and an optional .env file using Viper.
// The same Config serves every binary; each binary checks the fields it needs (see RequireGateway, RequireWorker).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinLeasePerEvent is the worst-case time one event can hold a tick: the 1s, 2s and 4s retry waits.
const MinLeasePerEvent = 7 * time.Second

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gateway gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN for the outbox and mapping tables. Required by server, migrate, seed and syncctl.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// GatewayAddr is the gateway address the worker dials (e.g. localhost:8080).
	GatewayAddr string `mapstructure:"GATEWAY_ADDR"`
	// GatewayTLS makes the worker dial the gateway over TLS with system roots.
	GatewayTLS bool `mapstructure:"GATEWAY_TLS"`
	// GatewayTokenPrivateKey is the PEM private key (RSA or ECDSA) or path to file the worker signs service tokens with.
	GatewayTokenPrivateKey string `mapstructure:"GATEWAY_TOKEN_PRIVATE_KEY"`
	// GatewayTokenPublicKey is the PEM public key or path the server verifies service tokens with.
	// When empty on the server, gateway authentication is disabled (development only).
	GatewayTokenPublicKey string `mapstructure:"GATEWAY_TOKEN_PUBLIC_KEY"`
	// GatewayTokenIssuer is the iss claim of service tokens.
	GatewayTokenIssuer string `mapstructure:"GATEWAY_TOKEN_ISSUER"`
	// GatewayTokenAudience is the aud claim of service tokens.
	GatewayTokenAudience string `mapstructure:"GATEWAY_TOKEN_AUDIENCE"`
	// GatewayTokenTTL is the service token lifetime (e.g. "5m").
	GatewayTokenTTL string `mapstructure:"GATEWAY_TOKEN_TTL"`

	// DiscordBotToken authenticates guild mutations. Required by the worker.
	DiscordBotToken string `mapstructure:"DISCORD_BOT_TOKEN"`
	// DiscordAPIBaseURL overrides the Discord REST base URL (tests, proxies).
	DiscordAPIBaseURL string `mapstructure:"DISCORD_API_BASE_URL"`

	// SyncPollInterval is the tick interval of both dispatch loops (default 5s).
	SyncPollInterval string `mapstructure:"SYNC_POLL_INTERVAL"`
	// SyncBatchSize is the number of events fetched per tick (default 50).
	SyncBatchSize int `mapstructure:"SYNC_BATCH_SIZE"`
	// SyncMaxAttempts caps failed deliveries per event; 0 retries forever.
	SyncMaxAttempts int `mapstructure:"SYNC_MAX_ATTEMPTS"`
	// SyncClaimLease, when set (e.g. "10m"), makes the gateway lease batches to the calling worker.
	// The lease must outlast a full tick, so it is at least SYNC_BATCH_SIZE x MinLeasePerEvent.
	SyncClaimLease string `mapstructure:"SYNC_CLAIM_LEASE"`

	// WorkerID names this worker in service tokens, claims and outcomes. Defaults to the hostname.
	WorkerID string `mapstructure:"WORKER_ID"`
	// WorkerHTTPAddr is the worker's ops HTTP address for /healthz and /readyz; empty disables it.
	WorkerHTTPAddr string `mapstructure:"WORKER_HTTP_ADDR"`

	// OTLPEndpoint is the OTLP gRPC collector (e.g. localhost:4317); empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name; each binary supplies its own default.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses for sync outcomes (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SyncKafkaTopic is the topic outcomes are written to.
	SyncKafkaTopic string `mapstructure:"SYNC_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of the outcome relay.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL, when set and Kafka is not, makes the worker push outcomes straight to Loki (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("GATEWAY_ADDR", "localhost:8080")
	v.SetDefault("GATEWAY_TLS", false)
	v.SetDefault("GATEWAY_TOKEN_PRIVATE_KEY", "")
	v.SetDefault("GATEWAY_TOKEN_PUBLIC_KEY", "")
	v.SetDefault("GATEWAY_TOKEN_ISSUER", "guild-sync-worker")
	v.SetDefault("GATEWAY_TOKEN_AUDIENCE", "guild-sync-gateway")
	v.SetDefault("GATEWAY_TOKEN_TTL", "5m")
	v.SetDefault("DISCORD_BOT_TOKEN", "")
	v.SetDefault("DISCORD_API_BASE_URL", "")
	v.SetDefault("SYNC_POLL_INTERVAL", "5s")
	v.SetDefault("SYNC_BATCH_SIZE", 50)
	v.SetDefault("SYNC_MAX_ATTEMPTS", 0)
	v.SetDefault("SYNC_CLAIM_LEASE", "")
	v.SetDefault("WORKER_ID", "")
	v.SetDefault("WORKER_HTTP_ADDR", ":8081")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SYNC_KAFKA_TOPIC", "guild-sync-outcomes")
	v.SetDefault("KAFKA_GROUP_ID", "guild-sync-outcome-relay")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.SyncBatchSize <= 0 || cfg.SyncBatchSize > 500 {
		return nil, errors.New("config: SYNC_BATCH_SIZE must be between 1 and 500")
	}
	if cfg.SyncMaxAttempts < 0 {
		return nil, errors.New("config: SYNC_MAX_ATTEMPTS must not be negative")
	}
	if cfg.SyncClaimLease != "" {
		d, err := time.ParseDuration(cfg.SyncClaimLease)
		if err != nil || d <= 0 {
			return nil, errors.New("config: SYNC_CLAIM_LEASE must be a positive duration")
		}
		if floor := time.Duration(cfg.SyncBatchSize) * MinLeasePerEvent; d < floor {
			return nil, fmt.Errorf("config: SYNC_CLAIM_LEASE %s is shorter than a full batch (%d events x %s = %s)", d, cfg.SyncBatchSize, MinLeasePerEvent, floor)
		}
	}
	if cfg.WorkerID == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.WorkerID = host
		}
	}

	return &cfg, nil
}

// RequireDatabase returns an error unless DATABASE_URL is set.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	return nil
}

// RequireWorker returns an error unless the worker can reach both the gateway and Discord.
func (c *Config) RequireWorker() error {
	if c.GatewayAddr == "" {
		return errors.New("config: GATEWAY_ADDR must be set")
	}
	if c.DiscordBotToken == "" {
		return errors.New("config: DISCORD_BOT_TOKEN must be set")
	}
	if c.WorkerID == "" {
		return errors.New("config: WORKER_ID must be set")
	}
	if c.Env == "production" && c.GatewayTokenPrivateKey == "" {
		return errors.New("config: GATEWAY_TOKEN_PRIVATE_KEY must be set when APP_ENV=production")
	}
	return nil
}

// RequireGateway returns an error unless the gateway server has a database, and in production a token key.
func (c *Config) RequireGateway() error {
	if err := c.RequireDatabase(); err != nil {
		return err
	}
	if c.Env == "production" && c.GatewayTokenPublicKey == "" {
		return errors.New("config: GATEWAY_TOKEN_PUBLIC_KEY must be set when APP_ENV=production")
	}
	return nil
}

// RequireRelay returns an error unless the outcome relay has both Kafka and Loki to bridge.
func (c *Config) RequireRelay() error {
	if len(c.KafkaBrokersList()) == 0 || c.SyncKafkaTopic == "" {
		return errors.New("config: KAFKA_BROKERS and SYNC_KAFKA_TOPIC must be set")
	}
	if c.LokiURL == "" {
		return errors.New("config: LOKI_URL must be set")
	}
	return nil
}

// PollInterval parses SyncPollInterval. Returns 5s if unset or invalid.
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.SyncPollInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// ClaimLease parses SyncClaimLease. Returns 0 (no claiming) if unset.
func (c *Config) ClaimLease() time.Duration {
	d, err := time.ParseDuration(c.SyncClaimLease)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// TokenTTL parses GatewayTokenTTL. Returns 5m if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.GatewayTokenTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ServiceNameOr returns ServiceName, or def when unset.
func (c *Config) ServiceNameOr(def string) string {
	if c.ServiceName != "" {
		return c.ServiceName
	}
	return def
}
