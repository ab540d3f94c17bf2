package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("WORKER_ID", "w1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval = %s, want 5s", cfg.PollInterval())
	}
	if cfg.SyncBatchSize != 50 {
		t.Errorf("SyncBatchSize = %d, want 50", cfg.SyncBatchSize)
	}
	if cfg.SyncMaxAttempts != 0 {
		t.Errorf("SyncMaxAttempts = %d, want 0", cfg.SyncMaxAttempts)
	}
	if cfg.ClaimLease() != 0 {
		t.Errorf("ClaimLease = %s, want 0", cfg.ClaimLease())
	}
	if cfg.TokenTTL() != 5*time.Minute {
		t.Errorf("TokenTTL = %s, want 5m", cfg.TokenTTL())
	}
	if cfg.GatewayTokenIssuer != "guild-sync-worker" || cfg.GatewayTokenAudience != "guild-sync-gateway" {
		t.Errorf("issuer/audience = %q/%q", cfg.GatewayTokenIssuer, cfg.GatewayTokenAudience)
	}
	if cfg.SyncKafkaTopic != "guild-sync-outcomes" {
		t.Errorf("SyncKafkaTopic = %q", cfg.SyncKafkaTopic)
	}
	if cfg.WorkerID != "w1" {
		t.Errorf("WorkerID = %q, want w1", cfg.WorkerID)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":9090")
	os.Setenv("SYNC_POLL_INTERVAL", "1s")
	os.Setenv("SYNC_BATCH_SIZE", "10")
	os.Setenv("SYNC_MAX_ATTEMPTS", "5")
	os.Setenv("SYNC_CLAIM_LEASE", "2m")
	os.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.PollInterval() != time.Second {
		t.Errorf("PollInterval = %s, want 1s", cfg.PollInterval())
	}
	if cfg.SyncBatchSize != 10 || cfg.SyncMaxAttempts != 5 {
		t.Errorf("batch=%d attempts=%d", cfg.SyncBatchSize, cfg.SyncMaxAttempts)
	}
	if cfg.ClaimLease() != 2*time.Minute {
		t.Errorf("ClaimLease = %s, want 2m", cfg.ClaimLease())
	}
	if !cfg.OTLPInsecure {
		t.Error("OTLPInsecure should be true")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"batch too large", map[string]string{"SYNC_BATCH_SIZE": "1000"}},
		{"batch zero", map[string]string{"SYNC_BATCH_SIZE": "0"}},
		{"negative attempts", map[string]string{"SYNC_MAX_ATTEMPTS": "-1"}},
		{"bad lease", map[string]string{"SYNC_CLAIM_LEASE": "soon"}},
		{"lease shorter than default batch", map[string]string{"SYNC_CLAIM_LEASE": "2m"}},
		{"lease shorter than batch", map[string]string{"SYNC_BATCH_SIZE": "20", "SYNC_CLAIM_LEASE": "139s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestRequireWorker(t *testing.T) {
	cfg := &Config{GatewayAddr: "localhost:8080", DiscordBotToken: "tok", WorkerID: "w1"}
	if err := cfg.RequireWorker(); err != nil {
		t.Errorf("RequireWorker: %v", err)
	}
	cfg.DiscordBotToken = ""
	if err := cfg.RequireWorker(); err == nil {
		t.Error("missing bot token should fail")
	}
	cfg.DiscordBotToken = "tok"
	cfg.Env = "production"
	if err := cfg.RequireWorker(); err == nil {
		t.Error("production without a signing key should fail")
	}
}

func TestRequireGateway(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireGateway(); err == nil {
		t.Error("missing DATABASE_URL should fail")
	}
	cfg.DatabaseURL = "postgres://localhost/guildsync"
	if err := cfg.RequireGateway(); err != nil {
		t.Errorf("RequireGateway: %v", err)
	}
	cfg.Env = "production"
	if err := cfg.RequireGateway(); err == nil {
		t.Error("production without a public key should fail")
	}
}

func TestKafkaBrokersList(t *testing.T) {
	cfg := &Config{KafkaBrokers: " a:9092, ,b:9092 "}
	got := cfg.KafkaBrokersList()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should return nil")
	}
}

func TestRequireRelay(t *testing.T) {
	cfg := &Config{SyncKafkaTopic: "guild-sync-outcomes"}
	if err := cfg.RequireRelay(); err == nil {
		t.Error("RequireRelay without brokers should fail")
	}
	cfg.KafkaBrokers = "localhost:9092"
	if err := cfg.RequireRelay(); err == nil {
		t.Error("RequireRelay without LOKI_URL should fail")
	}
	cfg.LokiURL = "http://localhost:3100"
	if err := cfg.RequireRelay(); err != nil {
		t.Errorf("RequireRelay: %v", err)
	}
}

func TestLoad_LeaseCoversBatch(t *testing.T) {
	os.Clearenv()
	os.Setenv("SYNC_BATCH_SIZE", "20")
	os.Setenv("SYNC_CLAIM_LEASE", "140s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ClaimLease() != 140*time.Second {
		t.Errorf("ClaimLease = %s, want 140s", cfg.ClaimLease())
	}
}
