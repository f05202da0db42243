package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("stashpoint-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.DefaultRadiusKm != 10.0 {
		t.Errorf("expected default radius 10, got %v", cfg.Search.DefaultRadiusKm)
	}
	if cfg.Search.Store != StorePostgres {
		t.Errorf("expected postgres store, got %q", cfg.Search.Store)
	}
	if cfg.Telemetry.ServiceName != "stashpoint-test" {
		t.Errorf("expected service name from argument, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STASHPOINT_SEARCH_DEFAULT_RADIUS_KM", "2.5")
	t.Setenv("STASHPOINT_SEARCH_STORE", "memory")

	cfg, err := Load("stashpoint-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.DefaultRadiusKm != 2.5 {
		t.Errorf("expected radius 2.5, got %v", cfg.Search.DefaultRadiusKm)
	}
	if cfg.Search.Store != StoreMemory {
		t.Errorf("expected memory store, got %q", cfg.Search.Store)
	}
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10, RequestTimeout: 15},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "stasher", DBName: "stashpoint", MaxConns: 10},
		NATS:     NATSConfig{URL: "nats://localhost:4222"},
		Valkey:   ValkeyConfig{Addr: "localhost:6379"},
		Temporal: TemporalConfig{TaskQueue: "stashpoint-audit", AuditEvery: 60, AuditHorizon: 24},
		Search: SearchConfig{
			DefaultRadiusKm: 10,
			Store:           StorePostgres,
			CapacityMode:    CapacityModeBatch,
			Parallelism:     4,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultRadiusKm = 0
	cfg.Search.Store = "sqlite"
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"search.default_radius_km", "search.store", "server.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_SnapshotParallelConflict(t *testing.T) {
	cfg := validConfig()
	cfg.Search.SnapshotReads = true
	cfg.Search.CapacityMode = CapacityModeParallel
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected conflict error on postgres store")
	}

	cfg.Search.Store = StoreMemory
	if err := cfg.Validate(); err != nil {
		t.Fatalf("memory store supports parallel snapshots: %v", err)
	}
}
