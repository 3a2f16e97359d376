package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Address() != "0.0.0.0:8080" {
		t.Errorf("expected default address, got %q", cfg.Address())
	}
	if cfg.Storage != BackendSQLite {
		t.Errorf("expected sqlite backend, got %q", cfg.Storage)
	}
	if cfg.Game.DefaultRows != 9 || cfg.Game.DefaultCols != 9 || cfg.Game.DefaultMines != 10 {
		t.Errorf("unexpected game defaults: %+v", cfg.Game)
	}
	if cfg.Cassandra.Timeout != 5*time.Second {
		t.Errorf("expected 5s cassandra timeout, got %v", cfg.Cassandra.Timeout)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_BACKEND", " Cassandra ")
	t.Setenv("CASSANDRA_HOSTS", "10.0.0.1:9042, ,10.0.0.2:9042")
	t.Setenv("REDIS_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.Storage != BackendCassandra {
		t.Errorf("expected cassandra backend, got %q", cfg.Storage)
	}
	if len(cfg.Cassandra.Hosts) != 2 {
		t.Errorf("expected 2 hosts, got %v", cfg.Cassandra.Hosts)
	}
	if cfg.Redis.TTL != time.Hour {
		t.Errorf("expected 1h ttl, got %v", cfg.Redis.TTL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown backend", key: "STORAGE_BACKEND", val: "postgres"},
		{name: "bad redis db", key: "REDIS_DB", val: "zero"},
		{name: "too many default mines", key: "GAME_DEFAULT_MINES", val: "81"},
		{name: "default rows above max", key: "GAME_MAX_ROWS", val: "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}
