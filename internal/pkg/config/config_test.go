package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("exsitu-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.BaseURL != "https://www.exsitu.site" {
		t.Errorf("unexpected backend url %q", cfg.Backend.BaseURL)
	}
	if cfg.Sync.DebounceMS != 500 || cfg.Sync.Threshold != 0.1 {
		t.Errorf("unexpected sync defaults: %+v", cfg.Sync)
	}
	if cfg.Telemetry.ServiceName != "exsitu-test" {
		t.Errorf("expected service name default, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EXSITU_BACKEND_BASE_URL", "http://localhost:1337")
	t.Setenv("EXSITU_GEOCODER_TOKEN", "pk.test")
	t.Setenv("EXSITU_SYNC_MODE", "eager")

	cfg, err := Load("exsitu-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:1337" {
		t.Errorf("env override not applied: %q", cfg.Backend.BaseURL)
	}
	if cfg.Geocoder.Token != "pk.test" || cfg.Sync.Mode != "eager" {
		t.Errorf("unexpected overrides: token %q mode %q", cfg.Geocoder.Token, cfg.Sync.Mode)
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 0, ReadTimeout: 1, WriteTimeout: 1},
		Backend:  BackendConfig{BaseURL: "not a url", PageSize: 500, Timeout: 1, RPS: 1, MaxPages: 1},
		Geocoder: GeocoderConfig{RPS: 1},
		Sync:     SyncConfig{DebounceMS: 500, Threshold: 0.1, Mode: "sometimes"},
		Source:   SourceConfig{Kind: "remote"},
		NATS:     NATSConfig{URL: "nats://x"},
		Valkey:   ValkeyConfig{Addr: "x:6379"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "backend.base_url", "backend.page_size", "sync.mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in error, got: %v", want, err)
		}
	}
}

func TestValidate_PostgresSourceNeedsDatabase(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 1, WriteTimeout: 1},
		Backend:  BackendConfig{BaseURL: "https://www.exsitu.site", PageSize: 50, Timeout: 1, RPS: 1, MaxPages: 1},
		Geocoder: GeocoderConfig{RPS: 1},
		Sync:     SyncConfig{DebounceMS: 500, Threshold: 0.1, Mode: "on_demand"},
		Source:   SourceConfig{Kind: "postgres"},
		NATS:     NATSConfig{URL: "nats://x"},
		Valkey:   ValkeyConfig{Addr: "x:6379"},
	}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "database.host") {
		t.Errorf("expected database errors, got %v", err)
	}

	cfg.Source.Kind = "remote"
	if err := cfg.Validate(); err != nil {
		t.Errorf("remote source should not need a database: %v", err)
	}
}
