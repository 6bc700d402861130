package config

import "testing"

// Load is a process-wide singleton, so the defaults can only be observed
// once per test binary. Everything default-related lives in this one test.
func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.S3.Region != "us-east-1" {
		t.Errorf("S3.Region = %q, want us-east-1", cfg.S3.Region)
	}
	if !cfg.S3.UseSSL {
		t.Error("S3.UseSSL should default to true")
	}
	if cfg.Azure.PageTimeoutSeconds != 30 || cfg.Drive.PageTimeoutSeconds != 30 {
		t.Errorf("page timeouts = %d/%d, want 30/30",
			cfg.Azure.PageTimeoutSeconds, cfg.Drive.PageTimeoutSeconds)
	}
	if cfg.Catalog.Enabled {
		t.Error("Catalog.Enabled should default to false")
	}
	if cfg.Cache.TTLSeconds != 60 {
		t.Errorf("Cache.TTLSeconds = %d, want 60", cfg.Cache.TTLSeconds)
	}
	if cfg.Discovery.MaxKeys != 1000 {
		t.Errorf("Discovery.MaxKeys = %d, want 1000", cfg.Discovery.MaxKeys)
	}
	if cfg.Discovery.Parallelism != 1 {
		t.Errorf("Discovery.Parallelism = %d, want 1", cfg.Discovery.Parallelism)
	}
}

func TestLoadReturnsSameInstance(t *testing.T) {
	if Load() != Load() {
		t.Error("Load should return the same instance on every call")
	}
}
