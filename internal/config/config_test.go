package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.MaxConcurrentProbes != 50 {
		t.Errorf("MaxConcurrentProbes = %d, want 50", cfg.MaxConcurrentProbes)
	}
	if cfg.SchedulerTick != time.Second {
		t.Errorf("SchedulerTick = %s, want 1s", cfg.SchedulerTick)
	}
	if cfg.ProbeTimeout != 10*time.Second {
		t.Errorf("ProbeTimeout = %s, want 10s", cfg.ProbeTimeout)
	}
	if cfg.OfflineThreshold != 2 {
		t.Errorf("OfflineThreshold = %d, want 2", cfg.OfflineThreshold)
	}
	if cfg.SlowThresholdMs != 3000 {
		t.Errorf("SlowThresholdMs = %d, want 3000", cfg.SlowThresholdMs)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("MAX_CONCURRENT_PROBES", "10")
	t.Setenv("SCHEDULER_TICK", "500ms")
	t.Setenv("OFFLINE_THRESHOLD", "3")
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://status.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MaxConcurrentProbes != 10 {
		t.Errorf("MaxConcurrentProbes = %d, want 10", cfg.MaxConcurrentProbes)
	}
	if cfg.SchedulerTick != 500*time.Millisecond {
		t.Errorf("SchedulerTick = %s, want 500ms", cfg.SchedulerTick)
	}
	if cfg.OfflineThreshold != 3 {
		t.Errorf("OfflineThreshold = %d, want 3", cfg.OfflineThreshold)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestValidateRejectsProductionWithoutSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing JWT_SECRET in production")
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("OFFLINE_THRESHOLD", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for OFFLINE_THRESHOLD=0")
	}
}
