package config

import (
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("defaults must load cleanly: %v", err)
	}
	if cfg.Dispatch.OfferExpiry != 15*time.Second {
		t.Fatalf("unexpected default offer expiry %s", cfg.Dispatch.OfferExpiry)
	}
	if cfg.Dispatch.MaxRadiusM < cfg.Dispatch.InitialRadiusM {
		t.Fatal("radius ceiling below floor")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DISPATCH_OFFER_EXPIRY", "7s")
	t.Setenv("DISPATCH_MAX_MATCH_ATTEMPTS", "5")
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.OfferExpiry != 7*time.Second {
		t.Fatalf("override ignored, got %s", cfg.Dispatch.OfferExpiry)
	}
	if cfg.Dispatch.MaxMatchAttempts != 5 {
		t.Fatalf("override ignored, got %d", cfg.Dispatch.MaxMatchAttempts)
	}
}

func TestInvalidValuesAreRejected(t *testing.T) {
	t.Setenv("DISPATCH_OFFER_EXPIRY", "not-a-duration")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for malformed duration")
	}

	t.Setenv("DISPATCH_OFFER_EXPIRY", "10s")
	t.Setenv("DISPATCH_RADIUS_GROWTH", "0.5")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for growth factor <= 1")
	}
}
