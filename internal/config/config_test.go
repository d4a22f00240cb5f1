package config

import "testing"

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Port != 7070 {
		t.Fatalf("Port = %d, want 7070", cfg.Port)
	}
	if cfg.Host != "0.0.0.0" {
		t.Fatalf("Host = %q, want 0.0.0.0", cfg.Host)
	}
	if cfg.RateLimitRequests != 60 || cfg.RateLimitWindowMs != 60_000 {
		t.Fatalf("unexpected rate limit defaults: %d/%dms", cfg.RateLimitRequests, cfg.RateLimitWindowMs)
	}
	if !cfg.SilentFallbackOnFail {
		t.Fatal("SilentFallbackOnFail should default to true")
	}
	if cfg.AlignmentSynthesize {
		t.Fatal("AlignmentSynthesize should default to false")
	}
	if cfg.CORSOrigin != "*" {
		t.Fatalf("CORSOrigin = %q, want *", cfg.CORSOrigin)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("ALLOWED_IPS", "10.0.0.1,10.0.0.2")
	t.Setenv("SILENT_FALLBACK_ON_FAIL", "false")

	cfg := FromEnv()
	if cfg.Port != 9090 {
		t.Fatalf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.RateLimitRequests != 5 {
		t.Fatalf("RateLimitRequests = %d, want 5", cfg.RateLimitRequests)
	}
	if !cfg.TrustProxy {
		t.Fatal("TrustProxy should be true")
	}
	if len(cfg.AllowedIPs) != 2 || cfg.AllowedIPs[0] != "10.0.0.1" || cfg.AllowedIPs[1] != "10.0.0.2" {
		t.Fatalf("unexpected AllowedIPs: %v", cfg.AllowedIPs)
	}
	if cfg.SilentFallbackOnFail {
		t.Fatal("SilentFallbackOnFail should be false after override")
	}
}

func TestFromEnvInvalidIntFallsBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	cfg := FromEnv()
	if cfg.Port != 7070 {
		t.Fatalf("Port = %d, want fallback 7070 on invalid value", cfg.Port)
	}
}

func TestEnvListEmptyIsNil(t *testing.T) {
	if got := envList("UNSET_LIST_VAR_XYZ"); got != nil {
		t.Fatalf("expected nil for unset list var, got %v", got)
	}
}
