// Package config centralizes the gateway's environment-derived settings.
package config

import (
	"os"
	"strconv"
)

// Config holds every environment-configurable knob the gateway reads at
// startup. There is no config file format; everything comes from the
// process environment, matching how the teacher's MCP server is wired.
type Config struct {
	Port     int
	Host     string
	LogLevel string

	AdminAPIKey string

	DatabaseURL string
	DataDir     string

	MaxRequestSize int64

	RateLimitRequests int
	RateLimitWindowMs int64

	ESP32MaxTextLength int
	ESP32DefaultEngine string
	ESP32DefaultVoice  string
	ESP32SampleRate    int

	CORSOrigin string
	TrustProxy bool
	AllowedIPs []string
	BlockedIPs []string

	AWSRegion            string
	SecretPrefix         string
	UsageDynamoDBTable   string
	CloudWatchLogGroup   string
	OTLPEndpoint         string
	AlignmentSynthesize  bool
	SilentFallbackOnFail bool
}

// FromEnv builds a Config from the process environment, applying the same
// defaults the gateway ships with out of the box.
func FromEnv() Config {
	return Config{
		Port:     envInt("PORT", 7070),
		Host:     envOr("HOST", "0.0.0.0"),
		LogLevel: envOr("LOG_LEVEL", "info"),

		AdminAPIKey: os.Getenv("ADMIN_API_KEY"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DataDir:     envOr("DATA_DIR", envOr("OPENVOICEPROXY_DATA_DIR", "./data")),

		MaxRequestSize: envInt64("MAX_REQUEST_SIZE", 10<<20),

		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindowMs: envInt64("RATE_LIMIT_WINDOW_MS", 60_000),

		ESP32MaxTextLength: envInt("ESP32_MAX_TEXT_LENGTH", 500),
		ESP32DefaultEngine: envOr("ESP32_DEFAULT_ENGINE", "espeak"),
		ESP32DefaultVoice:  envOr("ESP32_DEFAULT_VOICE", "en"),
		ESP32SampleRate:    envInt("ESP32_DEFAULT_SAMPLE_RATE", 16000),

		CORSOrigin: envOr("CORS_ORIGIN", "*"),
		TrustProxy: envBool("TRUST_PROXY", false),
		AllowedIPs: envList("ALLOWED_IPS"),
		BlockedIPs: envList("BLOCKED_IPS"),

		AWSRegion:          envOr("AWS_REGION", "us-east-1"),
		SecretPrefix:       os.Getenv("SECRET_PREFIX"),
		UsageDynamoDBTable: os.Getenv("USAGE_DYNAMODB_TABLE"),
		CloudWatchLogGroup: os.Getenv("CLOUDWATCH_LOG_GROUP"),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		AlignmentSynthesize:  envBool("ALIGNMENT_SYNTHESIZE", false),
		SilentFallbackOnFail: envBool("SILENT_FALLBACK_ON_FAIL", true),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}
