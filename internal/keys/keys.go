// Package keys implements the API-key repository: creation, hash lookup,
// rate-limit policy, and per-key engine configuration, backed by either a
// relational store or a single JSON file.
package keys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// BootstrapKeyID is the reserved identifier for the master admin key
// supplied via ADMIN_API_KEY. It is never persisted and the usage tracker
// must refuse to write records carrying it.
const BootstrapKeyID = "bootstrap-admin"

// RateLimitPolicy is the admission policy attached to a key.
type RateLimitPolicy struct {
	Requests  int   `json:"requests"`
	WindowMs  int64 `json:"windowMs"`
}

// ProviderPolicy controls whether a key may use a given provider and with
// which credentials.
type ProviderPolicy struct {
	Enabled              bool              `json:"enabled"`
	UseCustomCredentials bool              `json:"useCustomCredentials"`
	CustomCredentials    map[string]string `json:"customCredentials,omitempty"`
}

// Record is a stored API key. HashHex and Suffix are derived from the
// plaintext at creation time; the plaintext itself is never stored.
type Record struct {
	ID            string                    `json:"id"`
	Name          string                    `json:"name"`
	IsAdmin       bool                      `json:"isAdmin"`
	Active        bool                      `json:"active"`
	CreatedAt     time.Time                 `json:"createdAt"`
	LastUsedAt    *time.Time                `json:"lastUsedAt,omitempty"`
	RequestCount  int64                     `json:"requestCount"`
	RateLimit     RateLimitPolicy           `json:"rateLimit"`
	ExpiresAt     *time.Time                `json:"expiresAt,omitempty"`
	ProviderConfig map[string]ProviderPolicy `json:"providerConfig,omitempty"`
	AllowedVoices []string                  `json:"allowedVoices,omitempty"`

	HashHex string `json:"hashHex"`
	Suffix  string `json:"suffix"`
}

// Expired reports whether the key has passed its expiry instant.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Patch describes the mutable fields of update(id, patch). A nil pointer
// means "leave unchanged".
type Patch struct {
	Name      *string
	Active    *bool
	IsAdmin   *bool
	RateLimit *RateLimitPolicy
	ExpiresAt **time.Time
}

// Repository is the contract both backends (file, relational) satisfy.
type Repository interface {
	Create(ctx context.Context, name string, isAdmin bool, active bool, rateLimit RateLimitPolicy, expiresAt *time.Time, allowedVoices []string) (plaintext string, rec *Record, err error)
	LookupByPlaintext(ctx context.Context, plaintext string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Update(ctx context.Context, id string, patch Patch) (*Record, error)
	Delete(ctx context.Context, id string) error
	GetEngineConfig(ctx context.Context, id string) (map[string]ProviderPolicy, []string, error)
	SetEngineConfig(ctx context.Context, id string, config map[string]ProviderPolicy, allowedVoices []string) error
	Touch(ctx context.Context, id string) error
	Close() error
}

// generatePlaintext returns a new key in the form tts_<64-hex> plus its
// SHA-256 hash (hex) and its last-eight-character suffix.
func generatePlaintext() (plaintext, hashHex, suffix string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("generate key material: %w", err)
	}
	plaintext = "tts_" + hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(plaintext))
	hashHex = hex.EncodeToString(sum[:])
	suffix = plaintext[len(plaintext)-8:]
	return plaintext, hashHex, suffix, nil
}

// hashPlaintext computes the lookup digest for an incoming key.
func hashPlaintext(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// BootstrapRecord constructs the synthetic, never-persisted admin record
// for the env-supplied master key.
func BootstrapRecord() *Record {
	return &Record{
		ID:      BootstrapKeyID,
		Name:    "bootstrap",
		IsAdmin: true,
		Active:  true,
		RateLimit: RateLimitPolicy{
			Requests: 1_000_000,
			WindowMs: 60_000,
		},
		CreatedAt: time.Unix(0, 0).UTC(),
	}
}
