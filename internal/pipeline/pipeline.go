// Package pipeline implements the request pipeline: the uniform
// auth -> rate-limit -> route -> invoke -> meter ordering that every
// TTS-gateway request passes through, whether it arrives over HTTP or as
// a streaming-session frame. Grounded on the staged, numbered Run() of
// the teacher's podcast pipeline, reshaped from a four-stage CLI batch
// job into the request-scoped stages of spec.md §4.H.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/apresai/ttsgateway/internal/credstore"
	"github.com/apresai/ttsgateway/internal/gwerr"
	"github.com/apresai/ttsgateway/internal/keys"
	"github.com/apresai/ttsgateway/internal/ratelimit"
	"github.com/apresai/ttsgateway/internal/tts"
	"github.com/apresai/ttsgateway/internal/usage"
	"github.com/apresai/ttsgateway/internal/voice"
)

// Pipeline owns the components every request stage needs: the key
// repository, the rate limiter, the usage ledger, the voice resolver, and
// the system credential store. It holds no per-request state itself.
type Pipeline struct {
	Keys      keys.Repository
	Limiter   *ratelimit.Limiter
	Usage     *usage.Tracker
	Resolver  *voice.Resolver
	Creds     *credstore.Store
	Log       *slog.Logger

	AdminBootstrapKey string
}

// New constructs a Pipeline from its component dependencies.
func New(repo keys.Repository, limiter *ratelimit.Limiter, tracker *usage.Tracker, resolver *voice.Resolver, creds *credstore.Store, adminBootstrapKey string, log *slog.Logger) *Pipeline {
	return &Pipeline{
		Keys:               repo,
		Limiter:            limiter,
		Usage:              tracker,
		Resolver:           resolver,
		Creds:              creds,
		AdminBootstrapKey:  adminBootstrapKey,
		Log:                log,
	}
}

// ExtractKeyMaterial implements stage 1: pull the caller's credential from
// header X-API-Key, header Authorization: Bearer, or query api_key.
func ExtractKeyMaterial(r *http.Request) string {
	if v := r.Header.Get("X-API-Key"); v != "" {
		return v
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("api_key")
}

// Authenticate implements stage 2: look up and validate the key material,
// enforcing the admin-only requirement when set. The bootstrap admin key
// is checked first and never touches the repository.
func (p *Pipeline) Authenticate(ctx context.Context, keyMaterial string, adminOnly bool) (*keys.Record, error) {
	if keyMaterial == "" {
		return nil, gwerr.New(gwerr.Unauthorized, "auth", "missing API key")
	}
	if p.AdminBootstrapKey != "" && keyMaterial == p.AdminBootstrapKey {
		return keys.BootstrapRecord(), nil
	}

	rec, err := p.Keys.LookupByPlaintext(ctx, keyMaterial)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Internal, "auth", "key lookup failed", err)
	}
	if rec == nil {
		return nil, gwerr.New(gwerr.Unauthorized, "auth", "invalid, inactive, or expired API key")
	}
	if adminOnly && !rec.IsAdmin {
		return nil, gwerr.New(gwerr.Forbidden, "auth", "admin privileges required")
	}
	return rec, nil
}

// CheckRateLimit implements stage 3.
func (p *Pipeline) CheckRateLimit(key *keys.Record) ratelimit.Result {
	return p.Limiter.Check(key.ID, key.RateLimit.Requests, time.Duration(key.RateLimit.WindowMs)*time.Millisecond)
}

// ValidateText implements the text-validation half of stage 4.
func ValidateText(text string, maxLen int) error {
	if strings.TrimSpace(text) == "" {
		return gwerr.New(gwerr.BadRequest, "validate", "text must not be empty")
	}
	if maxLen > 0 && len([]rune(text)) > maxLen {
		return gwerr.New(gwerr.BadRequest, "validate", "text exceeds maximum length")
	}
	return nil
}

// ResolveVoice implements stage 5, reading system credentials through the
// pipeline's credential store so the voice resolver never touches raw
// secrets except to hand them to an adapter factory.
func (p *Pipeline) ResolveVoice(ctx context.Context, facadeVoiceID string, key *keys.Record) (*voice.Binding, error) {
	systemCreds := func(provider string) map[string]string {
		return p.Creds.GetRaw(ctx, provider)
	}
	return p.Resolver.Resolve(ctx, facadeVoiceID, key, systemCreds)
}

// ResolveProviderAdapter resolves a live adapter for provider without
// binding a specific voice, used by voice listing (GET /v1/voices,
// GET /api/voices, session list_voices) and gatewayctl's -warm probe.
func (p *Pipeline) ResolveProviderAdapter(ctx context.Context, provider string, key *keys.Record) (tts.Adapter, error) {
	systemCreds := func(provider string) map[string]string {
		return p.Creds.GetRaw(ctx, provider)
	}
	return p.Resolver.ResolveProvider(ctx, provider, key, systemCreds)
}

// ProviderNames returns every provider identifier the engine registry
// knows about, sorted.
func (p *Pipeline) ProviderNames() []string {
	return p.Resolver.Providers()
}

// Meter implements stage 7: record a UsageRecord and bump the key's
// request counter, whether the request succeeded or failed. The bootstrap
// admin identity is filtered out by usage.Tracker.Record itself.
func (p *Pipeline) Meter(ctx context.Context, key *keys.Record, provider, path string, charCount int, elapsed time.Duration, status int) {
	p.Usage.Record(ctx, usage.Event{
		ID:               ulid.Make().String(),
		KeyID:            key.ID,
		Provider:         provider,
		Path:             path,
		CharacterCount:   charCount,
		ElapsedMs:        elapsed.Milliseconds(),
		Status:           status,
		EstimatedCostUSD: usage.EstimateCostUSD(provider, charCount),
		Timestamp:        time.Now().UTC(),
	})
	if key.ID != keys.BootstrapKeyID {
		if err := p.Keys.Touch(ctx, key.ID); err != nil {
			p.Log.Warn("touch key failed", "key_id", key.ID, "error", err)
		}
	}
}

// tinySilentMP3 is a minimal valid MP3 frame of near-silence, used for the
// legacy ProviderFailed fallback on the non-timestamped synthesis path
// when config.SilentFallbackOnFail is enabled. It is a single MPEG-1
// Layer III frame at 32kbps/44.1kHz encoding silence: a 4-byte header
// followed by 100 zero bytes of side information and main data, 104 bytes
// in all.
var tinySilentMP3 = append([]byte{0xFF, 0xFB, 0x10, 0x44}, make([]byte, 100)...)

// SilentMP3Fallback returns the legacy continuity-of-service response
// body for a ProviderFailed error on the non-timestamped TTS path, per
// spec.md §7's "deliberate product decision, configurable off".
func SilentMP3Fallback() []byte {
	out := make([]byte, len(tinySilentMP3))
	copy(out, tinySilentMP3)
	return out
}
