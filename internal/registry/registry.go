// Package registry discovers and caches provider adapter instances,
// constructing them lazily and reporting their health.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/apresai/ttsgateway/internal/tts"
)

// coolDown is how long a failed construction is cached before the registry
// will try again for the same (provider, fingerprint) pair.
const coolDown = 60 * time.Second

// ErrUnknownProvider is returned by Get when no factory is registered for
// the requested provider name, as distinct from a registered provider
// whose construction failed.
var ErrUnknownProvider = errors.New("registry: unknown provider")

// Factory constructs a fresh adapter instance from credentials.
type Factory func(ctx context.Context, creds tts.Credentials) (tts.Adapter, error)

type cacheEntry struct {
	adapter   tts.Adapter
	failedAt  time.Time
	failedErr error
}

// Registry is the process-scoped cache of live adapter instances, keyed by
// (provider, credential-fingerprint). Construction is single-flighted so
// concurrent first-use requests for the same key share one constructor call.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	cache     map[string]*cacheEntry
	group     singleflight.Group
}

// New builds a Registry with the gateway's built-in provider factories
// already registered.
func New() *Registry {
	r := &Registry{
		factories: map[string]Factory{},
		cache:     map[string]*cacheEntry{},
	}
	r.Register("espeak", func(ctx context.Context, creds tts.Credentials) (tts.Adapter, error) {
		return tts.NewEspeakAdapter(creds), nil
	})
	r.Register("polly", func(ctx context.Context, creds tts.Credentials) (tts.Adapter, error) {
		return tts.NewPollyAdapter(ctx, creds)
	})
	r.Register("google", func(ctx context.Context, creds tts.Credentials) (tts.Adapter, error) {
		return tts.NewGoogleAdapter(ctx, creds)
	})
	r.Register("elevenlabs", func(ctx context.Context, creds tts.Credentials) (tts.Adapter, error) {
		if creds["api_key"] == "" {
			return nil, fmt.Errorf("elevenlabs: missing api_key credential")
		}
		return tts.NewElevenLabsAdapter(creds), nil
	})
	r.Register("devicemodel", func(ctx context.Context, creds tts.Credentials) (tts.Adapter, error) {
		return tts.NewDeviceModelAdapter(creds), nil
	})
	r.Register("mock", func(ctx context.Context, creds tts.Credentials) (tts.Adapter, error) {
		return tts.NewMockAdapter(), nil
	})
	return r
}

// Register adds or replaces the factory for a provider identifier.
func (r *Registry) Register(provider string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = f
}

// Providers returns every registered provider identifier, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Fingerprint returns the SHA-256 of the credential field ordering, used to
// distinguish adapter instances constructed from distinct secrets for the
// same provider.
func Fingerprint(creds tts.Credentials) string {
	keys := make([]string, 0, len(creds))
	for k := range creds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([][2]string, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, [2]string{k, creds[k]})
	}
	raw, _ := json.Marshal(ordered)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Get returns a cached adapter for (provider, credentials) or constructs
// one via the registered factory. A construction failure is cached for
// coolDown and returned verbatim to every caller hitting the cache during
// that window, avoiding repeated hammering of a provider with bad
// credentials.
func (r *Registry) Get(ctx context.Context, provider string, creds tts.Credentials) (tts.Adapter, error) {
	fp := Fingerprint(creds)
	key := provider + ":" + fp

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		if entry.adapter != nil {
			return entry.adapter, nil
		}
		if time.Since(entry.failedAt) < coolDown {
			return nil, entry.failedErr
		}
	} else {
		r.mu.RUnlock()
	}

	r.mu.RLock()
	factory, ok := r.factories[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	result, err, _ := r.group.Do(key, func() (any, error) {
		return factory(ctx, creds)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.cache[key] = &cacheEntry{failedAt: time.Now(), failedErr: err}
		return nil, err
	}
	adapter := result.(tts.Adapter)
	r.cache[key] = &cacheEntry{adapter: adapter}
	return adapter, nil
}

// Health is the per-provider health summary listHealth() returns.
type Health struct {
	OK         bool
	VoiceCount int
	Error      string
}

// ListHealth health-checks every cached adapter. Providers never
// constructed (no request has used them yet) are not reported.
func (r *Registry) ListHealth(ctx context.Context) map[string]Health {
	r.mu.RLock()
	entries := make(map[string]*cacheEntry, len(r.cache))
	for k, v := range r.cache {
		entries[k] = v
	}
	r.mu.RUnlock()

	out := map[string]Health{}
	for key, entry := range entries {
		provider := providerFromKey(key)
		if entry.adapter == nil {
			out[provider] = Health{OK: false, Error: entry.failedErr.Error()}
			continue
		}
		status := entry.adapter.HealthCheck(ctx)
		out[provider] = Health{OK: status.OK, VoiceCount: status.VoiceCount}
	}
	return out
}

// Shutdown closes every cached adapter, draining provider resources.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.cache {
		if entry.adapter != nil {
			_ = entry.adapter.Close()
		}
	}
	r.cache = map[string]*cacheEntry{}
}

func providerFromKey(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}
