// Package voice parses façade voice identifiers, applies per-key
// authority checks, and binds the result to a concrete provider
// invocation.
package voice

import (
	"context"
	"errors"
	"strings"

	"github.com/apresai/ttsgateway/internal/gwerr"
	"github.com/apresai/ttsgateway/internal/keys"
	"github.com/apresai/ttsgateway/internal/registry"
	"github.com/apresai/ttsgateway/internal/tts"
)

// Binding is the resolver's output: everything the pipeline needs to
// invoke a provider for one request. Constructed per request, discarded
// after response.
type Binding struct {
	Provider         string
	NativeVoiceID    string
	Adapter          tts.Adapter
	RequestedFormat  tts.AudioFormat
	RequestedSampleRate int
}

// FacadeVoice is an externally visible voice descriptor. A static voice
// carries an arbitrary identifier and a pre-bound destination; all other
// voices follow the canonical <provider>-<native-voice-id> form.
type FacadeVoice struct {
	ID       string
	Name     string
	Languages []string
	Gender   string
	Locale   string
	Provider string
}

// StaticVoice pre-binds a configured façade id that doesn't follow the
// <provider>-<native-voice-id> convention.
type StaticVoice struct {
	Facade   FacadeVoice
	Provider string
	NativeID string
}

// Resolver binds façade voice ids to concrete providers.
type Resolver struct {
	registry *registry.Registry
	static   map[string]StaticVoice
}

// New constructs a Resolver backed by the given engine registry and an
// optional set of statically configured voices keyed by façade id.
func New(reg *registry.Registry, static []StaticVoice) *Resolver {
	m := make(map[string]StaticVoice, len(static))
	for _, sv := range static {
		m[sv.Facade.ID] = sv
	}
	return &Resolver{registry: reg, static: m}
}

// credentialsFor picks the key's custom credentials when configured and
// enabled, else falls back to the system-wide credentials for provider.
func credentialsFor(key *keys.Record, provider string, systemCreds map[string]string) tts.Credentials {
	if key != nil {
		if policy, ok := key.ProviderConfig[provider]; ok && policy.UseCustomCredentials && len(policy.CustomCredentials) > 0 {
			return tts.Credentials(policy.CustomCredentials)
		}
	}
	return tts.Credentials(systemCreds)
}

// providerEnabled reports whether the key's engine config explicitly
// disables provider. Absence of an entry means "enabled" (default).
func providerEnabled(key *keys.Record, provider string) bool {
	if key == nil {
		return true
	}
	policy, ok := key.ProviderConfig[provider]
	if !ok {
		return true
	}
	return policy.Enabled
}

// allowlisted reports whether facadeID passes the key's voice allowlist.
// An empty/nil allowlist means every voice is permitted.
func allowlisted(key *keys.Record, facadeID string) bool {
	if key == nil || len(key.AllowedVoices) == 0 {
		return true
	}
	for _, v := range key.AllowedVoices {
		if v == facadeID {
			return true
		}
	}
	return false
}

// Resolve parses facadeVoiceID, applies the key's allowlist and
// per-provider policy, and binds the result to a live adapter.
func (r *Resolver) Resolve(ctx context.Context, facadeVoiceID string, key *keys.Record, systemCreds func(provider string) map[string]string) (*Binding, error) {
	if sv, ok := r.static[facadeVoiceID]; ok {
		if !providerEnabled(key, sv.Provider) {
			return nil, gwerr.New(gwerr.Forbidden, "voice-resolve", "provider disabled for this key")
		}
		creds := credentialsFor(key, sv.Provider, systemCreds(sv.Provider))
		adapter, err := r.registry.Get(ctx, sv.Provider, creds)
		if err != nil {
			return nil, resolveGetErr(err)
		}
		return &Binding{Provider: sv.Provider, NativeVoiceID: sv.NativeID, Adapter: adapter}, nil
	}

	provider, nativeID, ok := splitFacadeID(facadeVoiceID)
	if !ok {
		return nil, gwerr.New(gwerr.NotFound, "voice-resolve", "voice not found").WithPublic("Voice not found")
	}

	if !providerEnabled(key, provider) {
		return nil, gwerr.New(gwerr.Forbidden, "voice-resolve", "provider disabled for this key")
	}
	if !allowlisted(key, facadeVoiceID) {
		return nil, gwerr.New(gwerr.Forbidden, "voice-resolve", "voice not in key's allowlist")
	}

	creds := credentialsFor(key, provider, systemCreds(provider))
	adapter, err := r.registry.Get(ctx, provider, creds)
	if err != nil {
		return nil, resolveGetErr(err)
	}

	return &Binding{Provider: provider, NativeVoiceID: nativeID, Adapter: adapter}, nil
}

// ResolveProvider resolves just a live adapter for provider, applying the
// key's per-provider policy but no voice-id/allowlist check. Used by
// callers (engine listing, session list_voices) that need an adapter
// without a specific voice.
func (r *Resolver) ResolveProvider(ctx context.Context, provider string, key *keys.Record, systemCreds func(provider string) map[string]string) (tts.Adapter, error) {
	if !providerEnabled(key, provider) {
		return nil, gwerr.New(gwerr.Forbidden, "voice-resolve", "provider disabled for this key")
	}
	creds := credentialsFor(key, provider, systemCreds(provider))
	adapter, err := r.registry.Get(ctx, provider, creds)
	if err != nil {
		return nil, resolveGetErr(err)
	}
	return adapter, nil
}

// resolveGetErr classifies a registry.Get failure: an unregistered
// provider name means the requested voice doesn't exist, while a
// registered provider that failed to construct is a live provider
// outage.
func resolveGetErr(err error) error {
	if errors.Is(err, registry.ErrUnknownProvider) {
		return gwerr.New(gwerr.NotFound, "voice-resolve", "voice not found").WithPublic("Voice not found")
	}
	return gwerr.Wrap(gwerr.ProviderUnavailable, "voice-resolve", "provider unavailable", err)
}

// Providers returns every provider identifier known to the underlying
// registry, sorted.
func (r *Resolver) Providers() []string {
	return r.registry.Providers()
}

// splitFacadeID splits a canonical <provider>-<native-voice-id> id on its
// first '-'. Both halves must be non-empty.
func splitFacadeID(facadeID string) (provider, nativeID string, ok bool) {
	idx := strings.Index(facadeID, "-")
	if idx <= 0 || idx == len(facadeID)-1 {
		return "", "", false
	}
	return facadeID[:idx], facadeID[idx+1:], true
}
