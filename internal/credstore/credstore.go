// Package credstore persists system-wide provider credentials (API keys
// for upstream TTS providers such as ElevenLabs or Polly) as a single JSON
// document, masking values on read and writing atomically.
package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Store holds provider -> {field -> secret value} and an optional
// Secrets Manager overlay that seeds values not present in the file.
type Store struct {
	mu   sync.RWMutex
	path string
	data map[string]map[string]string

	secrets    *secretsmanager.Client
	secretPath string
}

// New loads (or initializes) the credential document at dataDir/system-credentials.json.
func New(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "system-credentials.json")
	s := &Store{path: path, data: map[string]map[string]string{}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read credential store: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("parse credential store: %w", err)
		}
	}
	return s, nil
}

// WithSecretsManager attaches a read-through overlay: getRaw consults
// Secrets Manager for fields absent from the file-backed document.
func (s *Store) WithSecretsManager(client *secretsmanager.Client, secretPathPrefix string) *Store {
	s.secrets = client
	s.secretPath = secretPathPrefix
	return s
}

// Set replaces the field map for a provider and persists the document.
func (s *Store) Set(provider string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[provider] = fields
	return s.writeLocked()
}

// GetRaw returns the unmasked field map for a provider, consulting the
// Secrets Manager overlay for any field the file-backed document lacks.
// Only the request pipeline should call this.
func (s *Store) GetRaw(ctx context.Context, provider string) map[string]string {
	s.mu.RLock()
	fields := cloneFields(s.data[provider])
	s.mu.RUnlock()

	if s.secrets == nil {
		return fields
	}
	secretID := s.secretPath + provider
	out, err := s.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &secretID})
	if err != nil || out.SecretString == nil {
		return fields
	}
	var overlay map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &overlay); err != nil {
		return fields
	}
	if fields == nil {
		fields = map[string]string{}
	}
	for k, v := range overlay {
		if _, present := fields[k]; !present {
			fields[k] = v
		}
	}
	return fields
}

// GetMasked returns, for every configured provider, each stored field name
// mapped to whether its value is non-empty. Values are never returned and
// no sentinel string stands in for them; a field stored with an empty
// value maps to false.
func (s *Store) GetMasked() map[string]map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]bool, len(s.data))
	for provider, fields := range s.data {
		masked := make(map[string]bool, len(fields))
		for field, value := range fields {
			masked[field] = value != ""
		}
		out[provider] = masked
	}
	return out
}

// writeLocked must be called with s.mu held for writing.
func (s *Store) writeLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write temp credential store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename credential store: %w", err)
	}
	return nil
}

func cloneFields(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
