package keys

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// FileStore is the file-backed Repository. All writes serialize on mu so
// that concurrent callers never tear the JSON document; reads take the
// read lock and never block on I/O.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	byID    map[string]*Record
	byHash  map[string]string // hashHex -> id
}

// NewFileStore loads (or initializes) api-keys.json under dataDir.
func NewFileStore(dataDir string) (*FileStore, error) {
	path := filepath.Join(dataDir, "api-keys.json")
	s := &FileStore{
		path:   path,
		byID:   map[string]*Record{},
		byHash: map[string]string{},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read key store: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}

	var records []*Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse key store: %w", err)
	}
	for _, r := range records {
		s.byID[r.ID] = r
		s.byHash[r.HashHex] = r.ID
	}
	return s, nil
}

func (s *FileStore) Create(ctx context.Context, name string, isAdmin bool, active bool, rateLimit RateLimitPolicy, expiresAt *time.Time, allowedVoices []string) (string, *Record, error) {
	plaintext, hashHex, suffix, err := generatePlaintext()
	if err != nil {
		return "", nil, err
	}

	rec := &Record{
		ID:            ulid.Make().String(),
		Name:          name,
		IsAdmin:       isAdmin,
		Active:        active,
		CreatedAt:     time.Now().UTC(),
		RateLimit:     rateLimit,
		ExpiresAt:     expiresAt,
		AllowedVoices: allowedVoices,
		HashHex:       hashHex,
		Suffix:        suffix,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[rec.ID] = rec
	s.byHash[rec.HashHex] = rec.ID
	if err := s.persistLocked(); err != nil {
		delete(s.byID, rec.ID)
		delete(s.byHash, rec.HashHex)
		return "", nil, err
	}
	return plaintext, cloneRecord(rec), nil
}

func (s *FileStore) LookupByPlaintext(ctx context.Context, plaintext string) (*Record, error) {
	hashHex := hashPlaintext(plaintext)

	s.mu.RLock()
	id, ok := s.byHash[hashHex]
	if !ok {
		s.mu.RUnlock()
		return nil, nil
	}
	rec := s.byID[id]
	s.mu.RUnlock()

	if rec == nil || !rec.Active || rec.Expired(time.Now()) {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

func (s *FileStore) List(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, cloneRecord(r))
	}
	return out, nil
}

func (s *FileStore) Update(ctx context.Context, id string, patch Patch) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("key %s not found", id)
	}
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.Active != nil {
		rec.Active = *patch.Active
	}
	if patch.IsAdmin != nil {
		rec.IsAdmin = *patch.IsAdmin
	}
	if patch.RateLimit != nil {
		rec.RateLimit = *patch.RateLimit
	}
	if patch.ExpiresAt != nil {
		rec.ExpiresAt = *patch.ExpiresAt
	}
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return cloneRecord(rec), nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("key %s not found", id)
	}
	delete(s.byID, id)
	delete(s.byHash, rec.HashHex)
	return s.persistLocked()
}

func (s *FileStore) GetEngineConfig(ctx context.Context, id string) (map[string]ProviderPolicy, []string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, nil, fmt.Errorf("key %s not found", id)
	}
	return rec.ProviderConfig, rec.AllowedVoices, nil
}

func (s *FileStore) SetEngineConfig(ctx context.Context, id string, config map[string]ProviderPolicy, allowedVoices []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("key %s not found", id)
	}
	rec.ProviderConfig = config
	rec.AllowedVoices = allowedVoices
	return s.persistLocked()
}

func (s *FileStore) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	rec.LastUsedAt = &now
	rec.RequestCount++
	return s.persistLocked()
}

func (s *FileStore) Close() error { return nil }

// persistLocked serializes the whole table to a temp file and renames it
// into place. Callers must hold s.mu for writing.
func (s *FileStore) persistLocked() error {
	records := make([]*Record, 0, len(s.byID))
	for _, r := range s.byID {
		records = append(records, r)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write temp key store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename key store: %w", err)
	}
	return nil
}

func cloneRecord(r *Record) *Record {
	cp := *r
	if r.LastUsedAt != nil {
		t := *r.LastUsedAt
		cp.LastUsedAt = &t
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		cp.ExpiresAt = &t
	}
	if r.AllowedVoices != nil {
		cp.AllowedVoices = append([]string(nil), r.AllowedVoices...)
	}
	if r.ProviderConfig != nil {
		cp.ProviderConfig = make(map[string]ProviderPolicy, len(r.ProviderConfig))
		for k, v := range r.ProviderConfig {
			cp.ProviderConfig[k] = v
		}
	}
	return &cp
}
