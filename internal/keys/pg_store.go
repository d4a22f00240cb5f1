package keys

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// schema (executed once at startup by NewPGStore, see ensureSchema):
//
//	CREATE TABLE IF NOT EXISTS api_keys (
//	    id               TEXT PRIMARY KEY,
//	    name             TEXT NOT NULL,
//	    is_admin         BOOLEAN NOT NULL,
//	    active           BOOLEAN NOT NULL,
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    last_used_at     TIMESTAMPTZ,
//	    request_count    BIGINT NOT NULL DEFAULT 0,
//	    rate_limit       JSONB NOT NULL,
//	    expires_at       TIMESTAMPTZ,
//	    engine_config    JSONB,
//	    allowed_voices   JSONB,
//	    hash_hex         TEXT UNIQUE NOT NULL,
//	    suffix           TEXT NOT NULL
//	);
//	CREATE INDEX IF NOT EXISTS api_keys_hash_hex_idx ON api_keys (hash_hex);

// PGStore is the relational Repository backend, selected when DATABASE_URL
// is configured and reachable at startup.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to databaseURL and ensures the schema exists.
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to relational key store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping relational key store: %w", err)
	}
	s := &PGStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS api_keys (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			is_admin       BOOLEAN NOT NULL,
			active         BOOLEAN NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL,
			last_used_at   TIMESTAMPTZ,
			request_count  BIGINT NOT NULL DEFAULT 0,
			rate_limit     JSONB NOT NULL,
			expires_at     TIMESTAMPTZ,
			engine_config  JSONB,
			allowed_voices JSONB,
			hash_hex       TEXT UNIQUE NOT NULL,
			suffix         TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS api_keys_hash_hex_idx ON api_keys (hash_hex);
	`)
	if err != nil {
		return fmt.Errorf("ensure key schema: %w", err)
	}
	return nil
}

func (s *PGStore) Create(ctx context.Context, name string, isAdmin bool, active bool, rateLimit RateLimitPolicy, expiresAt *time.Time, allowedVoices []string) (string, *Record, error) {
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

	rateLimitJSON, _ := json.Marshal(rec.RateLimit)
	voicesJSON, _ := json.Marshal(rec.AllowedVoices)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO api_keys (id, name, is_admin, active, created_at, request_count, rate_limit, expires_at, allowed_voices, hash_hex, suffix)
		VALUES ($1,$2,$3,$4,$5,0,$6,$7,$8,$9,$10)
	`, rec.ID, rec.Name, rec.IsAdmin, rec.Active, rec.CreatedAt, rateLimitJSON, rec.ExpiresAt, voicesJSON, rec.HashHex, rec.Suffix)
	if err != nil {
		return "", nil, fmt.Errorf("insert key: %w", err)
	}
	return plaintext, rec, nil
}

func (s *PGStore) LookupByPlaintext(ctx context.Context, plaintext string) (*Record, error) {
	hashHex := hashPlaintext(plaintext)
	rec, err := s.scanByHash(ctx, hashHex)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if !rec.Active || rec.Expired(time.Now()) {
		return nil, nil
	}
	return rec, nil
}

func (s *PGStore) scanByHash(ctx context.Context, hashHex string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, is_admin, active, created_at, last_used_at, request_count, rate_limit, expires_at, engine_config, allowed_voices, hash_hex, suffix
		FROM api_keys WHERE hash_hex = $1
	`, hashHex)
	return scanRecord(row)
}

func (s *PGStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, is_admin, active, created_at, last_used_at, request_count, rate_limit, expires_at, engine_config, allowed_voices, hash_hex, suffix
		FROM api_keys ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PGStore) Update(ctx context.Context, id string, patch Patch) (*Record, error) {
	current, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.Active != nil {
		current.Active = *patch.Active
	}
	if patch.IsAdmin != nil {
		current.IsAdmin = *patch.IsAdmin
	}
	if patch.RateLimit != nil {
		current.RateLimit = *patch.RateLimit
	}
	if patch.ExpiresAt != nil {
		current.ExpiresAt = *patch.ExpiresAt
	}

	rateLimitJSON, _ := json.Marshal(current.RateLimit)
	_, err = s.pool.Exec(ctx, `
		UPDATE api_keys SET name=$1, active=$2, is_admin=$3, rate_limit=$4, expires_at=$5
		WHERE id=$6
	`, current.Name, current.Active, current.IsAdmin, rateLimitJSON, current.ExpiresAt, id)
	if err != nil {
		return nil, fmt.Errorf("update key: %w", err)
	}
	return current, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM api_keys WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

func (s *PGStore) GetEngineConfig(ctx context.Context, id string) (map[string]ProviderPolicy, []string, error) {
	rec, err := s.getByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec.ProviderConfig, rec.AllowedVoices, nil
}

func (s *PGStore) SetEngineConfig(ctx context.Context, id string, config map[string]ProviderPolicy, allowedVoices []string) error {
	configJSON, _ := json.Marshal(config)
	voicesJSON, _ := json.Marshal(allowedVoices)
	tag, err := s.pool.Exec(ctx, `
		UPDATE api_keys SET engine_config=$1, allowed_voices=$2 WHERE id=$3
	`, configJSON, voicesJSON, id)
	if err != nil {
		return fmt.Errorf("set engine config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("key %s not found", id)
	}
	return nil
}

func (s *PGStore) Touch(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE api_keys SET last_used_at=now(), request_count=request_count+1 WHERE id=$1
	`, id)
	if err != nil {
		return fmt.Errorf("touch key: %w", err)
	}
	return nil
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PGStore) getByID(ctx context.Context, id string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, is_admin, active, created_at, last_used_at, request_count, rate_limit, expires_at, engine_config, allowed_voices, hash_hex, suffix
		FROM api_keys WHERE id = $1
	`, id)
	rec, err := scanRecord(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("key %s not found", id)
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec                          Record
		rateLimitJSON                []byte
		engineConfigJSON, voicesJSON []byte
	)
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.IsAdmin, &rec.Active, &rec.CreatedAt, &rec.LastUsedAt,
		&rec.RequestCount, &rateLimitJSON, &rec.ExpiresAt, &engineConfigJSON, &voicesJSON,
		&rec.HashHex, &rec.Suffix,
	)
	if err != nil {
		return nil, err
	}
	if len(rateLimitJSON) > 0 {
		_ = json.Unmarshal(rateLimitJSON, &rec.RateLimit)
	}
	if len(engineConfigJSON) > 0 {
		_ = json.Unmarshal(engineConfigJSON, &rec.ProviderConfig)
	}
	if len(voicesJSON) > 0 {
		_ = json.Unmarshal(voicesJSON, &rec.AllowedVoices)
	}
	return &rec, nil
}
