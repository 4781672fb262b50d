package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// PostgresBackend stores every family in the shared station_kv table
// created by internal/platform/migrations, keyed by (family, key).
type PostgresBackend struct {
	db *sqlx.DB
}

// NewPostgresBackend wraps an open *sqlx.DB.
func NewPostgresBackend(db *sqlx.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (p *PostgresBackend) Save(ctx context.Context, family, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO station_kv (family, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (family, key) DO UPDATE SET value = $3, updated_at = now()
	`, family, key, value)
	return err
}

func (p *PostgresBackend) Load(ctx context.Context, family, key string) ([]byte, bool, error) {
	var value []byte
	err := p.db.GetContext(ctx, &value, `
		SELECT value FROM station_kv WHERE family = $1 AND key = $2
	`, family, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (p *PostgresBackend) Delete(ctx context.Context, family, key string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM station_kv WHERE family = $1 AND key = $2`, family, key)
	return err
}

func (p *PostgresBackend) List(ctx context.Context, family string) (map[string][]byte, error) {
	rows, err := p.db.QueryxContext(ctx, `SELECT key, value FROM station_kv WHERE family = $1`, family)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

// PostgresIndexStore persists secondary and unique indexes in the
// station_index / station_unique_index tables created by migrations.
type PostgresIndexStore struct {
	db *sqlx.DB
}

// NewPostgresIndexStore wraps an open *sqlx.DB.
func NewPostgresIndexStore(db *sqlx.DB) *PostgresIndexStore {
	return &PostgresIndexStore{db: db}
}

func (p *PostgresIndexStore) AddIndexEntry(ctx context.Context, family, indexName, indexKey, entityID string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO station_index (family, index_name, index_key, entity_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, family, indexName, indexKey, entityID)
	return err
}

func (p *PostgresIndexStore) RemoveIndexEntry(ctx context.Context, family, indexName, indexKey, entityID string) error {
	_, err := p.db.ExecContext(ctx, `
		DELETE FROM station_index
		WHERE family = $1 AND index_name = $2 AND index_key = $3 AND entity_id = $4
	`, family, indexName, indexKey, entityID)
	return err
}

func (p *PostgresIndexStore) LookupIndex(ctx context.Context, family, indexName, indexKey string) ([]string, error) {
	var ids []string
	err := p.db.SelectContext(ctx, &ids, `
		SELECT entity_id FROM station_index
		WHERE family = $1 AND index_name = $2 AND index_key = $3
	`, family, indexName, indexKey)
	return ids, err
}

func (p *PostgresIndexStore) SetUnique(ctx context.Context, family, indexName, indexKey, entityID string) error {
	var existing string
	err := p.db.GetContext(ctx, &existing, `
		SELECT entity_id FROM station_unique_index
		WHERE family = $1 AND index_name = $2 AND index_key = $3
	`, family, indexName, indexKey)
	if err == nil && existing != entityID {
		return ErrUniqueConflict
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO station_unique_index (family, index_name, index_key, entity_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (family, index_name, index_key) DO UPDATE SET entity_id = $4
	`, family, indexName, indexKey, entityID)
	return err
}

func (p *PostgresIndexStore) RemoveUnique(ctx context.Context, family, indexName, indexKey string) error {
	_, err := p.db.ExecContext(ctx, `
		DELETE FROM station_unique_index
		WHERE family = $1 AND index_name = $2 AND index_key = $3
	`, family, indexName, indexKey)
	return err
}

func (p *PostgresIndexStore) LookupUnique(ctx context.Context, family, indexName, indexKey string) (string, bool, error) {
	var id string
	err := p.db.GetContext(ctx, &id, `
		SELECT entity_id FROM station_unique_index
		WHERE family = $1 AND index_name = $2 AND index_key = $3
	`, family, indexName, indexKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}
