package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"customfields/internal/store"
)

// MetaStorage keeps field values in the _postmeta table.
type MetaStorage struct {
	db      store.Querier
	dialect store.Dialect
}

func NewMetaStorage(s *store.Store) *MetaStorage {
	return &MetaStorage{db: s.DB, dialect: s.Dialect}
}

func (m *MetaStorage) Persist(ctx context.Context, entityID int64, key string, value any) error {
	want, data, err := normalize(value)
	if err != nil {
		return err
	}

	pb := m.dialect.NewParamBuilder()
	sqlStr := store.Upsert(m.dialect, pb, "_postmeta", []string{"entity_id", "meta_key"},
		[]string{"entity_id", "meta_key", "meta_value"}, entityID, key, string(data))
	if _, err := m.db.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("persist %s for entity %d: %w", key, entityID, store.MapError(m.dialect, err))
	}

	got, found, err := m.retrieve(ctx, entityID, key)
	if err != nil {
		return err
	}
	if !found || !sameValue(want, got) {
		return fmt.Errorf("%w: %s for entity %d", ErrPersistMismatch, key, entityID)
	}
	return nil
}

func (m *MetaStorage) Retrieve(ctx context.Context, entityID int64, key string) (any, error) {
	v, found, err := m.retrieve(ctx, entityID, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return "", nil
	}
	return v, nil
}

func (m *MetaStorage) retrieve(ctx context.Context, entityID int64, key string) (any, bool, error) {
	pb := m.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT meta_value FROM _postmeta WHERE entity_id = %s AND meta_key = %s",
		pb.Add(entityID), pb.Add(key))

	var raw sql.NullString
	err := m.db.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("retrieve %s for entity %d: %w", key, entityID, err)
	}
	if !raw.Valid {
		return nil, true, nil
	}
	v, err := decode(raw.String)
	if err != nil {
		return nil, false, fmt.Errorf("retrieve %s for entity %d: %w", key, entityID, err)
	}
	return v, true, nil
}

func (m *MetaStorage) RetrieveAll(ctx context.Context, entityID int64) (map[string]any, error) {
	pb := m.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT meta_key, meta_value FROM _postmeta WHERE entity_id = %s ORDER BY meta_key",
		pb.Add(entityID))

	rows, err := m.db.QueryContext(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("retrieve all for entity %d: %w", entityID, err)
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var key string
		var raw sql.NullString
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan meta row: %w", err)
		}
		if !raw.Valid {
			out[key] = nil
			continue
		}
		v, err := decode(raw.String)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out[key] = v
	}
	return out, rows.Err()
}

func (m *MetaStorage) Delete(ctx context.Context, entityID int64, key string) (bool, error) {
	pb := m.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _postmeta WHERE entity_id = %s AND meta_key = %s",
		pb.Add(entityID), pb.Add(key))
	n, err := store.Exec(ctx, m.db, sqlStr, pb.Params()...)
	if err != nil {
		return false, fmt.Errorf("delete %s for entity %d: %w", key, entityID, err)
	}
	return n > 0, nil
}

func decode(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}
