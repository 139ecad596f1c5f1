package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"

	"customfields/internal/store"
)

// Prefix namespaces cache rows in the options table.
const Prefix = "CustomFieldsCacheItem"

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrCacheSave = errors.New("cache save failed")
)

// OptionsCache stores JSON values in the _options table, fronted by an
// in-process LRU so repeated reads in one process skip the database.
type OptionsCache struct {
	db      store.Querier
	dialect store.Dialect
	front   *lru.Cache[string, []byte]
}

// NewOptionsCache creates a cache over s. size is the LRU capacity.
func NewOptionsCache(s *store.Store, size int) (*OptionsCache, error) {
	if size <= 0 {
		size = 128
	}
	front, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &OptionsCache{db: s.DB, dialect: s.Dialect, front: front}, nil
}

// Get decodes the value stored under key into dst.
func (c *OptionsCache) Get(ctx context.Context, key string, dst any) error {
	raw, err := c.raw(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode cache item %s: %w", key, err)
	}
	return nil
}

// Set stores value under key. Setting the value already stored succeeds
// without a write.
func (c *OptionsCache) Set(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrCacheSave
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrCacheSave, err)
	}

	if current, err := c.raw(ctx, key); err == nil && sameJSON(current, data) {
		return nil
	}

	pb := c.dialect.NewParamBuilder()
	sqlStr := store.Upsert(c.dialect, pb, "_options", []string{"name"}, []string{"name", "value"}, Prefix+key, string(data))
	if _, err := c.db.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheSave, store.MapError(c.dialect, err))
	}
	c.front.Add(key, data)
	return nil
}

// Delete removes key from both tiers.
func (c *OptionsCache) Delete(ctx context.Context, key string) error {
	c.front.Remove(key)
	pb := c.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _options WHERE name = %s", pb.Add(Prefix+key))
	if _, err := c.db.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("delete cache item %s: %w", key, err)
	}
	return nil
}

func (c *OptionsCache) raw(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheMiss
	}
	if data, ok := c.front.Get(key); ok {
		return data, nil
	}

	pb := c.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT value FROM _options WHERE name = %s", pb.Add(Prefix+key))
	var value string
	err := c.db.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cache item %s: %w", key, err)
	}
	data := []byte(value)
	c.front.Add(key, data)
	return data, nil
}

// sameJSON compares decoded values, since postgres JSONB does not keep the
// original formatting.
func sameJSON(a, b []byte) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}
