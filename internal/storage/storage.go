package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrPersistMismatch is returned when the value read back after a write
// differs from the value written.
var ErrPersistMismatch = errors.New("persisted value does not match")

// Storage is per-entity key/value persistence for field values. Values may
// be scalars or nested structures; implementations serialize them as JSON.
type Storage interface {
	// Persist writes value under key. Writing the value already stored is
	// a success, not a failure.
	Persist(ctx context.Context, entityID int64, key string, value any) error
	// Retrieve returns the stored value, or "" when nothing is stored.
	Retrieve(ctx context.Context, entityID int64, key string) (any, error)
	// RetrieveAll returns every stored key for the entity.
	RetrieveAll(ctx context.Context, entityID int64) (map[string]any, error)
	// Delete removes key. It reports whether anything was removed.
	Delete(ctx context.Context, entityID int64, key string) (bool, error)
}

// normalize round-trips v through JSON so values compare the way they
// will be read back.
func normalize(v any) (any, []byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, nil, fmt.Errorf("decode value: %w", err)
	}
	return out, data, nil
}

func sameValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
