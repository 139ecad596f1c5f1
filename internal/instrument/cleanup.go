package instrument

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"customfields/internal/store"
)

// CleanupOldEvents deletes events older than retentionDays.
func CleanupOldEvents(ctx context.Context, db *sql.DB, dialect store.Dialect, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	pb := dialect.NewParamBuilder()
	n, err := store.Exec(ctx, db, "DELETE FROM _events WHERE "+dialect.OlderThanDays("created_at", pb, retentionDays), pb.Params()...)
	if err != nil {
		return 0, fmt.Errorf("event cleanup: %w", err)
	}
	if n > 0 {
		zap.S().Infof("Event cleanup: deleted %d old events", n)
	}
	return n, nil
}
