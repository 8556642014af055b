package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartRevokedLinkCleaner purges revoked share links with interval.
// Revoked rows are kept for the retention window so that resolution of a
// freshly invalidated token can still be observed in logs, then removed.
func StartRevokedLinkCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				res, err := db.ExecContext(ctx, `
                    DELETE FROM share_links
                     WHERE revoked = true
                       AND revoked_at < $1
                `, cutoff)
				if err != nil {
					log.Error("failed to clean revoked share links", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned revoked share links", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
