package database

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StartKeepAlive issues a trivial query every interval so the managed database does not drop the idle
// pool. It is not a health check. Returns when ctx is cancelled.
func StartKeepAlive(ctx context.Context, db *gorm.DB, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				qctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				if err := db.WithContext(qctx).Exec("SELECT 1").Error; err != nil {
					log.Warn("db keepalive failed", zap.Error(err))
				}
				cancel()
			}
		}
	}()
}
