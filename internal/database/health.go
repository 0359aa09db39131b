package database

import (
	"context"

	"github.com/tesseract-hub/ingestion-service/internal/config"
)

// HealthCheck verifies the administrative database is reachable. It opens
// and disposes a single-connection engine per probe, matching the session
// model used everywhere else.
func HealthCheck(ctx context.Context, cfg *config.DatabaseConfig) error {
	db, err := openDSN(cfg, cfg.AdminDSN())
	if err != nil {
		return err
	}
	defer closeDB(db)

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
