package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tesseract-hub/ingestion-service/internal/config"
)

// tenantDatabasePrefix is the naming convention for per-tenant databases.
// The name contains hyphens, so it must always be double-quoted in DDL.
const tenantDatabasePrefix = "google-analytics-"

// TenantDatabaseName returns the database name for a canonical tenant UUID
func TenantDatabaseName(tenantID string) string {
	return tenantDatabasePrefix + tenantID
}

// Router yields short-lived database sessions against per-tenant databases.
//
// Sessions are deliberately not pooled across invocations: each WithSession
// call constructs a fresh engine with a single-connection pool and disposes
// it on exit. Long-lived pools would outlive rotated credentials and could
// leak connections across tenants in a serverless deployment.
type Router struct {
	cfg    *config.DatabaseConfig
	logger *logrus.Entry
}

// NewRouter creates a new per-tenant database router
func NewRouter(cfg *config.DatabaseConfig, logger *logrus.Entry) *Router {
	return &Router{cfg: cfg, logger: logger}
}

// WithSession runs work inside a transaction on the tenant's database.
// The transaction commits when work returns nil and rolls back when it
// returns an error or panics; the engine is disposed on every exit path.
// If the tenant database does not exist the driver error surfaces to the
// caller, which should invoke the Provisioner.
func (r *Router) WithSession(ctx context.Context, tenantID string, work func(tx *gorm.DB) error) error {
	dbName := TenantDatabaseName(tenantID)

	db, err := r.open(dbName)
	if err != nil {
		return fmt.Errorf("failed to open session for tenant %s: %w", tenantID, err)
	}
	defer r.dispose(db, dbName)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return work(tx)
	})
}

// Open returns a non-transactional handle on the tenant's database. The
// caller owns the handle and must Close it; prefer WithSession unless the
// work cannot run inside a single transaction.
func (r *Router) Open(tenantID string) (*gorm.DB, error) {
	return r.open(TenantDatabaseName(tenantID))
}

// Close disposes an engine obtained from Open
func (r *Router) Close(db *gorm.DB) {
	r.dispose(db, "")
}

func (r *Router) open(dbName string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(r.cfg.DSN(dbName)), &gorm.Config{
		Logger: gormLogger(r.cfg.Echo),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", dbName, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Minimum pool: one connection, no overflow, no reuse across calls.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	// Pre-ping drops dead sockets before the first statement runs.
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", dbName, err)
	}

	return db, nil
}

func (r *Router) dispose(db *gorm.DB, dbName string) {
	sqlDB, err := db.DB()
	if err != nil {
		r.logger.WithError(err).Warn("could not get sql.DB for disposal")
		return
	}
	if err := sqlDB.Close(); err != nil {
		r.logger.WithError(err).WithField("database", dbName).Warn("failed to dispose engine")
	}
}

// gormLogger maps the DATABASE_ECHO toggle onto gorm's log levels
func gormLogger(echo bool) logger.Interface {
	if echo {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Warn)
}
