package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tesseract-hub/ingestion-service/internal/config"
	"github.com/tesseract-hub/ingestion-service/internal/metrics"
)

// Provisioner creates and initializes per-tenant databases. Provision is
// idempotent: racing provisioners converge on the same initialized database.
type Provisioner struct {
	cfg    *config.DatabaseConfig
	logger *logrus.Entry
}

// NewProvisioner creates a new tenant database provisioner
func NewProvisioner(cfg *config.DatabaseConfig, logger *logrus.Entry) *Provisioner {
	return &Provisioner{cfg: cfg, logger: logger}
}

// Provision ensures the tenant database exists and carries the full schema.
// With forceRecreate the existing database is dropped first (active
// connections terminated). Returns true when the database is ready.
func (p *Provisioner) Provision(ctx context.Context, tenantID string, forceRecreate bool) (bool, error) {
	dbName := TenantDatabaseName(tenantID)
	log := p.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "database": dbName})

	outcome := "failed"
	defer func() { metrics.ProvisionsTotal.WithLabelValues(outcome).Inc() }()

	admin, err := p.openAdmin()
	if err != nil {
		return false, fmt.Errorf("failed to connect to administrative database: %w", err)
	}
	defer closeDB(admin)

	exists, err := p.databaseExists(ctx, admin, dbName)
	if err != nil {
		return false, fmt.Errorf("failed to check database existence: %w", err)
	}

	if exists && forceRecreate {
		log.Warn("force recreate requested, dropping tenant database")
		if err := p.dropDatabase(ctx, admin, dbName); err != nil {
			return false, fmt.Errorf("failed to drop database %s: %w", dbName, err)
		}
		exists = false
	}

	if exists {
		initialized, err := p.schemaInitialized(ctx, dbName)
		if err != nil {
			return false, fmt.Errorf("failed to probe schema: %w", err)
		}
		if initialized {
			log.Debug("tenant database already initialized")
			outcome = "existing"
			return true, nil
		}
		// Database exists but the schema never landed (e.g. a previous
		// provisioner died between CREATE DATABASE and the DDL pass).
		log.Info("tenant database exists without schema, initializing")
	}

	created := false
	if !exists {
		log.Info("creating tenant database")
		err := admin.WithContext(ctx).Exec("CREATE DATABASE " + quoteIdent(dbName)).Error
		if err != nil {
			if isAlreadyExists(err) {
				// A racing provisioner won the CREATE; fall through and
				// let the schema pass converge.
				log.Info("tenant database created concurrently")
			} else {
				return false, fmt.Errorf("failed to create database %s: %w", dbName, err)
			}
		} else {
			created = true
		}
	}

	if err := p.applySchema(ctx, dbName); err != nil {
		if created {
			log.WithError(err).Error("schema initialization failed, rolling back created database")
			if dropErr := p.dropDatabase(ctx, admin, dbName); dropErr != nil {
				log.WithError(dropErr).Error("rollback drop failed")
			}
		}
		return false, fmt.Errorf("failed to initialize schema for %s: %w", dbName, err)
	}

	log.Info("tenant database provisioned")
	outcome = "created"
	return true, nil
}

// applySchema executes every embedded DDL script against the tenant database
// in a single transaction. Scripts with dollar-quoted bodies run as one
// statement; plain scripts are split on ';'.
func (p *Provisioner) applySchema(ctx context.Context, dbName string) error {
	db, err := p.open(dbName)
	if err != nil {
		return err
	}
	defer closeDB(db)

	scripts, err := schemaScripts()
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, script := range scripts {
			if hasDollarQuote(script.SQL) {
				if err := tx.Exec(script.SQL).Error; err != nil {
					return fmt.Errorf("script %s: %w", script.Name, err)
				}
				continue
			}
			for _, stmt := range splitStatements(script.SQL) {
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("script %s: %w", script.Name, err)
				}
			}
		}
		return nil
	})
}

// schemaInitialized probes for the tenant_config table, which is always the
// first script in the provisioning order.
func (p *Provisioner) schemaInitialized(ctx context.Context, dbName string) (bool, error) {
	db, err := p.open(dbName)
	if err != nil {
		return false, err
	}
	defer closeDB(db)

	var initialized bool
	err = db.WithContext(ctx).
		Raw("SELECT to_regclass('public.tenant_config') IS NOT NULL").
		Scan(&initialized).Error
	return initialized, err
}

func (p *Provisioner) databaseExists(ctx context.Context, admin *gorm.DB, dbName string) (bool, error) {
	var count int64
	err := admin.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM pg_database WHERE datname = ?", dbName).
		Scan(&count).Error
	return count > 0, err
}

// dropDatabase terminates active connections and drops the database
func (p *Provisioner) dropDatabase(ctx context.Context, admin *gorm.DB, dbName string) error {
	err := admin.WithContext(ctx).Exec(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = ? AND pid <> pg_backend_pid()",
		dbName,
	).Error
	if err != nil {
		p.logger.WithError(err).WithField("database", dbName).Warn("failed to terminate active connections")
	}
	return admin.WithContext(ctx).Exec("DROP DATABASE IF EXISTS " + quoteIdent(dbName)).Error
}

func (p *Provisioner) openAdmin() (*gorm.DB, error) {
	return openDSN(p.cfg, p.cfg.AdminDSN())
}

func (p *Provisioner) open(dbName string) (*gorm.DB, error) {
	return openDSN(p.cfg, p.cfg.DSN(dbName))
}

// openDSN opens a single-connection engine and verifies it with a ping
func openDSN(cfg *config.DatabaseConfig, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger(cfg.Echo),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// quoteIdent double-quotes a PostgreSQL identifier. Tenant database names
// contain hyphens, so every DDL emission must go through this.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// isAlreadyExists matches the duplicate-database error from a racing
// provisioner (SQLSTATE 42P04).
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "42p04")
}
