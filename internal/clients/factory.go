package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tesseract-hub/ingestion-service/internal/database"
	"github.com/tesseract-hub/ingestion-service/internal/models"
)

// Factory constructs per-tenant extractor clients from the tenant's stored
// configuration. A missing, disabled, or broken sub-config yields nil, not
// an error; the caller decides whether the omission is fatal.
type Factory struct {
	router *database.Router
	logger *logrus.Entry
}

// NewFactory creates a new tenant client factory
func NewFactory(router *database.Router, logger *logrus.Entry) *Factory {
	return &Factory{router: router, logger: logger}
}

// WarehouseClient builds a warehouse extractor for the tenant, or nil when
// the warehouse sub-config is unusable.
func (f *Factory) WarehouseClient(ctx context.Context, tenantID string) WarehouseExtractor {
	cfg, err := f.tenantConfig(ctx, tenantID)
	if err != nil {
		f.logger.WithError(err).WithField("tenant_id", tenantID).Warn("could not load tenant config for warehouse client")
		return nil
	}
	if cfg == nil || !cfg.BigQueryUsable() {
		return nil
	}

	client, err := NewWarehouseClient(ctx, WarehouseConfig{
		ProjectID:   *cfg.BigQueryProjectID,
		DatasetID:   *cfg.BigQueryDatasetID,
		UserTable:   cfg.UserTable(),
		Credentials: []byte(*cfg.BigQueryCredentials),
	}, f.logger.WithField("tenant_id", tenantID))
	if err != nil {
		f.logger.WithError(err).WithField("tenant_id", tenantID).Warn("failed to construct warehouse client")
		return nil
	}
	return client
}

// SFTPClient builds an SFTP extractor for the tenant, or nil when the SFTP
// sub-config is unusable.
func (f *Factory) SFTPClient(ctx context.Context, tenantID string) LocationExtractor {
	cfg, err := f.tenantConfig(ctx, tenantID)
	if err != nil {
		f.logger.WithError(err).WithField("tenant_id", tenantID).Warn("could not load tenant config for SFTP client")
		return nil
	}
	if cfg == nil || !cfg.SFTPUsable() {
		return nil
	}

	settings, err := SFTPSettingsFromConfig(cfg.SFTPConfig)
	if err != nil {
		f.logger.WithError(err).WithField("tenant_id", tenantID).Warn("invalid SFTP config")
		return nil
	}
	return NewSFTPClient(settings, f.logger.WithField("tenant_id", tenantID))
}

// tenantConfig reads the active config row from the tenant's own database.
// Returns (nil, nil) when no active row exists.
func (f *Factory) tenantConfig(ctx context.Context, tenantID string) (*models.TenantConfig, error) {
	var cfg models.TenantConfig
	var found bool

	err := f.router.WithSession(ctx, tenantID, func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND is_active = ?", tenantID, true).First(&cfg)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		if result.Error != nil {
			return result.Error
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant config: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &cfg, nil
}
