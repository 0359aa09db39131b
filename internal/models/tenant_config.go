package models

import (
	"time"
)

// TenantConfig is the per-tenant configuration row. It lives inside the
// tenant's own database and is created by the external auth flow; the
// ingestion engine only ever reads it.
type TenantConfig struct {
	ID       string `gorm:"type:uuid;primaryKey" json:"id"`
	IsActive bool   `gorm:"not null;default:true" json:"is_active"`

	// Warehouse (BigQuery) sub-configuration
	BigQueryProjectID       *string `gorm:"column:bigquery_project_id;type:varchar(255)" json:"bigquery_project_id,omitempty"`
	BigQueryDatasetID       *string `gorm:"column:bigquery_dataset_id;type:varchar(255)" json:"bigquery_dataset_id,omitempty"`
	BigQueryCredentials     *string `gorm:"column:bigquery_credentials;type:text" json:"-"`
	BigQueryUserTable       *string `gorm:"column:bigquery_user_table;type:varchar(512)" json:"bigquery_user_table,omitempty"`
	BigQueryEnabled         bool    `gorm:"column:bigquery_enabled;not null;default:false" json:"bigquery_enabled"`
	BigQueryValidationError *string `gorm:"column:bigquery_validation_error;type:text" json:"bigquery_validation_error,omitempty"`

	// SFTP sub-configuration (host, port, credentials, remote path, filenames)
	SFTPConfig          JSONB   `gorm:"column:sftp_config;type:jsonb" json:"sftp_config,omitempty"`
	SFTPEnabled         bool    `gorm:"column:sftp_enabled;not null;default:false" json:"sftp_enabled"`
	SFTPValidationError *string `gorm:"column:sftp_validation_error;type:text" json:"sftp_validation_error,omitempty"`

	// SMTP sub-configuration, consumed by the email send path only
	EmailConfig          JSONB   `gorm:"column:email_config;type:jsonb" json:"email_config,omitempty"`
	EmailEnabled         bool    `gorm:"column:email_enabled;not null;default:false" json:"email_enabled"`
	EmailValidationError *string `gorm:"column:email_validation_error;type:text" json:"email_validation_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for TenantConfig
func (TenantConfig) TableName() string {
	return "tenant_config"
}

// BigQueryUsable reports whether the warehouse sub-config is enabled,
// validated, and complete enough to construct a client.
func (c *TenantConfig) BigQueryUsable() bool {
	if !c.BigQueryEnabled {
		return false
	}
	if c.BigQueryValidationError != nil && *c.BigQueryValidationError != "" {
		return false
	}
	return strPresent(c.BigQueryProjectID) && strPresent(c.BigQueryDatasetID) && strPresent(c.BigQueryCredentials)
}

// SFTPUsable reports whether the SFTP sub-config is enabled and validated.
func (c *TenantConfig) SFTPUsable() bool {
	if !c.SFTPEnabled || c.SFTPConfig == nil {
		return false
	}
	if c.SFTPValidationError != nil && *c.SFTPValidationError != "" {
		return false
	}
	return true
}

// UserTable returns the configured warehouse user table, or "" when unset.
func (c *TenantConfig) UserTable() string {
	if c.BigQueryUserTable == nil {
		return ""
	}
	return *c.BigQueryUserTable
}

func strPresent(s *string) bool {
	return s != nil && *s != ""
}
