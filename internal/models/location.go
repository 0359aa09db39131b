package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Location is a tenant-scoped branch/warehouse location pulled from the
// SFTP spreadsheet source. (tenant_id, warehouse_id) is the upsert key;
// locations are never deleted, only refreshed.
type Location struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID string    `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_locations_tenant_warehouse" json:"tenant_id"`

	WarehouseID   string  `gorm:"column:warehouse_id;type:varchar(255);not null;uniqueIndex:idx_locations_tenant_warehouse" json:"warehouse_id"`
	WarehouseCode *string `gorm:"column:warehouse_code;type:varchar(255)" json:"warehouse_code,omitempty"`
	WarehouseName *string `gorm:"column:warehouse_name;type:varchar(512)" json:"warehouse_name,omitempty"`

	City     *string `gorm:"type:varchar(255)" json:"city,omitempty"`
	State    *string `gorm:"type:varchar(255)" json:"state,omitempty"`
	Country  *string `gorm:"type:varchar(255)" json:"country,omitempty"`
	Address1 *string `gorm:"column:address1;type:varchar(512)" json:"address1,omitempty"`
	Address2 *string `gorm:"column:address2;type:varchar(512)" json:"address2,omitempty"`
	Zip      *string `gorm:"type:varchar(50)" json:"zip,omitempty"`

	IsActive bool `gorm:"column:is_active;not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Location
func (Location) TableName() string {
	return "locations"
}

// BeforeCreate sets UUID before creating record
func (l *Location) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
