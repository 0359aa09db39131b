package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a tenant-scoped dimensional user record pulled from the warehouse
// user table. All id-like, phone, and zip columns are strings by contract:
// upstream systems emit them with leading zeros and mixed formats, and the
// ingestion side must not reinterpret them.
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID string    `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_users_tenant_user" json:"tenant_id"`

	UserID    string  `gorm:"column:user_id;type:varchar(255);not null;uniqueIndex:idx_users_tenant_user" json:"user_id"`
	Email     *string `gorm:"type:varchar(512)" json:"email,omitempty"`
	FirstName *string `gorm:"column:first_name;type:varchar(255)" json:"first_name,omitempty"`
	LastName  *string `gorm:"column:last_name;type:varchar(255)" json:"last_name,omitempty"`
	Phone     *string `gorm:"type:varchar(50)" json:"phone,omitempty"`
	Zip       *string `gorm:"type:varchar(50)" json:"zip,omitempty"`
	BranchID  *string `gorm:"column:branch_id;type:varchar(255)" json:"branch_id,omitempty"`

	SignupDate  *time.Time `gorm:"column:signup_date" json:"signup_date,omitempty"`
	LastLoginAt *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`

	RawData RawJSON `gorm:"column:raw_data;type:jsonb" json:"raw_data,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate sets UUID before creating record
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
