package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GA4 event types ingested from the warehouse. Each maps to its own table.
const (
	EventTypePurchase          = "purchase"
	EventTypeAddToCart         = "add_to_cart"
	EventTypePageView          = "page_view"
	EventTypeViewSearchResults = "view_search_results"
	EventTypeNoSearchResults   = "no_search_results"
	EventTypeViewItem          = "view_item"
)

// EventTypes lists the six ingested event types
func EventTypes() []string {
	return []string{
		EventTypePurchase,
		EventTypeAddToCart,
		EventTypePageView,
		EventTypeViewSearchResults,
		EventTypeNoSearchResults,
		EventTypeViewItem,
	}
}

// EventCommon carries the columns shared by all six event tables. The full
// source document is preserved under raw_data; the typed columns are lossy
// conveniences extracted from it.
type EventCommon struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID string    `gorm:"column:tenant_id;type:uuid;not null" json:"tenant_id"`

	EventDate      time.Time `gorm:"column:event_date;type:date;not null" json:"event_date"`
	EventTimestamp string    `gorm:"column:event_timestamp;type:varchar(32);not null" json:"event_timestamp"`
	UserPseudoID   string    `gorm:"column:user_pseudo_id;type:varchar(255);not null" json:"user_pseudo_id"`
	GASessionID    *string   `gorm:"column:ga_session_id;type:varchar(255)" json:"ga_session_id,omitempty"`

	WebUserID       *string `gorm:"column:web_user_id;type:varchar(255)" json:"web_user_id,omitempty"`
	DefaultBranchID *string `gorm:"column:default_branch_id;type:varchar(255)" json:"default_branch_id,omitempty"`

	DeviceCategory        *string `gorm:"column:device_category;type:varchar(100)" json:"device_category,omitempty"`
	DeviceOperatingSystem *string `gorm:"column:device_operating_system;type:varchar(100)" json:"device_operating_system,omitempty"`
	DeviceBrowser         *string `gorm:"column:device_browser;type:varchar(100)" json:"device_browser,omitempty"`
	GeoCountry            *string `gorm:"column:geo_country;type:varchar(100)" json:"geo_country,omitempty"`
	GeoRegion             *string `gorm:"column:geo_region;type:varchar(100)" json:"geo_region,omitempty"`
	GeoCity               *string `gorm:"column:geo_city;type:varchar(100)" json:"geo_city,omitempty"`

	PageTitle    *string `gorm:"column:param_page_title;type:text" json:"param_page_title,omitempty"`
	PageLocation *string `gorm:"column:param_page_location;type:text" json:"param_page_location,omitempty"`

	RawData RawJSON `gorm:"column:raw_data;type:jsonb" json:"raw_data,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate sets UUID before creating record
func (e *EventCommon) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// PurchaseEvent is a completed transaction
type PurchaseEvent struct {
	EventCommon
	TransactionID   *string `gorm:"column:param_transaction_id;type:varchar(255)" json:"param_transaction_id,omitempty"`
	PurchaseRevenue float64 `gorm:"column:ecommerce_purchase_revenue;type:numeric(15,2);not null;default:0" json:"ecommerce_purchase_revenue"`
	ItemsJSON       RawJSON `gorm:"column:items_json;type:jsonb" json:"items_json,omitempty"`
}

func (PurchaseEvent) TableName() string { return "purchase" }

// AddToCartEvent carries the first item denormalized plus the full item list
type AddToCartEvent struct {
	EventCommon
	ItemID       *string  `gorm:"column:item_id;type:varchar(255)" json:"item_id,omitempty"`
	ItemName     *string  `gorm:"column:item_name;type:text" json:"item_name,omitempty"`
	ItemCategory *string  `gorm:"column:item_category;type:varchar(255)" json:"item_category,omitempty"`
	Price        *float64 `gorm:"column:price;type:numeric(15,2)" json:"price,omitempty"`
	Quantity     *int64   `gorm:"column:quantity" json:"quantity,omitempty"`
	ItemsJSON    RawJSON  `gorm:"column:items_json;type:jsonb" json:"items_json,omitempty"`
}

func (AddToCartEvent) TableName() string { return "add_to_cart" }

// PageViewEvent is a plain page view
type PageViewEvent struct {
	EventCommon
	PageReferrer *string `gorm:"column:param_page_referrer;type:text" json:"param_page_referrer,omitempty"`
}

func (PageViewEvent) TableName() string { return "page_view" }

// ViewSearchResultsEvent is a search that produced results
type ViewSearchResultsEvent struct {
	EventCommon
	SearchTerm *string `gorm:"column:param_search_term;type:text" json:"param_search_term,omitempty"`
}

func (ViewSearchResultsEvent) TableName() string { return "view_search_results" }

// NoSearchResultsEvent is a search that genuinely found nothing. The
// upstream mistag of successful searches into this type is corrected by the
// reclassifier before loading.
type NoSearchResultsEvent struct {
	EventCommon
	NoSearchResultsTerm *string `gorm:"column:param_no_search_results_term;type:text" json:"param_no_search_results_term,omitempty"`
}

func (NoSearchResultsEvent) TableName() string { return "no_search_results" }

// ViewItemEvent is a product detail view
type ViewItemEvent struct {
	EventCommon
	ItemID       *string  `gorm:"column:item_id;type:varchar(255)" json:"item_id,omitempty"`
	ItemName     *string  `gorm:"column:item_name;type:text" json:"item_name,omitempty"`
	ItemCategory *string  `gorm:"column:item_category;type:varchar(255)" json:"item_category,omitempty"`
	Price        *float64 `gorm:"column:price;type:numeric(15,2)" json:"price,omitempty"`
	Quantity     *int64   `gorm:"column:quantity" json:"quantity,omitempty"`
	ItemsJSON    RawJSON  `gorm:"column:items_json;type:jsonb" json:"items_json,omitempty"`
}

func (ViewItemEvent) TableName() string { return "view_item" }

// EventTableName returns the destination table for an event type. The table
// names match the event type strings one-to-one; keeping the lookup explicit
// guards against a new event type silently writing to a missing table.
func EventTableName(eventType string) (string, bool) {
	switch eventType {
	case EventTypePurchase, EventTypeAddToCart, EventTypePageView,
		EventTypeViewSearchResults, EventTypeNoSearchResults, EventTypeViewItem:
		return eventType, true
	}
	return "", false
}
