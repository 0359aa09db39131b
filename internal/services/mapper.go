package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tesseract-hub/ingestion-service/internal/clients"
	"github.com/tesseract-hub/ingestion-service/internal/models"
)

// parseEventDate accepts the warehouse's compact YYYYMMDD form as well as
// the calendar YYYY-MM-DD form.
func parseEventDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 8 && !strings.Contains(raw, "-") {
		return time.Parse("20060102", raw)
	}
	return time.Parse("2006-01-02", raw)
}

// mapEventRows converts extracted rows of one event type into a slice of
// the matching model, ready for CreateInBatches. Rows are copied; the
// source map is never mutated. The returned value is a typed slice.
func mapEventRows(tenantID, eventType string, rows []clients.EventRow) (interface{}, error) {
	switch eventType {
	case models.EventTypePurchase:
		out := make([]models.PurchaseEvent, 0, len(rows))
		for _, row := range rows {
			common, err := mapCommon(tenantID, row)
			if err != nil {
				return nil, err
			}
			out = append(out, models.PurchaseEvent{
				EventCommon:     common,
				TransactionID:   rowStringPtr(row, "param_transaction_id"),
				PurchaseRevenue: rowFloat(row, "ecommerce_purchase_revenue"),
				ItemsJSON:       rowRawJSON(row, "items_json"),
			})
		}
		return out, nil

	case models.EventTypeAddToCart:
		out := make([]models.AddToCartEvent, 0, len(rows))
		for _, row := range rows {
			common, err := mapCommon(tenantID, row)
			if err != nil {
				return nil, err
			}
			out = append(out, models.AddToCartEvent{
				EventCommon:  common,
				ItemID:       rowStringPtr(row, "item_id"),
				ItemName:     rowStringPtr(row, "item_name"),
				ItemCategory: rowStringPtr(row, "item_category"),
				Price:        rowFloatPtr(row, "price"),
				Quantity:     rowIntPtr(row, "quantity"),
				ItemsJSON:    rowRawJSON(row, "items_json"),
			})
		}
		return out, nil

	case models.EventTypePageView:
		out := make([]models.PageViewEvent, 0, len(rows))
		for _, row := range rows {
			common, err := mapCommon(tenantID, row)
			if err != nil {
				return nil, err
			}
			out = append(out, models.PageViewEvent{
				EventCommon:  common,
				PageReferrer: rowStringPtr(row, "param_page_referrer"),
			})
		}
		return out, nil

	case models.EventTypeViewSearchResults:
		out := make([]models.ViewSearchResultsEvent, 0, len(rows))
		for _, row := range rows {
			common, err := mapCommon(tenantID, row)
			if err != nil {
				return nil, err
			}
			out = append(out, models.ViewSearchResultsEvent{
				EventCommon: common,
				SearchTerm:  rowStringPtr(row, "param_search_term"),
			})
		}
		return out, nil

	case models.EventTypeNoSearchResults:
		out := make([]models.NoSearchResultsEvent, 0, len(rows))
		for _, row := range rows {
			common, err := mapCommon(tenantID, row)
			if err != nil {
				return nil, err
			}
			out = append(out, models.NoSearchResultsEvent{
				EventCommon:         common,
				NoSearchResultsTerm: rowStringPtr(row, "param_no_search_results_term"),
			})
		}
		return out, nil

	case models.EventTypeViewItem:
		out := make([]models.ViewItemEvent, 0, len(rows))
		for _, row := range rows {
			common, err := mapCommon(tenantID, row)
			if err != nil {
				return nil, err
			}
			out = append(out, models.ViewItemEvent{
				EventCommon:  common,
				ItemID:       rowStringPtr(row, "item_id"),
				ItemName:     rowStringPtr(row, "item_name"),
				ItemCategory: rowStringPtr(row, "item_category"),
				Price:        rowFloatPtr(row, "price"),
				Quantity:     rowIntPtr(row, "quantity"),
				ItemsJSON:    rowRawJSON(row, "items_json"),
			})
		}
		return out, nil
	}

	return nil, fmt.Errorf("unknown event type %q", eventType)
}

func mapCommon(tenantID string, row clients.EventRow) (models.EventCommon, error) {
	eventDate, err := parseEventDate(row.String("event_date"))
	if err != nil {
		return models.EventCommon{}, fmt.Errorf("bad event_date %q: %w", row.String("event_date"), err)
	}

	return models.EventCommon{
		TenantID:              tenantID,
		EventDate:             eventDate,
		EventTimestamp:        row.String("event_timestamp"),
		UserPseudoID:          row.String("user_pseudo_id"),
		GASessionID:           rowStringPtr(row, "ga_session_id"),
		WebUserID:             rowStringPtr(row, "web_user_id"),
		DefaultBranchID:       rowStringPtr(row, "default_branch_id"),
		DeviceCategory:        rowStringPtr(row, "device_category"),
		DeviceOperatingSystem: rowStringPtr(row, "device_operating_system"),
		DeviceBrowser:         rowStringPtr(row, "device_browser"),
		GeoCountry:            rowStringPtr(row, "geo_country"),
		GeoRegion:             rowStringPtr(row, "geo_region"),
		GeoCity:               rowStringPtr(row, "geo_city"),
		PageTitle:             rowStringPtr(row, "param_page_title"),
		PageLocation:          rowStringPtr(row, "param_page_location"),
		RawData:               rowRawJSON(row, "raw_data"),
	}, nil
}

// mapUserRows converts warehouse user table rows into User models
func mapUserRows(tenantID string, rows []clients.EventRow) []models.User {
	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		userID := firstNonEmpty(row.String("user_id"), row.String("id"))
		if userID == "" {
			continue
		}
		var raw models.RawJSON
		if data, err := json.Marshal(row); err == nil {
			raw = models.RawJSON(data)
		}
		users = append(users, models.User{
			TenantID:    tenantID,
			UserID:      userID,
			Email:       rowStringPtr(row, "email"),
			FirstName:   rowStringPtr(row, "first_name"),
			LastName:    rowStringPtr(row, "last_name"),
			Phone:       rowStringPtr(row, "phone"),
			Zip:         rowStringPtr(row, "zip"),
			BranchID:    rowStringPtr(row, "branch_id"),
			SignupDate:  rowTimePtr(row, "signup_date"),
			LastLoginAt: rowTimePtr(row, "last_login_at"),
			RawData:     raw,
		})
	}
	return users
}

// mapLocationRows converts normalized spreadsheet rows into Location models
func mapLocationRows(tenantID string, rows []clients.LocationRow) []models.Location {
	locations := make([]models.Location, 0, len(rows))
	for _, row := range rows {
		locations = append(locations, models.Location{
			TenantID:      tenantID,
			WarehouseID:   row["warehouse_id"],
			WarehouseCode: cellPtr(row, "warehouse_code"),
			WarehouseName: cellPtr(row, "warehouse_name"),
			City:          cellPtr(row, "city"),
			State:         cellPtr(row, "state"),
			Country:       cellPtr(row, "country"),
			Address1:      cellPtr(row, "address1"),
			Address2:      cellPtr(row, "address2"),
			Zip:           cellPtr(row, "zip"),
			IsActive:      cellBool(row, "is_active", true),
		})
	}
	return locations
}

func rowStringPtr(row clients.EventRow, key string) *string {
	s := row.String(key)
	if s == "" {
		return nil
	}
	return &s
}

func rowFloat(row clients.EventRow, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

func rowFloatPtr(row clients.EventRow, key string) *float64 {
	if row[key] == nil {
		return nil
	}
	f := rowFloat(row, key)
	return &f
}

func rowIntPtr(row clients.EventRow, key string) *int64 {
	switch v := row[key].(type) {
	case int64:
		return &v
	case float64:
		i := int64(v)
		return &i
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return &i
		}
	}
	return nil
}

func rowRawJSON(row clients.EventRow, key string) models.RawJSON {
	s := row.String(key)
	if s == "" {
		return nil
	}
	return models.RawJSON(s)
}

func rowTimePtr(row clients.EventRow, key string) *time.Time {
	switch v := row[key].(type) {
	case time.Time:
		return &v
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return &t
			}
		}
	}
	return nil
}

func cellPtr(row clients.LocationRow, key string) *string {
	s := strings.TrimSpace(row[key])
	if s == "" {
		return nil
	}
	return &s
}

func cellBool(row clients.LocationRow, key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(row[key])) {
	case "true", "1", "yes", "y", "active":
		return true
	case "false", "0", "no", "n", "inactive":
		return false
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
