package clients

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tesseract-hub/ingestion-service/internal/models"
)

func TestEventNamePredicate(t *testing.T) {
	assert.Equal(t, "event_name = 'purchase'", eventNamePredicate(models.EventTypePurchase))
	assert.Equal(t, "event_name = 'page_view'", eventNamePredicate(models.EventTypePageView))

	// no_search_results is emitted under two names by different tag versions
	assert.Equal(t,
		"event_name IN ('no_search_results', 'view_search_results_no_results')",
		eventNamePredicate(models.EventTypeNoSearchResults))
}

func TestTypeColumns(t *testing.T) {
	tests := []struct {
		eventType string
		contains  []string
	}{
		{
			eventType: models.EventTypePurchase,
			contains: []string{
				"AS param_transaction_id",
				"ecommerce.purchase_revenue AS ecommerce_purchase_revenue",
				"TO_JSON_STRING(items) AS items_json",
				"AS param_page_title",
				"AS param_page_location",
			},
		},
		{
			eventType: models.EventTypeAddToCart,
			contains: []string{
				"items[SAFE_OFFSET(0)].item_id AS item_id",
				"items[SAFE_OFFSET(0)].price AS price",
				"items[SAFE_OFFSET(0)].quantity AS quantity",
				"TO_JSON_STRING(items) AS items_json",
			},
		},
		{
			eventType: models.EventTypePageView,
			contains:  []string{"AS param_page_referrer"},
		},
		{
			eventType: models.EventTypeViewSearchResults,
			contains:  []string{"AS param_search_term"},
		},
		{
			eventType: models.EventTypeNoSearchResults,
			contains:  []string{"AS param_no_search_results_term"},
		},
		{
			eventType: models.EventTypeViewItem,
			contains:  []string{"items[SAFE_OFFSET(0)].item_name AS item_name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			cols := typeColumns(tt.eventType)
			for _, fragment := range tt.contains {
				assert.Contains(t, cols, fragment)
			}
		})
	}
}

func TestEventParamCoalescesValues(t *testing.T) {
	sql := eventParam("ga_session_id")
	assert.Contains(t, sql, "COALESCE(CAST(ep.value.int_value AS STRING), ep.value.string_value)")
	assert.Contains(t, sql, "ep.key = 'ga_session_id'")
	assert.Contains(t, sql, "UNNEST(event_params)")
}

func TestUserPropertyCoalescesValues(t *testing.T) {
	sql := userProperty("WebUserId")
	assert.Contains(t, sql, "UNNEST(user_properties)")
	assert.Contains(t, sql, "up.key = 'WebUserId'")
}

func TestEventRowString(t *testing.T) {
	row := EventRow{
		"user_pseudo_id": "abc123",
		"quantity":       int64(3),
		"missing_value":  nil,
	}
	assert.Equal(t, "abc123", row.String("user_pseudo_id"))
	assert.Equal(t, "3", row.String("quantity"))
	assert.Equal(t, "", row.String("missing_value"))
	assert.Equal(t, "", row.String("absent_key"))
}
