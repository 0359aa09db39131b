package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/tesseract-hub/ingestion-service/internal/models"
)

// EventRow is one extracted warehouse record, keyed by destination column
// name. Values keep their source types (string, int64, float64, nil); the
// loader maps them onto the typed event models.
type EventRow map[string]interface{}

// String returns the value under key as a string, or "" when absent or nil
func (r EventRow) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// WarehouseExtractor is the warehouse side of an ingestion job: per-type
// event extraction over a date range plus the optional user table.
// WarehouseClient is the BigQuery implementation.
type WarehouseExtractor interface {
	HasUserTable() bool
	GetDateRangeEvents(ctx context.Context, startDate, endDate time.Time) (map[string][]EventRow, map[string]error)
	GetUsers(ctx context.Context) ([]EventRow, error)
	Close() error
}

var _ WarehouseExtractor = (*WarehouseClient)(nil)

// WarehouseConfig carries the per-tenant warehouse connection settings
type WarehouseConfig struct {
	ProjectID   string
	DatasetID   string
	UserTable   string
	Credentials []byte
}

// WarehouseClient extracts GA4 export data from BigQuery. One client is
// constructed per job per tenant; it is never shared across tenants.
type WarehouseClient struct {
	cfg    WarehouseConfig
	client *bigquery.Client
	logger *logrus.Entry
}

// NewWarehouseClient authenticates against BigQuery with the tenant's
// service-account credential blob.
func NewWarehouseClient(ctx context.Context, cfg WarehouseConfig, logger *logrus.Entry) (*WarehouseClient, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, option.WithCredentialsJSON(cfg.Credentials))
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client for project %s: %w", cfg.ProjectID, err)
	}
	return &WarehouseClient{cfg: cfg, client: client, logger: logger}, nil
}

// HasUserTable reports whether the tenant configured a warehouse user table
func (c *WarehouseClient) HasUserTable() bool {
	return c.cfg.UserTable != ""
}

// Close releases the underlying BigQuery connection
func (c *WarehouseClient) Close() error {
	return c.client.Close()
}

// GetDateRangeEvents extracts all six event types for the inclusive date
// range. Results and failures are per-type: a failing type yields an entry
// in the error map and no rows, without affecting the other types.
func (c *WarehouseClient) GetDateRangeEvents(ctx context.Context, startDate, endDate time.Time) (map[string][]EventRow, map[string]error) {
	rows := make(map[string][]EventRow, len(models.EventTypes()))
	errs := make(map[string]error)

	for _, eventType := range models.EventTypes() {
		typeRows, err := c.queryEventType(ctx, eventType, startDate, endDate)
		if err != nil {
			c.logger.WithError(err).WithField("event_type", eventType).Error("event extraction failed")
			errs[eventType] = err
			continue
		}
		rows[eventType] = typeRows
	}

	return rows, errs
}

// GetUsers extracts user records from the tenant's configured user table.
// The table may be fully qualified or a bare name within the dataset.
func (c *WarehouseClient) GetUsers(ctx context.Context) ([]EventRow, error) {
	if c.cfg.UserTable == "" {
		return nil, fmt.Errorf("no user table configured")
	}

	table := c.cfg.UserTable
	if !strings.Contains(table, ".") {
		table = fmt.Sprintf("%s.%s.%s", c.cfg.ProjectID, c.cfg.DatasetID, table)
	}

	query := fmt.Sprintf("SELECT * FROM `%s`", table)
	return c.runQuery(ctx, query, nil)
}

func (c *WarehouseClient) queryEventType(ctx context.Context, eventType string, startDate, endDate time.Time) ([]EventRow, error) {
	query := fmt.Sprintf(`SELECT
    event_date,
    CAST(event_timestamp AS STRING) AS event_timestamp,
    user_pseudo_id,
    %s AS ga_session_id,
    %s AS web_user_id,
    %s AS default_branch_id,
    device.category AS device_category,
    device.operating_system AS device_operating_system,
    device.web_info.browser AS device_browser,
    geo.country AS geo_country,
    geo.region AS geo_region,
    geo.city AS geo_city,
%s
    TO_JSON_STRING(t) AS raw_data
FROM `+"`%s.%s.events_*`"+` AS t
WHERE _TABLE_SUFFIX BETWEEN @start_suffix AND @end_suffix
  AND %s
ORDER BY event_timestamp ASC`,
		eventParam("ga_session_id"),
		userProperty("WebUserId"),
		userProperty("default_branch_id"),
		typeColumns(eventType),
		c.cfg.ProjectID, c.cfg.DatasetID,
		eventNamePredicate(eventType),
	)

	return c.runQuery(ctx, query, []bigquery.QueryParameter{
		{Name: "start_suffix", Value: startDate.Format("20060102")},
		{Name: "end_suffix", Value: endDate.Format("20060102")},
	})
}

func (c *WarehouseClient) runQuery(ctx context.Context, query string, params []bigquery.QueryParameter) ([]EventRow, error) {
	q := c.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var rows []EventRow
	for {
		var values map[string]bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row iteration failed: %w", err)
		}

		row := make(EventRow, len(values))
		for key, value := range values {
			row[key] = value
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// eventNamePredicate matches the warehouse event name(s) for an event type.
// no_search_results is emitted under two names by different tag versions.
func eventNamePredicate(eventType string) string {
	if eventType == models.EventTypeNoSearchResults {
		return "event_name IN ('no_search_results', 'view_search_results_no_results')"
	}
	return fmt.Sprintf("event_name = '%s'", eventType)
}

// typeColumns renders the per-type projection. Column aliases match the
// destination table columns one-to-one.
func typeColumns(eventType string) string {
	switch eventType {
	case models.EventTypePurchase:
		return columns(
			alias(eventParam("transaction_id"), "param_transaction_id"),
			"    ecommerce.purchase_revenue AS ecommerce_purchase_revenue",
			"    TO_JSON_STRING(items) AS items_json",
			pageTitleLocation(),
		)
	case models.EventTypeAddToCart, models.EventTypeViewItem:
		return columns(
			"    items[SAFE_OFFSET(0)].item_id AS item_id",
			"    items[SAFE_OFFSET(0)].item_name AS item_name",
			"    items[SAFE_OFFSET(0)].item_category AS item_category",
			"    items[SAFE_OFFSET(0)].price AS price",
			"    items[SAFE_OFFSET(0)].quantity AS quantity",
			"    TO_JSON_STRING(items) AS items_json",
			pageTitleLocation(),
		)
	case models.EventTypePageView:
		return columns(
			alias(eventParam("page_referrer"), "param_page_referrer"),
			pageTitleLocation(),
		)
	case models.EventTypeViewSearchResults:
		return columns(
			alias(eventParam("search_term"), "param_search_term"),
			pageTitleLocation(),
		)
	case models.EventTypeNoSearchResults:
		return columns(
			alias(eventParam("search_term"), "param_no_search_results_term"),
			pageTitleLocation(),
		)
	}
	return pageTitleLocation() + ",\n"
}

func pageTitleLocation() string {
	return alias(eventParam("page_title"), "param_page_title") + ",\n" +
		alias(eventParam("page_location"), "param_page_location")
}

func columns(cols ...string) string {
	return strings.Join(cols, ",\n") + ",\n"
}

func alias(expr, name string) string {
	return "    " + expr + " AS " + name
}

// eventParam extracts one event parameter. Params are key-value arrays in
// the export schema; the first non-null of {int_value, string_value} wins.
func eventParam(key string) string {
	return fmt.Sprintf("(SELECT COALESCE(CAST(ep.value.int_value AS STRING), ep.value.string_value) FROM UNNEST(event_params) ep WHERE ep.key = '%s')", key)
}

// userProperty extracts one user property, same value coalescing as params
func userProperty(key string) string {
	return fmt.Sprintf("(SELECT COALESCE(CAST(up.value.int_value AS STRING), up.value.string_value) FROM UNNEST(user_properties) up WHERE up.key = '%s')", key)
}
