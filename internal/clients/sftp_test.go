package clients

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tesseract-hub/ingestion-service/internal/models"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()

	workbook := excelize.NewFile()
	defer workbook.Close()

	if sheet != "Sheet1" {
		_, err := workbook.NewSheet(sheet)
		require.NoError(t, err)
		require.NoError(t, workbook.DeleteSheet("Sheet1"))
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, workbook.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "locations.xlsx")
	require.NoError(t, workbook.SaveAs(path))
	return path
}

func TestParseLocationsWorkbook(t *testing.T) {
	path := writeWorkbook(t, "Locations", [][]interface{}{
		{"WAREHOUSE_ID", "LOCATION_NAME", "PROVINCE", "POSTAL_CODE", "CITY"},
		{"WH-001", "Downtown", "ON", "M5V 2T6", "Toronto"},
		{"WH-002", "Harbourfront", "NaN", "V6B 1A1", "Vancouver"},
	})

	rows, err := parseLocationsWorkbook(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "WH-001", rows[0]["warehouse_id"])
	assert.Equal(t, "Downtown", rows[0]["warehouse_name"])
	assert.Equal(t, "ON", rows[0]["state"])
	assert.Equal(t, "M5V 2T6", rows[0]["zip"])
	assert.Equal(t, "Toronto", rows[0]["city"])

	// NaN sentinels become absent keys
	_, ok := rows[1]["state"]
	assert.False(t, ok)
}

func TestParseLocationsWorkbookFirstSheetFallback(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]interface{}{
		{"WAREHOUSE_ID", "NAME"},
		{"WH-009", "Fallback"},
	})

	rows, err := parseLocationsWorkbook(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Fallback", rows[0]["warehouse_name"])
}

func TestParseLocationsWorkbookDropsRowsWithoutWarehouseID(t *testing.T) {
	path := writeWorkbook(t, "Locations", [][]interface{}{
		{"WAREHOUSE_ID", "NAME"},
		{"", "No ID"},
		{"   ", "Whitespace ID"},
		{"WH-100", "Kept"},
	})

	rows, err := parseLocationsWorkbook(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "WH-100", rows[0]["warehouse_id"])
}

func TestParseLocationsWorkbookEmptyIsFailure(t *testing.T) {
	path := writeWorkbook(t, "Locations", [][]interface{}{
		{"WAREHOUSE_ID", "NAME"},
	})

	_, err := parseLocationsWorkbook(path)
	assert.Error(t, err)
}

func TestParseLocationsWorkbookUnreadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-workbook.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := parseLocationsWorkbook(path)
	assert.Error(t, err)
}

func TestNormalizeHeader(t *testing.T) {
	header := normalizeHeader([]string{"warehouse_id", " Location_Name ", "POSTAL CODE", "UNKNOWN_COLUMN"})
	assert.Equal(t, []string{"warehouse_id", "warehouse_name", "zip", ""}, header)
}

func TestSFTPSettingsFromConfig(t *testing.T) {
	settings, err := SFTPSettingsFromConfig(models.JSONB{
		"host":               "sftp.example.com",
		"username":           "ingest",
		"password":           "secret",
		"remote_path":        "/exports",
		"locations_filename": "locations.xlsx",
	})
	require.NoError(t, err)
	assert.Equal(t, "sftp.example.com", settings.Host)
	assert.Equal(t, 22, settings.Port, "port defaults to 22")
	assert.Equal(t, "/exports", settings.RemotePath)
}

func TestSFTPSettingsFromConfigMissingFields(t *testing.T) {
	_, err := SFTPSettingsFromConfig(models.JSONB{"host": "sftp.example.com"})
	assert.Error(t, err)
}
