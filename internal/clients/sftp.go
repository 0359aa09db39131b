package clients

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/ssh"

	"github.com/tesseract-hub/ingestion-service/internal/models"
)

const sftpDialTimeout = 30 * time.Second

// locationsSheetName is tried first; parsing falls back to the first sheet
// when the workbook does not carry it.
const locationsSheetName = "Locations"

// LocationRow is one normalized spreadsheet row, keyed by destination
// column name. Missing and NaN cells are absent from the map.
type LocationRow map[string]string

// LocationExtractor yields the tenant's dimensional location rows.
// SFTPClient is the spreadsheet-over-SFTP implementation.
type LocationExtractor interface {
	GetLocations() ([]LocationRow, error)
}

var _ LocationExtractor = (*SFTPClient)(nil)

// SFTPSettings is the decoded shape of the tenant's sftp_config blob
type SFTPSettings struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	RemotePath        string `json:"remote_path"`
	LocationsFilename string `json:"locations_filename"`
}

// SFTPSettingsFromConfig decodes the jsonb sub-config stored on the tenant
// row and validates the fields a transfer cannot run without.
func SFTPSettingsFromConfig(cfg models.JSONB) (*SFTPSettings, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize sftp config: %w", err)
	}

	var settings SFTPSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode sftp config: %w", err)
	}

	if settings.Host == "" || settings.Username == "" || settings.LocationsFilename == "" {
		return nil, fmt.Errorf("sftp config missing required fields (host, username, locations_filename)")
	}
	if settings.Port == 0 {
		settings.Port = 22
	}

	return &settings, nil
}

// SFTPClient extracts dimensional data from the tenant's spreadsheet drop.
// Each call opens and closes a fresh SSH session.
type SFTPClient struct {
	settings *SFTPSettings
	logger   *logrus.Entry
}

// NewSFTPClient creates a new SFTP extractor client
func NewSFTPClient(settings *SFTPSettings, logger *logrus.Entry) *SFTPClient {
	return &SFTPClient{settings: settings, logger: logger}
}

// GetLocations downloads and parses the configured locations spreadsheet.
// Rows without a warehouse_id are dropped; an empty sheet is a failure.
func (c *SFTPClient) GetLocations() ([]LocationRow, error) {
	localPath, err := c.download(c.settings.LocationsFilename)
	if err != nil {
		return nil, err
	}
	defer os.Remove(localPath)

	rows, err := parseLocationsWorkbook(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse locations file %s: %w", c.settings.LocationsFilename, err)
	}

	c.logger.WithField("rows", len(rows)).Info("parsed locations spreadsheet")
	return rows, nil
}

// download fetches one remote file into a temporary local file and returns
// its path. The caller removes the file.
func (c *SFTPClient) download(filename string) (string, error) {
	sshConfig := &ssh.ClientConfig{
		User:            c.settings.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(c.settings.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         sftpDialTimeout,
	}

	addr := fmt.Sprintf("%s:%d", c.settings.Host, c.settings.Port)
	sshConn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return "", fmt.Errorf("failed to connect to SFTP host %s: %w", c.settings.Host, err)
	}
	defer sshConn.Close()

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		return "", fmt.Errorf("failed to open SFTP session on %s: %w", c.settings.Host, err)
	}
	defer client.Close()

	remotePath := path.Join(c.settings.RemotePath, filename)
	remote, err := client.Open(remotePath)
	if err != nil {
		return "", fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer remote.Close()

	local, err := os.CreateTemp("", "sftp-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := remote.WriteTo(local); err != nil {
		local.Close()
		os.Remove(local.Name())
		return "", fmt.Errorf("failed to download %s: %w", remotePath, err)
	}
	if err := local.Close(); err != nil {
		os.Remove(local.Name())
		return "", fmt.Errorf("failed to flush temporary file: %w", err)
	}

	return local.Name(), nil
}

// parseLocationsWorkbook reads the workbook with sheet fallback and
// normalizes every row.
func parseLocationsWorkbook(localPath string) ([]LocationRow, error) {
	workbook, err := excelize.OpenFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer workbook.Close()

	sheet := locationsSheetName
	if idx, err := workbook.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheets := workbook.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	cells, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(cells) < 2 {
		return nil, fmt.Errorf("sheet %s has no data rows", sheet)
	}

	header := normalizeHeader(cells[0])
	rows := make([]LocationRow, 0, len(cells)-1)
	for _, cellRow := range cells[1:] {
		row := make(LocationRow, len(header))
		for i, column := range header {
			if column == "" || i >= len(cellRow) {
				continue
			}
			value := strings.TrimSpace(cellRow[i])
			if value == "" || isNaNSentinel(value) {
				continue
			}
			row[column] = value
		}
		if strings.TrimSpace(row["warehouse_id"]) == "" {
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s yielded no usable rows", sheet)
	}
	return rows, nil
}

// columnAliases maps upper-cased source headers onto destination columns
var columnAliases = map[string]string{
	"WAREHOUSE_ID":   "warehouse_id",
	"WAREHOUSE_CODE": "warehouse_code",
	"CODE":           "warehouse_code",
	"WAREHOUSE_NAME": "warehouse_name",
	"LOCATION_NAME":  "warehouse_name",
	"NAME":           "warehouse_name",
	"CITY":           "city",
	"STATE":          "state",
	"PROVINCE":       "state",
	"REGION":         "state",
	"COUNTRY":        "country",
	"ADDRESS":        "address1",
	"ADDRESS1":       "address1",
	"ADDRESS_1":      "address1",
	"ADDRESS2":       "address2",
	"ADDRESS_2":      "address2",
	"ZIP":            "zip",
	"ZIPCODE":        "zip",
	"ZIP_CODE":       "zip",
	"POSTAL_CODE":    "zip",
	"IS_ACTIVE":      "is_active",
	"ACTIVE":         "is_active",
}

func normalizeHeader(header []string) []string {
	normalized := make([]string, len(header))
	for i, cell := range header {
		key := strings.ToUpper(strings.TrimSpace(cell))
		key = strings.ReplaceAll(key, " ", "_")
		normalized[i] = columnAliases[key]
	}
	return normalized
}

func isNaNSentinel(value string) bool {
	switch strings.ToLower(value) {
	case "nan", "n/a", "null", "none":
		return true
	}
	return false
}
