package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyErrorNetwork(t *testing.T) {
	err := errors.New("dial tcp: lookup sftp.example.com: no such host")
	msg := ClassifyError("extract locations", "SFTP server", err)
	assert.Equal(t,
		"Failed to extract locations from SFTP server - Network/DNS error. Please check the hostname and network connectivity.",
		msg)
}

func TestClassifyErrorAuthentication(t *testing.T) {
	err := errors.New("ssh: unable to authenticate, attempted methods [none password]")
	msg := ClassifyError("extract locations", "SFTP server", err)
	assert.Equal(t,
		"Failed to extract locations from SFTP server - Authentication error. Please check the configured credentials.",
		msg)
}

func TestClassifyErrorNotFound(t *testing.T) {
	err := fmt.Errorf("failed to open remote file /exports/locations.xlsx: file does not exist")
	msg := ClassifyError("extract locations", "SFTP server", err)
	assert.Equal(t,
		"Failed to extract locations from SFTP server - File not found. Please verify the remote file or table exists.",
		msg)
}

func TestClassifyErrorFallthroughKeepsMessage(t *testing.T) {
	err := errors.New("something completely unexpected happened")
	msg := ClassifyError("extract events", "BigQuery", err)
	assert.Equal(t,
		"Failed to extract events from BigQuery - Error: something completely unexpected happened",
		msg)
}

func TestClassifyErrorFallthroughNamesConcreteType(t *testing.T) {
	type parseFailure struct{ error }
	root := parseFailure{errors.New("boom")}
	msg := ClassifyError("extract events", "BigQuery", root)
	assert.Contains(t, msg, "parseFailure: ")
}

func TestClassifyErrorUnwrapsToRoot(t *testing.T) {
	root := errors.New("inner detail")
	wrapped := fmt.Errorf("outer: %w", root)
	msg := ClassifyError("extract users", "BigQuery", wrapped)
	assert.Equal(t,
		"Failed to extract users from BigQuery - Error: outer: inner detail",
		msg)
}
