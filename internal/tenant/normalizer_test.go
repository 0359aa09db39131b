package tenant

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"
)

func TestNormalize_ValidUUIDPassesThrough(t *testing.T) {
	got := Normalize("550e8400-e29b-41d4-a716-446655440000")
	if got != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("expected canonical UUID to pass through, got %s", got)
	}
}

func TestNormalize_UppercaseUUIDCanonicalized(t *testing.T) {
	got := Normalize("550E8400-E29B-41D4-A716-446655440000")
	if got != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("expected lower-case canonical form, got %s", got)
	}
}

func TestNormalize_URNAndBracedForms(t *testing.T) {
	forms := []string{
		"urn:uuid:550e8400-e29b-41d4-a716-446655440000",
		"{550e8400-e29b-41d4-a716-446655440000}",
		"550e8400e29b41d4a716446655440000",
	}
	for _, form := range forms {
		if got := Normalize(form); got != "550e8400-e29b-41d4-a716-446655440000" {
			t.Errorf("Normalize(%q) = %s, want canonical form", form, got)
		}
	}
}

func TestNormalize_NonUUIDIsHashed(t *testing.T) {
	got := Normalize("tenant-123")

	// Expected value is the first 16 bytes of MD5("tenant-123") as a
	// big-endian UUID. Pin the exact output so any byte-order regression
	// shows up immediately.
	sum := md5.Sum([]byte("tenant-123"))
	hexSum := hex.EncodeToString(sum[:])
	want := hexSum[0:8] + "-" + hexSum[8:12] + "-" + hexSum[12:16] + "-" + hexSum[16:20] + "-" + hexSum[20:32]

	if got != want {
		t.Errorf("Normalize(tenant-123) = %s, want %s", got, want)
	}
	if strings.ToLower(got) != got {
		t.Errorf("expected lower-case output, got %s", got)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	inputs := []string{"tenant-123", "ACME Corp", "", "550e8400-e29b-41d4-a716-446655440000", "日本語"}
	for _, in := range inputs {
		first := Normalize(in)
		for i := 0; i < 5; i++ {
			if got := Normalize(in); got != first {
				t.Fatalf("Normalize(%q) not deterministic: %s vs %s", in, first, got)
			}
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"tenant-123", "some customer", "550E8400-E29B-41D4-A716-446655440000"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %s -> %s", in, once, twice)
		}
	}
}

func TestNormalize_DistinctInputsDistinctOutputs(t *testing.T) {
	a := Normalize("tenant-a")
	b := Normalize("tenant-b")
	if a == b {
		t.Errorf("distinct inputs mapped to the same tenant id %s", a)
	}
}
