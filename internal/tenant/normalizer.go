package tenant

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// Normalize maps an arbitrary tenant identifier to its canonical UUID string.
//
// Identifiers that already parse as a UUID (any standard textual form) are
// canonicalized to the lower-case hyphenated form. Anything else is hashed:
// the first 16 bytes of MD5(utf8(raw)) are interpreted as a big-endian UUID.
// The mapping is pure and deterministic, so the same external identifier
// always lands in the same tenant database regardless of which process
// computed it.
func Normalize(raw string) string {
	if id, err := uuid.Parse(raw); err == nil {
		return id.String()
	}

	sum := md5.Sum([]byte(raw))
	id, err := uuid.FromBytes(sum[:])
	if err != nil {
		// Unreachable: md5.Sum always yields exactly 16 bytes.
		panic(err)
	}
	return id.String()
}
