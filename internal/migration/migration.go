// Package migration enumerates migration units from a directory.
//
// A unit's identifier is its filename without the final extension, and units
// are applied in case-insensitive lexicographic order of that identifier.
// Authors must therefore encode precedence in a sortable prefix, for example
// 0001_create_users.sql or 20240101120000_create_users.sql. Numbers are not
// compared numerically: 10_x sorts before 9_x.
package migration

import (
	"crypto/sha256"
	"encoding/hex"
)

// Unit is a single migration read from disk.
type Unit struct {
	ID       string // "0001_create_users", the filename without its extension
	SQL      string // raw file contents, executed as one batch
	Checksum string // SHA-256 hex digest of SQL
	FilePath string // path of the file inside the source
}

// ComputeChecksum returns the SHA-256 hex digest of the given SQL string.
func ComputeChecksum(sql string) string {
	h := sha256.Sum256([]byte(sql))

	return hex.EncodeToString(h[:])
}
