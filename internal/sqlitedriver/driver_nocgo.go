//go:build !cgo

package sqlitedriver

import (
	"database/sql"

	"modernc.org/sqlite"
)

func init() {
	sql.Register("sqlite3", &sqlite.Driver{})
}

// EncryptionSupported reports whether the active SQLite driver honours
// PRAGMA key. False for the pure-Go fallback.
const EncryptionSupported = false
