//go:build cgo_sqlite

// CGO SQLite driver using mattn/go-sqlite3.
// Build with: go build -tags cgo_sqlite (requires CGO_ENABLED=1).
package database

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver
)

const (
	driverName = "sqlite3"
	driverType = "cgo"
)

// busyTimeoutParam renders the mattn busy timeout DSN parameter.
func busyTimeoutParam(ms int) string {
	return fmt.Sprintf("_busy_timeout=%d", ms)
}
