//go:build !cgo_sqlite

package database

import (
	"fmt"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const (
	driverName = "sqlite"
	driverType = "purego"
)

// busyTimeoutParam renders the modernc busy timeout DSN parameter.
func busyTimeoutParam(ms int) string {
	return fmt.Sprintf("_pragma=busy_timeout(%d)", ms)
}
