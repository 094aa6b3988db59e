// Package database provides SQLite connection management for modlens.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dbsmedya/modlens/internal/config"
	"github.com/dbsmedya/modlens/internal/logger"
)

// DriverName returns the database/sql driver name compiled into the binary.
func DriverName() string {
	return driverName
}

// DriverType returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// Connector hands out the connection of a database variant.
type Connector interface {
	Get(ctx context.Context, variant string) (*sql.DB, error)
}

// Manager holds one lazily opened connection per database variant.
// A variant connection is created on first use and reused until Close.
type Manager struct {
	mu            sync.Mutex
	paths         map[string]string
	conns         map[string]*sql.DB
	busyTimeoutMS int
	maxRetries    int
	backoff       time.Duration
	logger        *logger.Logger
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.Config, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault()
	}
	paths := make(map[string]string, len(cfg.Variants))
	for name, path := range cfg.Variants {
		paths[strings.ToLower(name)] = path
	}
	return &Manager{
		paths:         paths,
		conns:         make(map[string]*sql.DB),
		busyTimeoutMS: cfg.Simulation.BusyTimeoutMS,
		maxRetries:    3,
		backoff:       100 * time.Millisecond,
		logger:        log,
	}
}

// Variants returns the configured variant names in sorted order.
func (m *Manager) Variants() []string {
	names := make([]string, 0, len(m.paths))
	for name := range m.paths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the connection of a variant, opening it on first use.
func (m *Manager) Get(ctx context.Context, variant string) (*sql.DB, error) {
	key := strings.ToLower(variant)

	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.conns[key]; ok {
		return db, nil
	}

	path, ok := m.paths[key]
	if !ok {
		return nil, fmt.Errorf("unknown database variant %q", variant)
	}

	db, err := m.connectWithRetry(ctx, path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to variant %q: %w", variant, err)
	}

	m.conns[key] = db
	m.logger.WithVariant(key).Debugw("opened variant connection", "path", path, "driver", driverName)
	return db, nil
}

// OpenSample opens the representative database used for schema
// introspection in read-only mode.
func OpenSample(ctx context.Context, path string, busyTimeoutMS int) (*sql.DB, error) {
	m := &Manager{busyTimeoutMS: busyTimeoutMS, maxRetries: 1, logger: logger.NewNop()}
	db, err := m.connectWithRetry(ctx, path, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample database: %w", err)
	}
	return db, nil
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context, path string, readOnly bool) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database file: %w", err)
	}

	var db *sql.DB
	var err error

	backoff := m.backoff
	for i := 0; i < m.maxRetries; i++ {
		db, err = m.connect(path, readOnly)
		if err == nil {
			if pingErr := db.PingContext(ctx); pingErr == nil {
				return db, nil
			} else {
				_ = db.Close()
				err = pingErr
			}
		}

		if i < m.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", m.maxRetries, err)
}

// connect creates a database handle limited to a single connection so that
// a simulation transaction always sees its own writes.
func (m *Manager) connect(path string, readOnly bool) (*sql.DB, error) {
	db, err := sql.Open(driverName, BuildDSN(path, readOnly, m.busyTimeoutMS))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// BuildDSN constructs a SQLite URI DSN for the compiled driver.
func BuildDSN(path string, readOnly bool, busyTimeoutMS int) string {
	mode := "rw"
	if readOnly {
		mode = "ro"
	}
	dsn := "file:" + path + "?mode=" + mode
	if busyTimeoutMS > 0 {
		dsn += "&" + busyTimeoutParam(busyTimeoutMS)
	}
	return dsn
}

// Close closes all variant connections gracefully.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, name := range sortedKeys(m.conns) {
		if err := m.conns[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close: %w", name, err))
		}
		delete(m.conns, name)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}
	return nil
}

func sortedKeys(conns map[string]*sql.DB) []string {
	names := make([]string, 0, len(conns))
	for name := range conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
