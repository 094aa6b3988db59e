// Package verifier provides table state verification for modlens. It is
// used to prove that a simulated mutation left the database untouched.
package verifier

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/dbsmedya/modlens/internal/logger"
	"github.com/dbsmedya/modlens/internal/sqlutil"
)

// VerificationMethod defines how table state is captured.
type VerificationMethod string

const (
	// MethodCount uses simple row count comparison (fast)
	MethodCount VerificationMethod = "count"
	// MethodSHA256 uses SHA256 hash of all rows (slower but more thorough)
	MethodSHA256 VerificationMethod = "sha256"
	// MethodSkip skips verification entirely
	MethodSkip VerificationMethod = "skip"
)

// ParseMethod maps a configuration value to a method. Empty selects SHA256.
func ParseMethod(s string) (VerificationMethod, error) {
	switch m := VerificationMethod(strings.ToLower(s)); m {
	case "":
		return MethodSHA256, nil
	case MethodCount, MethodSHA256, MethodSkip:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported verification method: %s", s)
	}
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Snapshot is the captured state of one table.
type Snapshot struct {
	Table  string
	Method VerificationMethod
	Rows   int64
	Hash   string // empty for MethodCount
}

// VerifyResult holds the comparison of two snapshots of a table.
type VerifyResult struct {
	Table        string
	Method       VerificationMethod
	BeforeCount  int64
	AfterCount   int64
	BeforeHash   string
	AfterHash    string
	Match        bool
	ErrorMessage string
}

// MismatchError reports a table whose state changed between two snapshots.
type MismatchError struct {
	Result *VerifyResult
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("verification mismatch in table %s: %s", e.Result.Table, e.Result.ErrorMessage)
}

// Verifier captures and compares table snapshots.
type Verifier struct {
	method VerificationMethod
	qb     squirrel.StatementBuilderType
	logger *logger.Logger
}

// NewVerifier creates a verifier. An empty method defaults to SHA256.
func NewVerifier(method VerificationMethod, log *logger.Logger) *Verifier {
	if log == nil {
		log = logger.NewDefault()
	}
	if method == "" {
		method = MethodSHA256
	}
	return &Verifier{
		method: method,
		qb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		logger: log,
	}
}

// GetMethod returns the configured verification method.
func (v *Verifier) GetMethod() VerificationMethod {
	return v.method
}

// Capture snapshots a table. pk orders the rows for hashing; it should be
// the table's primary key.
func (v *Verifier) Capture(ctx context.Context, q Querier, table string, pk []string) (*Snapshot, error) {
	snap := &Snapshot{Table: table, Method: v.method}

	switch v.method {
	case MethodSkip:
		return snap, nil
	case MethodCount:
		n, err := v.count(ctx, q, table)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		snap.Rows = n
	case MethodSHA256:
		hash, n, err := v.checksum(ctx, q, table, pk)
		if err != nil {
			return nil, fmt.Errorf("failed to compute hash of %s: %w", table, err)
		}
		snap.Rows, snap.Hash = n, hash
	default:
		return nil, fmt.Errorf("unsupported verification method: %s", v.method)
	}

	v.logger.Debugf("Captured %s snapshot of %q (%d rows)", v.method, table, snap.Rows)
	return snap, nil
}

// Compare checks that two snapshots of the same table agree. A mismatch
// is returned as *MismatchError along with the result.
func (v *Verifier) Compare(before, after *Snapshot) (*VerifyResult, error) {
	result := &VerifyResult{
		Table:       before.Table,
		Method:      before.Method,
		BeforeCount: before.Rows,
		AfterCount:  after.Rows,
		BeforeHash:  before.Hash,
		AfterHash:   after.Hash,
		Match:       before.Rows == after.Rows && before.Hash == after.Hash,
	}

	if result.Match {
		return result, nil
	}

	if before.Rows != after.Rows {
		result.ErrorMessage = fmt.Sprintf("count mismatch: before=%d, after=%d", before.Rows, after.Rows)
	} else {
		result.ErrorMessage = fmt.Sprintf("hash mismatch: before=%s, after=%s", short(before.Hash), short(after.Hash))
	}
	v.logger.Errorf("Verification FAILED for table %q: %s", result.Table, result.ErrorMessage)
	return result, &MismatchError{Result: result}
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

func (v *Verifier) count(ctx context.Context, q Querier, table string) (int64, error) {
	query, args, err := v.qb.Select("COUNT(*)").From(sqlutil.QuoteIdentifier(table)).ToSql()
	if err != nil {
		return 0, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to scan count: %w", err)
		}
	}
	return n, rows.Err()
}

// Checksum computes a SHA256 hash over every row of a table ordered by pk,
// and returns it with the row count.
func Checksum(ctx context.Context, q Querier, table string, pk []string) (string, int64, error) {
	return NewVerifier(MethodSHA256, logger.NewNop()).checksum(ctx, q, table, pk)
}

func (v *Verifier) checksum(ctx context.Context, q Querier, table string, pk []string) (string, int64, error) {
	query, args, err := v.qb.Select("*").
		From(sqlutil.QuoteIdentifier(table)).
		OrderBy(sqlutil.QuoteIdentifiers(pk)...).
		ToSql()
	if err != nil {
		return "", 0, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return "", 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", 0, fmt.Errorf("failed to get columns: %w", err)
	}

	hasher := sha256.New()
	var totalRows int64

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return "", 0, fmt.Errorf("hash computation interrupted: %w", err)
		}

		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for j := range values {
			valuePtrs[j] = &values[j]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return "", 0, fmt.Errorf("failed to scan row: %w", err)
		}

		hasher.Write([]byte(serializeRow(columns, values)))
		hasher.Write([]byte("\n"))
		totalRows++
	}

	if err := rows.Err(); err != nil {
		return "", 0, fmt.Errorf("error iterating rows: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), totalRows, nil
}

// serializeRow converts a row to a deterministic string representation for hashing.
// Format: col1=val1<NUL>col2=val2...
func serializeRow(columns []string, values []interface{}) string {
	parts := make([]string, len(columns))

	for i, col := range columns {
		var valStr string

		switch val := values[i].(type) {
		case nil:
			valStr = "NULL"
		case []byte:
			valStr = "x" + hex.EncodeToString(val)
		case int64:
			valStr = strconv.FormatInt(val, 10)
		case float64:
			valStr = strconv.FormatFloat(val, 'g', -1, 64)
		case bool:
			valStr = strconv.FormatBool(val)
		case string:
			valStr = strconv.Quote(val)
		default:
			valStr = fmt.Sprintf("%v", val)
		}

		parts[i] = col + "=" + valStr
	}

	// Null byte separator avoids ambiguity with values containing commas
	return strings.Join(parts, "\x00")
}
