// Package simulate runs UPDATE and DELETE statements inside a transaction
// that is always rolled back, and reports their effect row by row.
package simulate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/dbsmedya/modlens/internal/database"
	"github.com/dbsmedya/modlens/internal/logger"
	"github.com/dbsmedya/modlens/internal/schema"
	"github.com/dbsmedya/modlens/internal/sqlutil"
	"github.com/dbsmedya/modlens/internal/statement"
	"github.com/dbsmedya/modlens/internal/types"
	"github.com/dbsmedya/modlens/internal/verifier"
)

// Option configures a Simulator.
type Option func(*Simulator)

// WithVerifyRollback captures the target table before and after each
// simulation with the given method and fails when they differ.
func WithVerifyRollback(method verifier.VerificationMethod) Option {
	return func(s *Simulator) {
		s.verifyMethod = method
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// Simulator computes the effect of mutations without persisting them.
type Simulator struct {
	model        *schema.Model
	conns        database.Connector
	verifyMethod verifier.VerificationMethod
	verifier     *verifier.Verifier
	qb           squirrel.StatementBuilderType
	logger       *logger.Logger
}

// New creates a Simulator. Rollback verification is off unless
// WithVerifyRollback is given.
func New(model *schema.Model, conns database.Connector, opts ...Option) *Simulator {
	s := &Simulator{
		model:  model,
		conns:  conns,
		qb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		logger: logger.NewDefault(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.verifyMethod != "" && s.verifyMethod != verifier.MethodSkip {
		s.verifier = verifier.NewVerifier(s.verifyMethod, s.logger)
	}
	return s
}

// row is one selected row: its key and the selected column values.
type row struct {
	key    types.RecordKey
	args   []interface{} // primary key values as scanned
	values map[string]types.Value
}

// keyParams bounds the bound parameters of one after-state query.
const keyParams = 900

// plan is a resolved mutation.
type plan struct {
	shape   *statement.MutationShape
	table   string
	pk      []string
	set     []string
	columns []string
}

// Simulate executes m inside a transaction on its variant connection,
// captures the selected rows before and after, rolls back and returns the
// per-row diff. Unknown tables are reported before any transaction is
// opened. Backend failures are returned as *types.MutationError once the
// rollback has completed.
func (s *Simulator) Simulate(ctx context.Context, m *statement.Mutation) (types.MutationDiff, error) {
	src := statement.Normalize(m.SQL)
	p, err := s.plan(src)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithVariant(m.Variant).WithTable(p.table)

	db, err := s.conns.Get(ctx, m.Variant)
	if err != nil {
		return nil, &types.SchemaError{Kind: types.DatabaseUnavailable, Err: err}
	}

	var snapshot *verifier.Snapshot
	if s.verifier != nil {
		if snapshot, err = s.verifier.Capture(ctx, db, p.table, p.pk); err != nil {
			return nil, &types.SchemaError{Kind: types.DatabaseUnavailable, Table: p.table, Err: err}
		}
	}

	before, after, runErr := s.run(ctx, db, p, src)

	if s.verifier != nil {
		current, err := s.verifier.Capture(ctx, db, p.table, p.pk)
		if err != nil {
			return nil, &types.SchemaError{Kind: types.DatabaseUnavailable, Table: p.table, Err: err}
		}
		if _, err := s.verifier.Compare(snapshot, current); err != nil {
			return nil, fmt.Errorf("rollback verification failed: %w", err)
		}
	}

	if runErr != nil {
		log.Debugw("simulation failed", "error", runErr)
		return nil, runErr
	}

	diff := diffRows(p, before, after)
	log.Debugw("simulation complete", "kind", p.shape.Kind.String(), "rows", len(before), "changes", len(diff))
	return diff, nil
}

func (s *Simulator) plan(sql string) (*plan, error) {
	shape, err := statement.ParseMutation(sql)
	if err != nil {
		return nil, err
	}

	t, err := s.model.Table(shape.Table)
	if err != nil {
		return nil, err
	}

	p := &plan{shape: shape, table: t.Name, pk: append([]string(nil), t.PrimaryKey...)}

	for _, c := range shape.SetColumns {
		name, err := s.model.ResolveColumn(t.Name, c)
		if err != nil {
			// kept verbatim; the backend reports it
			name = c
		}
		if !contains(p.set, name) {
			p.set = append(p.set, name)
		}
	}
	p.columns = dedupe(append(append([]string(nil), p.pk...), p.set...))
	return p, nil
}

// run owns the transaction. The deferred rollback covers every exit path.
func (s *Simulator) run(ctx context.Context, db *sql.DB, p *plan, stmt string) (before, after []row, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, &types.MutationError{Message: err.Error(), Err: err}
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Errorf("Failed to roll back simulation of %s: %v", p.table, rbErr)
		}
	}()

	var where squirrel.Sqlizer
	if p.shape.Where != "" {
		where = squirrel.Expr("(" + p.shape.Where + ")")
	}
	if before, err = s.selectRows(ctx, tx, p, where); err != nil {
		return nil, nil, err
	}

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return nil, nil, &types.MutationError{Message: err.Error(), Err: err}
	}

	if after, err = s.selectByKeys(ctx, tx, p, before); err != nil {
		return nil, nil, err
	}

	return before, after, nil
}

// selectByKeys re-reads the rows captured before the statement ran by their
// primary key, so an UPDATE that moves rows out of its own WHERE is still
// compared.
func (s *Simulator) selectByKeys(ctx context.Context, tx *sql.Tx, p *plan, before []row) ([]row, error) {
	var out []row
	size := keyParams / len(p.pk)
	for start := 0; start < len(before); start += size {
		chunk := before[start:min(start+size, len(before))]

		var where squirrel.Sqlizer
		if len(p.pk) == 1 {
			keys := make([]interface{}, len(chunk))
			for i, r := range chunk {
				keys[i] = r.args[0]
			}
			where = squirrel.Eq{sqlutil.QuoteIdentifier(p.pk[0]): keys}
		} else {
			or := make(squirrel.Or, 0, len(chunk))
			for _, r := range chunk {
				eq := squirrel.Eq{}
				for i, col := range p.pk {
					eq[sqlutil.QuoteIdentifier(col)] = r.args[i]
				}
				or = append(or, eq)
			}
			where = or
		}

		rows, err := s.selectRows(ctx, tx, p, where)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (s *Simulator) selectRows(ctx context.Context, tx *sql.Tx, p *plan, where squirrel.Sqlizer) ([]row, error) {
	q := s.qb.Select(sqlutil.QuoteIdentifiers(p.columns)...).
		From(sqlutil.QuoteIdentifier(p.table)).
		OrderBy(sqlutil.QuoteIdentifiers(p.pk)...)
	if where != nil {
		q = q.Where(where)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, &types.MutationError{Message: err.Error(), Err: err}
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &types.MutationError{Message: err.Error(), Err: err}
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		values := make([]interface{}, len(p.columns))
		ptrs := make([]interface{}, len(p.columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &types.MutationError{Message: err.Error(), Err: err}
		}

		r := row{values: make(map[string]types.Value, len(p.columns))}
		for i, col := range p.columns {
			v := types.ValueOf(values[i])
			r.values[col] = v
			if i < len(p.pk) {
				r.key = append(r.key, v)
				r.args = append(r.args, values[i])
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.MutationError{Message: err.Error(), Err: err}
	}
	return out, nil
}

// diffRows compares before and after state. A DELETE, or an UPDATE with no
// SET columns, reports every vanished row as deleted. An UPDATE reports,
// for every row still present, one "col: old -> new" line per changed SET
// column.
func diffRows(p *plan, before, after []row) types.MutationDiff {
	diff := types.MutationDiff{}

	if p.shape.Kind == statement.MutationDelete || len(p.set) == 0 {
		for _, b := range before {
			if _, ok := find(after, b.key); !ok {
				diff = append(diff, types.DiffEntry{Key: b.key.String(), Description: types.DeletedDescription})
			}
		}
		return diff
	}

	for _, a := range after {
		b, ok := find(before, a.key)
		if !ok {
			continue
		}
		var lines []string
		for _, col := range p.set {
			old, now := b.values[col], a.values[col]
			if !old.Equal(now) {
				lines = append(lines, types.ChangeLine(col, old, now))
			}
		}
		if len(lines) > 0 {
			diff = append(diff, types.DiffEntry{Key: a.key.String(), Description: strings.Join(lines, "\n")})
		}
	}
	return diff
}

func find(rows []row, key types.RecordKey) (row, bool) {
	for _, r := range rows {
		if r.key.Equal(key) {
			return r, true
		}
	}
	return row{}, false
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}

func dedupe(cols []string) []string {
	var out []string
	for _, c := range cols {
		if !contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
