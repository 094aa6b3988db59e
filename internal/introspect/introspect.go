package introspect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/dbsmedya/modlens/internal/logger"
	"github.com/dbsmedya/modlens/internal/sqlutil"
	"github.com/dbsmedya/modlens/internal/types"
)

// DefaultSentinel is the generic type registry that every kind name
// appears in. It is never considered as a mined FK target.
const DefaultSentinel = "Types"

// Introspector loads a Schema from a SQLite database.
type Introspector struct {
	db            *sql.DB
	qb            squirrel.StatementBuilderType
	sentinel      string
	inferBooleans bool
	logger        *logger.Logger

	values map[string][]types.Value
}

// Option configures an Introspector.
type Option func(*Introspector)

// WithSentinel sets the table excluded from FK candidate targets.
func WithSentinel(table string) Option {
	return func(i *Introspector) { i.sentinel = table }
}

// WithBooleanInference toggles tagging of 0/1 integer columns as boolean.
func WithBooleanInference(enabled bool) Option {
	return func(i *Introspector) { i.inferBooleans = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(i *Introspector) {
		if l != nil {
			i.logger = l
		}
	}
}

// New creates an Introspector over an open database.
func New(db *sql.DB, opts ...Option) (*Introspector, error) {
	if db == nil {
		return nil, errors.New("introspect: nil database")
	}
	i := &Introspector{
		db:            db,
		qb:            squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		sentinel:      DefaultSentinel,
		inferBooleans: true,
		logger:        logger.NewDefault(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Introspect reads every table, mines undeclared foreign keys and tags
// boolean columns. Any failure to read the database aborts the whole load
// with a DatabaseUnavailable SchemaError; no partial schema is returned.
func (i *Introspector) Introspect(ctx context.Context) (*Schema, error) {
	i.values = make(map[string][]types.Value)
	defer func() { i.values = nil }()

	names, err := i.listTables(ctx)
	if err != nil {
		return nil, unavailable("", err)
	}

	schema := &Schema{Sentinel: i.sentinel}
	for _, name := range names {
		info, err := i.loadTable(ctx, name)
		if err != nil {
			return nil, unavailable(name, err)
		}
		schema.Tables = append(schema.Tables, info)
	}
	resolveDeclared(schema)

	if err := i.mine(ctx, schema); err != nil {
		return nil, err
	}

	if i.inferBooleans {
		if err := i.tagBooleans(ctx, schema); err != nil {
			return nil, err
		}
	}

	i.logger.Infow("schema introspected",
		"tables", len(schema.Tables),
		"mined_fks", len(schema.MinedFKs),
		"ambiguous", len(schema.Ambiguities))
	return schema, nil
}

func unavailable(table string, err error) error {
	return &types.SchemaError{Kind: types.DatabaseUnavailable, Table: table, Err: err}
}

// listTables returns user table names in sorted order.
func (i *Introspector) listTables(ctx context.Context) ([]string, error) {
	query, args, err := i.qb.Select("name").From("sqlite_master").
		Where(squirrel.Eq{"type": "table"}).
		Where("name NOT LIKE ?", "sqlite_%").
		OrderBy("name").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// loadTable reads the columns, primary key and declared foreign keys of a table.
func (i *Introspector) loadTable(ctx context.Context, name string) (*TableInfo, error) {
	info := &TableInfo{Name: name}

	columns, err := i.tableColumns(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns", name)
	}
	info.Columns = columns

	var pkCols []types.Column
	for _, c := range columns {
		if c.PrimaryKey > 0 {
			pkCols = append(pkCols, c)
		}
	}
	sort.SliceStable(pkCols, func(a, b int) bool { return pkCols[a].PrimaryKey < pkCols[b].PrimaryKey })
	for _, c := range pkCols {
		info.PrimaryKey = append(info.PrimaryKey, c.Name)
	}
	if len(info.PrimaryKey) == 0 {
		info.PrimaryKey = []string{RowIDColumn}
		info.ImplicitRowID = true
	}

	fks, err := i.foreignKeys(ctx, name)
	if err != nil {
		return nil, err
	}
	info.DeclaredFKs = fks

	return info, nil
}

func (i *Introspector) tableColumns(ctx context.Context, table string) ([]types.Column, error) {
	rows, err := i.db.QueryContext(ctx, "PRAGMA table_info("+sqlutil.QuoteIdentifier(table)+")")
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	var columns []types.Column
	for rows.Next() {
		var (
			cid      int
			col      types.Column
			notNull  int
			defValue sql.NullString
		)
		if err := rows.Scan(&cid, &col.Name, &col.DeclaredType, &notNull, &defValue, &col.PrimaryKey); err != nil {
			return nil, fmt.Errorf("scan table_info %s: %w", table, err)
		}
		col.Type = types.ParseColumnType(col.DeclaredType)
		col.NotNull = notNull != 0
		if defValue.Valid {
			d := defValue.String
			col.Default = &d
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	return columns, nil
}

// declaredFK is one row of PRAGMA foreign_key_list.
type declaredFK struct {
	seq int
	fk  types.ForeignKey
}

func (i *Introspector) foreignKeys(ctx context.Context, table string) ([]types.ForeignKey, error) {
	rows, err := i.db.QueryContext(ctx, "PRAGMA foreign_key_list("+sqlutil.QuoteIdentifier(table)+")")
	if err != nil {
		return nil, fmt.Errorf("foreign_key_list %s: %w", table, err)
	}
	defer rows.Close()

	var declared []declaredFK
	for rows.Next() {
		var (
			id, seq                   int
			parent, from              string
			to                        sql.NullString
			onUpdate, onDelete, match sql.NullString
		)
		if err := rows.Scan(&id, &seq, &parent, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("scan foreign_key_list %s: %w", table, err)
		}
		declared = append(declared, declaredFK{
			seq: seq,
			fk: types.ForeignKey{
				FromTable:  table,
				FromColumn: from,
				ToTable:    parent,
				ToColumn:   to.String,
				Origin:     types.OriginDeclared,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("foreign_key_list %s: %w", table, err)
	}

	fks := make([]types.ForeignKey, 0, len(declared))
	for _, d := range declared {
		fk := d.fk
		// A reference without a column list targets the parent primary key;
		// remember the position in ToColumn until the parent is known.
		if fk.ToColumn == "" {
			fk.ToColumn = fmt.Sprintf("#%d", d.seq)
		}
		fks = append(fks, fk)
	}
	return fks, nil
}

// resolveDeclared canonicalises declared FK targets against the loaded tables.
func resolveDeclared(s *Schema) {
	for _, t := range s.Tables {
		for idx := range t.DeclaredFKs {
			fk := &t.DeclaredFKs[idx]
			parent, ok := s.Table(fk.ToTable)
			if !ok {
				continue
			}
			fk.ToTable = parent.Name
			if strings.HasPrefix(fk.ToColumn, "#") {
				var seq int
				if _, err := fmt.Sscanf(fk.ToColumn, "#%d", &seq); err == nil && seq < len(parent.PrimaryKey) {
					fk.ToColumn = parent.PrimaryKey[seq]
				}
				continue
			}
			if col, ok := parent.ColumnFold(fk.ToColumn); ok {
				fk.ToColumn = col.Name
			}
		}
	}
}

// distinctValues returns the distinct stored values of a column.
func (i *Introspector) distinctValues(ctx context.Context, table, column string) ([]types.Value, error) {
	key := table + "\x00" + column
	if cached, ok := i.values[key]; ok {
		return cached, nil
	}

	query, args, err := i.qb.Select(sqlutil.QuoteIdentifier(column)).Distinct().
		From(sqlutil.QuoteIdentifier(table)).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var values []types.Value
	for rows.Next() {
		var raw interface{}
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s.%s: %w", table, column, err)
		}
		values = append(values, types.ValueOf(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", table, column, err)
	}

	if i.values != nil {
		i.values[key] = values
	}
	return values, nil
}

// tagBooleans retypes integer columns whose observed values are a
// non-empty subset of {0, 1}.
func (i *Introspector) tagBooleans(ctx context.Context, s *Schema) error {
	for _, t := range s.Tables {
		for idx := range t.Columns {
			col := &t.Columns[idx]
			if col.Type != types.ColumnInteger || col.PrimaryKey > 0 {
				continue
			}
			values, err := i.distinctValues(ctx, t.Name, col.Name)
			if err != nil {
				return unavailable(t.Name, err)
			}
			if isBooleanSet(values) {
				col.Type = types.ColumnBoolean
			}
		}
	}
	return nil
}

func isBooleanSet(values []types.Value) bool {
	seen := 0
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if v.Kind != types.KindInteger || (v.Int != 0 && v.Int != 1) {
			return false
		}
		seen++
	}
	return seen > 0
}
