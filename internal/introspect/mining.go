package introspect

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/dbsmedya/modlens/internal/sqlutil"
	"github.com/dbsmedya/modlens/internal/types"
)

// parentKey is a table whose single text primary key can be an FK target.
type parentKey struct {
	table  *TableInfo
	column string
	values map[string]struct{}
}

type columnRef struct {
	table  string
	column string
}

// mine finds undeclared single-column references from data and resolves
// them into mined edges or ambiguities.
func (i *Introspector) mine(ctx context.Context, s *Schema) error {
	parents, err := i.eligibleParents(ctx, s)
	if err != nil {
		return err
	}

	candidates := make(map[columnRef][]*parentKey)
	var refs []columnRef

	for _, child := range s.Tables {
		declared := declaredColumns(child)
		for _, col := range child.Columns {
			if declared[strings.ToLower(col.Name)] {
				continue
			}
			values, err := i.distinctValues(ctx, child.Name, col.Name)
			if err != nil {
				return unavailable(child.Name, err)
			}
			set, ok := textSet(values)
			if !ok {
				continue
			}

			ref := columnRef{table: child.Name, column: col.Name}
			for _, p := range parents {
				if strings.EqualFold(p.table.Name, child.Name) || declaresInto(p.table, child.Name) {
					continue
				}
				if !isSubset(set, p.values) {
					continue
				}
				orphans, err := i.orphanCount(ctx, child.Name, col.Name, p.table.Name, p.column)
				if err != nil {
					return unavailable(child.Name, err)
				}
				if orphans > 0 {
					continue
				}
				if len(candidates[ref]) == 0 {
					refs = append(refs, ref)
				}
				candidates[ref] = append(candidates[ref], p)
			}
		}
	}

	var multi []columnRef
	for _, ref := range refs {
		cands := candidates[ref]
		if len(cands) == 1 {
			s.MinedFKs = append(s.MinedFKs, minedEdge(ref, cands[0]))
			continue
		}
		multi = append(multi, ref)
	}

	origins := newOriginResolver(s)
	for _, ref := range multi {
		cands := candidates[ref]

		var preferred []*parentKey
		names := make([]string, 0, len(cands))
		for _, p := range cands {
			names = append(names, p.table.Name)
			if origins.isOrigin(p.table.Name) {
				preferred = append(preferred, p)
			}
		}

		if len(preferred) == 1 {
			s.MinedFKs = append(s.MinedFKs, minedEdge(ref, preferred[0]))
			i.logger.Debugw("resolved FK candidates by origin",
				"table", ref.table, "column", ref.column, "target", preferred[0].table.Name, "candidates", names)
			continue
		}

		sort.Strings(names)
		s.Ambiguities = append(s.Ambiguities, Ambiguity{Table: ref.table, Column: ref.column, Candidates: names})
		i.logger.Warnw("ambiguous FK candidates", "table", ref.table, "column", ref.column, "candidates", names)
	}

	sortForeignKeys(s.MinedFKs)
	sort.SliceStable(s.Ambiguities, func(a, b int) bool {
		if s.Ambiguities[a].Table != s.Ambiguities[b].Table {
			return s.Ambiguities[a].Table < s.Ambiguities[b].Table
		}
		return s.Ambiguities[a].Column < s.Ambiguities[b].Column
	})

	// Origin flags are computed over the final edge set.
	final := newOriginResolver(s)
	for _, t := range s.Tables {
		t.IsOrigin = final.isOrigin(t.Name)
	}
	return nil
}

func minedEdge(ref columnRef, p *parentKey) types.ForeignKey {
	return types.ForeignKey{
		FromTable:  ref.table,
		FromColumn: ref.column,
		ToTable:    p.table.Name,
		ToColumn:   p.column,
		Origin:     types.OriginMined,
	}
}

// eligibleParents returns the non-sentinel tables with a single-column,
// text primary key whose stored values are all non-empty text.
func (i *Introspector) eligibleParents(ctx context.Context, s *Schema) ([]*parentKey, error) {
	var parents []*parentKey
	for _, t := range s.Tables {
		if i.sentinel != "" && strings.EqualFold(t.Name, i.sentinel) {
			continue
		}
		pk, ok := t.SinglePK()
		if !ok {
			continue
		}
		col, _ := t.Column(pk)
		if col.Type != types.ColumnText {
			continue
		}
		values, err := i.distinctValues(ctx, t.Name, pk)
		if err != nil {
			return nil, unavailable(t.Name, err)
		}
		set, ok := textSet(values)
		if !ok {
			continue
		}
		parents = append(parents, &parentKey{table: t, column: pk, values: set})
	}
	return parents, nil
}

// orphanCount counts child rows without a matching parent key.
func (i *Introspector) orphanCount(ctx context.Context, childTable, childColumn, parentTable, parentColumn string) (int64, error) {
	parentRef := sqlutil.QualifiedColumn("p", parentColumn)
	query, args, err := i.qb.Select("COUNT(*)").
		From(sqlutil.QuoteIdentifier(childTable) + " AS c").
		LeftJoin(fmt.Sprintf("%s AS p ON %s = %s",
			sqlutil.QuoteIdentifier(parentTable),
			sqlutil.QualifiedColumn("c", childColumn),
			parentRef)).
		Where(squirrel.NotEq{sqlutil.QualifiedColumn("c", childColumn): nil}).
		Where(squirrel.Eq{parentRef: nil}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var n int64
	if err := i.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("anti-join %s.%s -> %s.%s: %w", childTable, childColumn, parentTable, parentColumn, err)
	}
	return n, nil
}

// textSet converts distinct values into a set. It fails when there are no
// values or any value is NULL, empty or not text.
func textSet(values []types.Value) (map[string]struct{}, bool) {
	if len(values) == 0 {
		return nil, false
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v.Kind != types.KindText || v.Str == "" {
			return nil, false
		}
		set[v.Str] = struct{}{}
	}
	return set, true
}

func isSubset(sub, super map[string]struct{}) bool {
	if len(sub) > len(super) {
		return false
	}
	for v := range sub {
		if _, ok := super[v]; !ok {
			return false
		}
	}
	return true
}

func declaredColumns(t *TableInfo) map[string]bool {
	cols := make(map[string]bool, len(t.DeclaredFKs))
	for _, fk := range t.DeclaredFKs {
		cols[strings.ToLower(fk.FromColumn)] = true
	}
	return cols
}

// declaresInto reports whether parent declares an FK into table.
func declaresInto(parent *TableInfo, table string) bool {
	for _, fk := range parent.DeclaredFKs {
		if strings.EqualFold(fk.ToTable, table) {
			return true
		}
	}
	return false
}

// originResolver follows single-column PK -> FK chains to their terminal
// table. A table is an origin when it is its own terminal.
type originResolver struct {
	links    map[string]string
	terminal map[string]string
}

func newOriginResolver(s *Schema) *originResolver {
	r := &originResolver{
		links:    make(map[string]string),
		terminal: make(map[string]string),
	}

	edges := make(map[string][]types.ForeignKey)
	for _, t := range s.Tables {
		edges[strings.ToLower(t.Name)] = append(edges[strings.ToLower(t.Name)], t.DeclaredFKs...)
	}
	for _, fk := range s.MinedFKs {
		key := strings.ToLower(fk.FromTable)
		edges[key] = append(edges[key], fk)
	}

	for _, t := range s.Tables {
		pk, ok := t.SinglePK()
		if !ok {
			continue
		}
		for _, fk := range edges[strings.ToLower(t.Name)] {
			if !strings.EqualFold(fk.FromColumn, pk) {
				continue
			}
			if strings.EqualFold(fk.ToTable, t.Name) || (s.Sentinel != "" && strings.EqualFold(fk.ToTable, s.Sentinel)) {
				continue
			}
			r.links[strings.ToLower(t.Name)] = strings.ToLower(fk.ToTable)
			break
		}
	}
	return r
}

// terminalOf returns the last table of the PK chain starting at table.
// Tables on a cycle have no terminal and return "".
func (r *originResolver) terminalOf(table string) string {
	start := strings.ToLower(table)
	if t, ok := r.terminal[start]; ok {
		return t
	}

	visited := make(map[string]bool)
	var chain []string
	cur := start
	result := ""
	for {
		if t, ok := r.terminal[cur]; ok {
			result = t
			break
		}
		if visited[cur] {
			break
		}
		visited[cur] = true
		chain = append(chain, cur)

		next, ok := r.links[cur]
		if !ok {
			result = cur
			break
		}
		cur = next
	}

	for _, t := range chain {
		r.terminal[t] = result
	}
	return result
}

func (r *originResolver) isOrigin(table string) bool {
	return r.terminalOf(table) == strings.ToLower(table)
}
