package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/modlens/internal/database"
	"github.com/dbsmedya/modlens/internal/graph"
	"github.com/dbsmedya/modlens/internal/schema"
	"github.com/dbsmedya/modlens/internal/sqlutil"
	"github.com/dbsmedya/modlens/internal/types"
)

var graphTables []string

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the table dependency graph and load order",
	Long: `Graph builds the foreign key graph of the discovered schema and displays
the order in which tables can be loaded.

The output shows:
  - Dependency levels (tables on one level only reference earlier levels)
  - Load order (parent tables first)
  - Unload order (child tables first)
  - Every foreign key edge with its origin (declared or mined)

With --table the graph is limited to the named tables and everything they
reference.

Example:
  modlens graph --config modlens.yaml
  modlens graph --table Units --table UnitUpgrades`,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringSliceVarP(&graphTables, "table", "t", nil,
		"Limit the graph to these tables and their parents")

	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx, stop := database.SetupSignalHandler(cmd.Context())
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := graph.FromModel(s.model)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	if len(graphTables) > 0 {
		tables, err := resolveTables(s.model, graphTables)
		if err != nil {
			return err
		}
		if g, err = g.Subgraph(tables...); err != nil {
			return err
		}
	}

	renderGraph(outputWriter, g)
	return nil
}

// resolveTables validates user supplied table names and maps them to the
// names used in the model.
func resolveTables(model *schema.Model, names []string) ([]string, error) {
	tables := make([]string, 0, len(names))
	for _, name := range names {
		if err := sqlutil.ValidateIdentifier(name); err != nil {
			return nil, fmt.Errorf("--table: %w", err)
		}
		table, err := model.ResolveTable(name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func renderGraph(w io.Writer, g *graph.Graph) {
	printHeader(w, "Table Graph")
	fmt.Fprintln(w)

	levels := g.Levels()
	left := []string{"[ Levels ]", strings.Repeat("-", 10)}
	for i, level := range levels {
		left = append(left, fmt.Sprintf("L%-3d %s", i, strings.Join(level, ", ")))
	}
	printSideBySide(w, left, graphSummary(g, len(levels)), 4)

	loadOrder, err := g.LoadOrder()
	var cycleErr *graph.CycleError
	if err != nil && !errors.As(err, &cycleErr) {
		fmt.Fprintf(w, "%s %v\n", color.Red.Sprint("error:"), err)
		return
	}

	if cycleErr != nil {
		fmt.Fprintln(w)
		printSection(w, "Cycle")
		for _, line := range strings.Split(cycleErr.Error(), "\n") {
			fmt.Fprintf(w, "  %s\n", color.Red.Sprint(line))
		}
	} else {
		fmt.Fprintln(w)
		printSection(w, "Load Order (parent tables first)")
		for i, table := range loadOrder {
			printOrderItem(w, i+1, table, g.GetParents(table), "<-")
		}

		unloadOrder, _ := g.UnloadOrder()
		fmt.Fprintln(w)
		printSection(w, "Unload Order (child tables first)")
		for i, table := range unloadOrder {
			printOrderItem(w, i+1, table, g.GetChildren(table), "->")
		}
	}

	fmt.Fprintln(w)
	printSection(w, "Relationships")
	edges := g.AllEdges()
	if len(edges) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, edge := range edges {
		for _, meta := range g.GetEdgeMeta(edge.From, edge.To) {
			fmt.Fprintf(w, "  • %s → %s  %s.%s -> %s.%s %s\n",
				edge.From, edge.To,
				edge.To, meta.ForeignKey, edge.From, meta.ReferenceKey,
				originTag(meta.Origin))
		}
	}
	for _, table := range g.AllNodes() {
		for _, meta := range g.SelfReferences(table) {
			fmt.Fprintf(w, "  ↺ %s  %s.%s -> %s.%s %s\n",
				table, table, meta.ForeignKey, table, meta.ReferenceKey, originTag(meta.Origin))
		}
	}
}

func originTag(origin types.Origin) string {
	if origin == types.OriginMined {
		return color.Cyan.Sprintf("(%s)", origin)
	}
	return fmt.Sprintf("(%s)", origin)
}

func graphSummary(g *graph.Graph, levels int) []string {
	var declared, mined, self int
	for _, edge := range g.AllEdges() {
		for _, meta := range g.GetEdgeMeta(edge.From, edge.To) {
			if meta.Origin == types.OriginMined {
				mined++
			} else {
				declared++
			}
		}
	}
	origins := 0
	for _, table := range g.AllNodes() {
		self += len(g.SelfReferences(table))
		if n := g.GetNode(table); n != nil && n.IsOrigin {
			origins++
		}
	}

	cycle := color.Green.Sprint("none")
	if g.HasCycle() {
		cycle = color.Red.Sprint("detected")
	}

	return []string{
		"[ Summary ]",
		strings.Repeat("-", 11),
		fmt.Sprintf("Tables:          %d", g.NodeCount()),
		fmt.Sprintf("Origin tables:   %d", origins),
		fmt.Sprintf("Levels:          %d", levels),
		fmt.Sprintf("Table edges:     %d", g.EdgeCount()),
		fmt.Sprintf("Declared FKs:    %d", declared),
		fmt.Sprintf("Mined FKs:       %d", mined),
		fmt.Sprintf("Self references: %d", self),
		fmt.Sprintf("Leaf tables:     %d", len(g.LeafNodes())),
		fmt.Sprintf("Cycle:           %s", cycle),
	}
}

// printOrderItem prints a table in the load/unload order list with the
// tables it waits for.
func printOrderItem(w io.Writer, num int, table string, related []string, arrow string) {
	numStr := fmt.Sprintf("[%d]", num)
	if len(related) == 0 {
		fmt.Fprintf(w, "  %s %s\n", numStr, table)
		return
	}
	fmt.Fprintf(w, "  %s %s %s %s\n", numStr, table, arrow, strings.Join(related, ", "))
}

// printSideBySide prints two blocks of text side by side
// padding is the minimum spaces between the two columns
func printSideBySide(w io.Writer, leftLines, rightLines []string, padding int) {
	leftWidth := 0
	for _, line := range leftLines {
		if n := visualWidth(line); n > leftWidth {
			leftWidth = n
		}
	}

	maxHeight := len(leftLines)
	if len(rightLines) > maxHeight {
		maxHeight = len(rightLines)
	}

	for i := 0; i < maxHeight; i++ {
		leftPart, rightPart := "", ""
		if i < len(leftLines) {
			leftPart = leftLines[i]
		}
		if i < len(rightLines) {
			rightPart = rightLines[i]
		}

		fmt.Fprint(w, leftPart)
		if rightPart != "" {
			fmt.Fprint(w, strings.Repeat(" ", leftWidth-visualWidth(leftPart)+padding))
		}
		fmt.Fprintln(w, rightPart)
	}
}

// visualWidth returns the terminal width of s, ignoring color codes and
// counting wide characters twice.
func visualWidth(s string) int {
	return runewidth.StringWidth(color.ClearCode(s))
}
