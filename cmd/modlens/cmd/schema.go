package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/modlens/internal/database"
	"github.com/dbsmedya/modlens/internal/introspect"
	"github.com/dbsmedya/modlens/internal/schema"
	"github.com/dbsmedya/modlens/internal/types"
)

var schemaFormat string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the discovered schema",
	Long: `Schema introspects the sample database and prints every table with its
primary key, the declared and mined foreign keys, candidate sets that could
not be narrowed to one target, and foreign keys that were dropped.

Example:
  modlens schema --config modlens.yaml
  modlens schema --sample DebugGameplay.sqlite --format yaml`,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaFormat, "format", "f", "text",
		"Output format (text, yaml, json)")

	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	ctx, stop := database.SetupSignalHandler(cmd.Context())
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	return renderSchema(outputWriter, newSchemaView(s.cfg.Schema.Sample, s.model), schemaFormat)
}

type columnView struct {
	Name     string  `json:"name" yaml:"name"`
	Type     string  `json:"type" yaml:"type"`
	Declared string  `json:"declared" yaml:"declared"`
	NotNull  bool    `json:"not_null,omitempty" yaml:"not_null,omitempty"`
	Default  *string `json:"default,omitempty" yaml:"default,omitempty"`
}

type tableView struct {
	Name       string       `json:"name" yaml:"name"`
	PrimaryKey []string     `json:"primary_key" yaml:"primary_key"`
	RowID      bool         `json:"rowid,omitempty" yaml:"rowid,omitempty"`
	Origin     bool         `json:"origin,omitempty" yaml:"origin,omitempty"`
	Columns    []columnView `json:"columns" yaml:"columns"`
}

type foreignKeyView struct {
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
	Origin string `json:"origin" yaml:"origin"`
}

type rejectedView struct {
	ForeignKey string `json:"foreign_key" yaml:"foreign_key"`
	Reason     string `json:"reason" yaml:"reason"`
}

type schemaView struct {
	Sample      string                 `json:"sample" yaml:"sample"`
	Tables      []tableView            `json:"tables" yaml:"tables"`
	ForeignKeys []foreignKeyView       `json:"foreign_keys" yaml:"foreign_keys"`
	Ambiguities []introspect.Ambiguity `json:"ambiguities,omitempty" yaml:"ambiguities,omitempty"`
	Rejected    []rejectedView         `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

func newSchemaView(sample string, model *schema.Model) schemaView {
	view := schemaView{Sample: sample, Ambiguities: model.Ambiguities()}

	for _, name := range model.Tables() {
		t, err := model.Table(name)
		if err != nil {
			continue
		}
		tv := tableView{Name: t.Name, PrimaryKey: t.PrimaryKey, RowID: t.ImplicitRowID, Origin: t.IsOrigin}
		for _, c := range t.Columns {
			tv.Columns = append(tv.Columns, columnView{
				Name:     c.Name,
				Type:     string(c.Type),
				Declared: c.DeclaredType,
				NotNull:  c.NotNull,
				Default:  c.Default,
			})
		}
		view.Tables = append(view.Tables, tv)

		for _, fk := range t.ForeignKeys() {
			view.ForeignKeys = append(view.ForeignKeys, foreignKeyView{
				From:   fk.FromTable + "." + fk.FromColumn,
				To:     fk.ToTable + "." + fk.ToColumn,
				Origin: string(fk.Origin),
			})
		}
	}

	for _, r := range model.Rejected() {
		view.Rejected = append(view.Rejected, rejectedView{ForeignKey: r.ForeignKey.String(), Reason: r.Reason})
	}
	return view
}

func renderSchema(w io.Writer, view schemaView, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		renderSchemaText(w, view)
		return nil
	default:
		return fmt.Errorf("unsupported format %q (use text, yaml or json)", format)
	}
}

func renderSchemaText(w io.Writer, view schemaView) {
	printHeader(w, "Schema: %s", view.Sample)
	fmt.Fprintln(w)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Table", "Primary Key", "Columns", "Origin"})
	for _, tv := range view.Tables {
		origin := ""
		if tv.Origin {
			origin = "yes"
		}
		t.AppendRow(table.Row{tv.Name, strings.Join(tv.PrimaryKey, ", "), len(tv.Columns), origin})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d tables", len(view.Tables)), "", "", ""})
	t.Render()

	fmt.Fprintln(w)
	printSection(w, "Foreign Keys")
	if len(view.ForeignKeys) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		fk := table.NewWriter()
		fk.SetOutputMirror(w)
		fk.SetStyle(table.StyleLight)
		fk.AppendHeader(table.Row{"Child Column", "Parent Column", "Origin"})
		for _, f := range view.ForeignKeys {
			origin := f.Origin
			if origin == string(types.OriginMined) {
				origin = color.Cyan.Sprint(origin)
			}
			fk.AppendRow(table.Row{f.From, f.To, origin})
		}
		fk.Render()
	}

	if len(view.Ambiguities) > 0 {
		fmt.Fprintln(w)
		printSection(w, "Ambiguous Columns")
		for _, a := range view.Ambiguities {
			fmt.Fprintf(w, "  %s %s.%s -> %s\n",
				color.Yellow.Sprint("?"), a.Table, a.Column, strings.Join(a.Candidates, " | "))
		}
	}

	if len(view.Rejected) > 0 {
		fmt.Fprintln(w)
		printSection(w, "Dropped Foreign Keys")
		for _, r := range view.Rejected {
			fmt.Fprintf(w, "  %s %s: %s\n", color.Red.Sprint("x"), r.ForeignKey, r.Reason)
		}
	}
}

// printHeader prints a formatted header
func printHeader(w io.Writer, format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := len(title) + 4
	fmt.Fprintln(w, strings.Repeat("=", width))
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, strings.Repeat("=", width))
}

// printSection prints a section header
func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "[%s]\n", title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)+2))
}
