package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/modlens/internal/database"
	"github.com/dbsmedya/modlens/internal/types"
	"github.com/dbsmedya/modlens/internal/validate"
)

var (
	checkVariant string
	checkFormat  string
)

var checkCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Validate mod SQL files",
	Long: `Check splits each file into statements and validates them in order:

  - INSERT/REPLACE rows are materialised and typechecked against the schema
  - UPDATE/DELETE run inside a rolled-back transaction on the variant
    database and report the rows they would change
  - other statements are skipped

A failing statement never stops the run. The command exits non-zero when any
statement is rejected. Without --variant, UPDATE and DELETE are skipped.

Example:
  modlens check --variant expansion2 Data/Units.sql Data/Buildings.sql`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkVariant, "variant", "V", "",
		"Database variant to simulate UPDATE/DELETE against")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text",
		"Output format (text, yaml, json)")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := database.SetupSignalHandler(cmd.Context())
	defer stop()

	sources, err := validate.LoadSources(args)
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := []validate.Option{validate.WithLogger(s.log)}
	if checkVariant != "" {
		if err := s.requireVariant(checkVariant); err != nil {
			return err
		}
		sim, err := s.simulator()
		if err != nil {
			return err
		}
		opts = append(opts, validate.WithSimulator(sim))
	}

	v, err := validate.New(s.model, opts...)
	if err != nil {
		return err
	}

	report, runErr := v.Run(ctx, checkVariant, sources)
	if err := renderReport(outputWriter, report, checkFormat); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("validation interrupted: %w", runErr)
	}
	if report.Failed() {
		return fmt.Errorf("%d of %d statements rejected", report.Summary.Rejected, len(report.Results))
	}
	return nil
}

func renderReport(w io.Writer, report *validate.Report, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		renderReportText(w, report)
		return nil
	default:
		return fmt.Errorf("unsupported format %q (use text, yaml or json)", format)
	}
}

const statusWidth = 8

func statusLabel(status validate.Status) string {
	label := runewidth.FillRight(strings.ToUpper(string(status)), statusWidth)
	switch status {
	case validate.StatusAccepted:
		return color.Green.Sprint(label)
	case validate.StatusRejected:
		return color.Red.Sprint(label)
	default:
		return color.Gray.Sprint(label)
	}
}

func renderReportText(w io.Writer, report *validate.Report) {
	variant := report.Variant
	if variant == "" {
		variant = "none"
	}
	printHeader(w, "Validation %s (variant: %s)", report.RunID, variant)

	file := ""
	for _, res := range report.Results {
		if res.File != file {
			file = res.File
			fmt.Fprintln(w)
			printSection(w, file)
		}

		subject := res.Kind
		if res.Table != "" {
			subject += " " + res.Table
		}
		if res.Kind == "insert" {
			subject += fmt.Sprintf(" (%d record(s))", len(res.Records))
		}
		line := fmt.Sprintf("  [%d] %s %s", res.Index, statusLabel(res.Status), subject)
		if res.Reason != "" {
			line += ": " + res.Reason
		}
		fmt.Fprintln(w, line)

		for _, p := range res.Problems {
			tag := color.Yellow.Sprint("warning")
			if p.Severity == validate.SeverityError {
				tag = color.Red.Sprint("error")
			}
			fmt.Fprintf(w, "        %s: row %d: %s\n", tag, p.Record, p.Message)
		}
		if len(res.Diff) > 0 {
			writeDiff(w, res.Diff, "        ")
		}
	}

	fmt.Fprintln(w)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Accepted", "Rejected", "Skipped", "Warnings", "References"})
	refs := 0
	if report.Index != nil {
		refs = report.Index.EdgeCount()
	}
	t.AppendRow(table.Row{report.Summary.Accepted, report.Summary.Rejected, report.Summary.Skipped, report.Summary.Warnings, refs})
	t.Render()

	for _, p := range report.AmbiguousPairs {
		fmt.Fprintf(w, "%s %s references %s through %s; record links between them are not distinguished\n",
			color.Yellow.Sprint("note:"), p.Child, p.Parent, strings.Join(p.Columns, ", "))
	}
}

// writeDiff prints one block per row, aligning continuation lines of
// multi-column changes under the first.
func writeDiff(w io.Writer, diff types.MutationDiff, indent string) {
	width := 0
	for _, e := range diff {
		if n := runewidth.StringWidth(e.Key); n > width {
			width = n
		}
	}
	pad := strings.Repeat(" ", width+2)
	for _, e := range diff {
		lines := strings.Split(e.Description, "\n")
		desc := lines[0]
		if e.Description == types.DeletedDescription {
			desc = color.Red.Sprint(desc)
		}
		fmt.Fprintf(w, "%s%s  %s\n", indent, runewidth.FillRight(e.Key, width), desc)
		for _, l := range lines[1:] {
			fmt.Fprintf(w, "%s%s%s\n", indent, pad, l)
		}
	}
}
