package cmd

import (
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/modlens/internal/database"
	"github.com/dbsmedya/modlens/internal/statement"
)

var diffVariant string

var diffCmd = &cobra.Command{
	Use:   "diff SQL",
	Short: "Simulate one UPDATE or DELETE and show the rows it changes",
	Long: `Diff runs a single UPDATE or DELETE inside a transaction on the variant
database, compares the affected rows before and after, and rolls back.
Nothing is persisted.

Example:
  modlens diff --variant base "UPDATE Units SET BaseMoves = 10 WHERE UnitType = 'UNIT_ARCHER'"`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVarP(&diffVariant, "variant", "V", "",
		"Database variant to simulate against (required)")
	diffCmd.MarkFlagRequired("variant")

	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx, stop := database.SetupSignalHandler(cmd.Context())
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.requireVariant(diffVariant); err != nil {
		return err
	}

	c, err := statement.NewInterpreter(s.model).Interpret(args[0], diffVariant)
	if err != nil {
		return err
	}
	m, ok := c.(*statement.Mutation)
	if !ok {
		return fmt.Errorf("diff needs an UPDATE or DELETE statement")
	}

	sim, err := s.simulator()
	if err != nil {
		return err
	}
	diff, err := sim.Simulate(ctx, m)
	if err != nil {
		return err
	}

	if len(diff) == 0 {
		fmt.Fprintln(outputWriter, "No rows would change.")
		return nil
	}
	fmt.Fprintf(outputWriter, "%s %d row(s) would change (rolled back):\n",
		color.Bold.Sprint(strings.ToUpper(m.Kind.String())), len(diff))
	writeDiff(outputWriter, diff, "  ")
	return nil
}
