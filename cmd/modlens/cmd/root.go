package cmd

import (
	"io"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile        string
	logLevel       string
	logFormat      string
	sampleDB       string
	verifyRollback bool
	noColor        bool
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

// setOutputWriter sets the output writer (used for testing)
func setOutputWriter(w io.Writer) {
	outputWriter = w
}

// resetOutputWriter resets output to stdout (used for testing)
func resetOutputWriter() {
	outputWriter = os.Stdout
}

var rootCmd = &cobra.Command{
	Use:   "modlens",
	Short: "Schema discovery and mod validation for SQLite game databases",
	Long: `modlens reads a SQLite content database whose declared schema is
incomplete, infers the missing foreign keys from the data, and checks mod
SQL against the result.

Features:
  - Foreign key mining with origin tie-break and ambiguity reporting
  - INSERT materialisation and typechecking against the schema
  - UPDATE/DELETE simulation in a rolled-back transaction with a row diff
  - Table load order from the foreign key graph`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.Enable = false
		}
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "modlens.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Schema and simulation overrides
	rootCmd.PersistentFlags().StringVar(&sampleDB, "sample", "",
		"Override the sample database used for schema introspection")
	rootCmd.PersistentFlags().BoolVar(&verifyRollback, "verify-rollback", false,
		"Checksum the target table around every simulation")

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable colored output")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel       string
	LogFormat      string
	Sample         string
	VerifyRollback bool
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:       logLevel,
		LogFormat:      logFormat,
		Sample:         sampleDB,
		VerifyRollback: verifyRollback,
	}
}
