package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/modlens/internal/database"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display detailed version information including build details.`,
	Run:   runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Fprintf(outputWriter, "modlens version %s\n", Version)
	fmt.Fprintf(outputWriter, "  Commit: %s\n", Commit)
	fmt.Fprintf(outputWriter, "  Go version: %s\n", runtime.Version())
	fmt.Fprintf(outputWriter, "  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(outputWriter, "  SQLite driver: %s (%s)\n", database.DriverName(), database.DriverType())
}
