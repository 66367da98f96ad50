// Package cli implements the cobra command-line interface. Commands talk to
// the core exclusively through the driving ports, wired once per process in
// Execute and overridable from tests.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/t5k6/marginalia/internal/core/ports/driven"
	"github.com/t5k6/marginalia/internal/core/ports/driving"
	"github.com/t5k6/marginalia/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Package-level services wired by Execute. Tests swap these for doubles.
var (
	importService      driving.ImportService
	maintenanceService driving.MaintenanceService
	configStore        driven.ConfigStore
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "marginalia",
	Short: "Import e-reader highlights into a markdown vault",
	Long: `marginalia reconciles highlights exported from an e-reader with the
markdown notes in your vault. Each book becomes one note; re-imports
merge new and edited highlights into the existing note instead of
duplicating it, and your own edits to the note survive the merge.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)

		// Tests wire their own services before calling Execute.
		if importService != nil && maintenanceService != nil {
			return nil
		}
		if !commandNeedsServices(cmd) {
			return nil
		}
		return wireServices(cmd)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().String("config", "", "config directory (default ~/.marginalia)")
	rootCmd.PersistentFlags().String("vault", "", "vault root directory (overrides config)")
}

// commandNeedsServices reports whether cmd touches the core at all.
// Version, config management and cobra's builtins run without a wired vault.
func commandNeedsServices(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "config", "help", "completion":
			return false
		}
	}
	return true
}
