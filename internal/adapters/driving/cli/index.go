package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the import index",
	Long: `The import index remembers which vault note each book was last
imported into, so re-imports find their duplicate without scanning
the whole vault. It is a cache: rebuilding it is always safe.`,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the import index from a full vault walk",
	RunE:  runIndexRebuild,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the vault and keep the import index current",
	Long: `Consumes the vault's filesystem change stream and applies renames
and deletions to the import index as they happen. Runs until
interrupted.`,
	RunE: runWatch,
}

func init() {
	indexCmd.AddCommand(indexRebuildCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(watchCmd)
}

func runIndexRebuild(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	cmd.Println("Rebuilding import index...")
	indexed, err := maintenanceService.RebuildIndex(cmd.Context())
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	cmd.Printf("Indexed %d document(s).\n", indexed)
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	cmd.Println("Watching vault; press Ctrl+C to stop.")
	if err := maintenanceService.WatchVault(cmd.Context()); err != nil {
		return fmt.Errorf("watching vault: %w", err)
	}
	return nil
}
