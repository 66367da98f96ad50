package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Collect stale snapshots and prune old backups",
	Long: `Removes import bookkeeping that no longer serves any document:
snapshots whose document has left the vault, and backups past the
configured retention window or per-document cap.`,
	RunE: runGC,
}

var gcSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Collect snapshots with no referencing document",
	RunE:  runGCSnapshots,
}

var gcBackupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Prune backups past retention",
	RunE:  runGCBackups,
}

func init() {
	gcCmd.AddCommand(gcSnapshotsCmd)
	gcCmd.AddCommand(gcBackupsCmd)
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	if err := runGCSnapshots(cmd, args); err != nil {
		return err
	}
	return runGCBackups(cmd, args)
}

func runGCSnapshots(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	removed, err := maintenanceService.CollectSnapshots(cmd.Context())
	if err != nil {
		return fmt.Errorf("collecting snapshots: %w", err)
	}
	cmd.Printf("Removed %d stale snapshot(s).\n", removed)
	return nil
}

func runGCBackups(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	removed, err := maintenanceService.PruneBackups(cmd.Context())
	if err != nil {
		return fmt.Errorf("pruning backups: %w", err)
	}
	cmd.Printf("Pruned %d backup(s).\n", removed)
	return nil
}
