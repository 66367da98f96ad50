package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault import bookkeeping",
	Long: `Reports how much of the vault's highlights folder carries import
bookkeeping: document and UID counts, stored snapshots, documents with
unresolved merge conflicts, and whether the import index is trustworthy.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	status, err := maintenanceService.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading vault status: %w", err)
	}

	cmd.Printf("Documents:  %d (%d with uid)\n", status.Documents, status.WithUID)
	cmd.Printf("Snapshots:  %d\n", status.Snapshots)

	if status.IndexReady {
		cmd.Println("Index:      ready")
	} else {
		cmd.Println("Index:      not ready (run 'marginalia index rebuild')")
	}

	if len(status.Conflicted) > 0 {
		cmd.Printf("Conflicted: %d\n", len(status.Conflicted))
		for _, path := range status.Conflicted {
			cmd.Printf("  %s\n", path)
		}
	} else {
		cmd.Println("Conflicted: none")
	}

	return nil
}
