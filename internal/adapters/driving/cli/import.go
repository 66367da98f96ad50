package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/t5k6/marginalia/internal/adapters/driven/device"
	"github.com/t5k6/marginalia/internal/core/domain"
)

var importCmd = &cobra.Command{
	Use:   "import <payload.json>",
	Short: "Import highlights from a device export",
	Long: `Imports a highlight export (KOReader-style JSON) into the vault.

Each book in the payload becomes or updates one markdown note. Books
already in the vault are merged: new highlights are added, your edits
to existing ones are kept, and genuinely conflicting edits are marked
with conflict regions for manual resolution.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("choice", "", "answer every duplicate prompt (merge|replace|keep-both|skip)")
	importCmd.Flags().Bool("dry-run", false, "report what would happen without writing")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if importService == nil {
		return errors.New("import service not configured")
	}

	items, err := device.LoadPayload(args[0])
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}
	if len(items) == 0 {
		cmd.Println("Payload contains no books with highlights.")
		return nil
	}

	cmd.Printf("Importing %d book(s)...\n", len(items))

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		return runImportDryRun(cmd, items)
	}

	summary, err := importService.ImportBatch(cmd.Context(), items)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	printSummary(cmd, summary)
	return nil
}

// runImportDryRun reports the match each book would resolve against
// without touching the vault.
func runImportDryRun(cmd *cobra.Command, items []domain.ImportItem) error {
	for _, item := range items {
		match, err := importService.FindBestMatch(cmd.Context(), item)
		if err != nil {
			cmd.Printf("  %s: error: %v\n", item.Book.Title, err)
			continue
		}
		if match == nil {
			cmd.Printf("  %s: new note\n", item.Book.Title)
			continue
		}
		cmd.Printf("  %s: %s at %s\n", item.Book.Title, match.Describe(), match.Document.Path)
	}
	return nil
}

func printSummary(cmd *cobra.Command, summary domain.BatchSummary) {
	cmd.Printf("Done: %d created, %d merged, %d auto-merged, %d kept both, %d skipped, %d failed.\n",
		summary.Count(domain.OutcomeCreated),
		summary.Count(domain.OutcomeMerged),
		summary.Count(domain.OutcomeAutoMerged),
		summary.Count(domain.OutcomeKeptBoth),
		summary.Count(domain.OutcomeSkipped),
		len(summary.Failures),
	)

	if conflicted := summary.Conflicted(); len(conflicted) > 0 {
		cmd.Println("Conflicts need manual resolution in:")
		for _, path := range conflicted {
			cmd.Printf("  %s\n", path)
		}
	}

	for _, failure := range summary.Failures {
		cmd.Printf("Failed: %s: %v\n", failure.Book.Title, failure.Err)
	}
}
