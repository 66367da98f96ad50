package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/t5k6/marginalia/internal/adapters/driven/backup"
	configfile "github.com/t5k6/marginalia/internal/adapters/driven/config/file"
	"github.com/t5k6/marginalia/internal/adapters/driven/device"
	"github.com/t5k6/marginalia/internal/adapters/driven/index"
	"github.com/t5k6/marginalia/internal/adapters/driven/prompt"
	"github.com/t5k6/marginalia/internal/adapters/driven/snapshot"
	"github.com/t5k6/marginalia/internal/adapters/driven/vault"
	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
	"github.com/t5k6/marginalia/internal/core/services"
	"github.com/t5k6/marginalia/internal/locking"
	"github.com/t5k6/marginalia/internal/logger"
	"github.com/t5k6/marginalia/internal/markdown"
)

// Default configuration values, overridable via config.toml and flags.
const (
	defaultHighlightsDir = "Highlights"
	defaultScanTimeout   = 15 * time.Second
	defaultKeepDays      = 30
	defaultKeepPerDoc    = 5
)

// wireServices builds the production adapter stack and the core services
// behind the driving ports. Called once by the root command before any
// subcommand that needs them.
func wireServices(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config")

	store, err := configfile.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	configStore = store

	vaultRoot, _ := cmd.Flags().GetString("vault")
	if vaultRoot == "" {
		vaultRoot = store.GetString("vault.root")
	}
	if vaultRoot == "" {
		return errors.New("no vault configured: set vault.root with 'marginalia config set vault.root <dir>' or pass --vault")
	}

	highlightsDir := store.GetString("vault.highlights_dir")
	if highlightsDir == "" {
		highlightsDir = defaultHighlightsDir
	}

	baseDir := filepath.Dir(store.Path())
	snapshotDir := store.GetString("snapshot.dir")
	if snapshotDir == "" {
		snapshotDir = filepath.Join(baseDir, "data", "snapshots")
	}
	backupDir := store.GetString("backup.dir")
	if backupDir == "" {
		backupDir = filepath.Join(baseDir, "data", "backups")
	}

	vaultStore, err := vault.NewStore(expandHome(vaultRoot))
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}

	snapshots, err := snapshot.NewStore(snapshotDir)
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}

	backups, err := backup.NewStore(backupDir)
	if err != nil {
		return fmt.Errorf("opening backup store: %w", err)
	}

	// Index and catalog are optional capabilities; the locator skips their
	// tiers when they are missing.
	var importIndex driven.ImportIndex
	if idx, err := index.Open(filepath.Join(baseDir, "data")); err != nil {
		logger.Warn("import index unavailable: %v", err)
	} else {
		importIndex = idx
	}

	var catalog driven.DeviceCatalog
	if path := store.GetString("device.catalog_db"); path != "" {
		if c, err := device.OpenCatalog(expandHome(path)); err != nil {
			logger.Warn("device catalog unavailable: %v", err)
		} else {
			catalog = c
		}
	}

	parser := markdown.NewParser()
	renderer := markdown.NewRenderer()

	docLocks := locking.NewArena()
	snapLocks := locking.NewArena()

	analyzer := services.NewAnalyzer(parser)
	merger := services.NewMergeEngine(parser, renderer)
	identity := services.NewIdentityResolver(vaultStore, snapshots, docLocks, snapLocks)
	committer := services.NewCommitter(vaultStore, snapshots, backups, docLocks, snapLocks)

	scanTimeout := defaultScanTimeout
	if secs := store.GetInt("import.scan_timeout_seconds"); secs > 0 {
		scanTimeout = time.Duration(secs) * time.Second
	}

	locator := services.NewLocator(vaultStore, snapshots, catalog, importIndex, analyzer, services.LocatorConfig{
		HighlightsDir: highlightsDir,
		Workers:       store.GetInt("import.workers"),
		ScanTimeout:   scanTimeout,
	})

	defaultChoice := domain.DuplicateChoice(store.GetString("import.default_choice"))
	if flag := cmd.Flags().Lookup("choice"); flag != nil && flag.Value.String() != "" {
		defaultChoice = domain.DuplicateChoice(flag.Value.String())
		if !defaultChoice.IsValid() {
			return fmt.Errorf("invalid --choice %q (merge|replace|keep-both|skip)", defaultChoice)
		}
	}

	importService = services.NewImporter(locator, identity, merger, committer, prompt.NewPrompter(), importIndex, services.ImporterConfig{
		HighlightsDir: highlightsDir,
		AutoMerge:     autoMergeEnabled(store),
		Workers:       store.GetInt("import.workers"),
		DefaultChoice: defaultChoice,
	})

	keepDays := store.GetInt("backup.keep_days")
	if keepDays <= 0 {
		keepDays = defaultKeepDays
	}
	keepPerDoc := store.GetInt("backup.keep_per_doc")
	if keepPerDoc <= 0 {
		keepPerDoc = defaultKeepPerDoc
	}

	maintenanceService = services.NewMaintainer(vaultStore, snapshots, backups, importIndex, snapLocks, services.MaintenanceConfig{
		BackupKeepFor:    time.Duration(keepDays) * 24 * time.Hour,
		BackupKeepPerDoc: keepPerDoc,
	})

	return nil
}

// autoMergeEnabled defaults to on; the config key turns it off.
func autoMergeEnabled(store driven.ConfigStore) bool {
	if _, ok := store.Get("import.auto_merge"); !ok {
		return true
	}
	return store.GetBool("import.auto_merge")
}

// openConfigStore wires just the config store, for commands that manage
// configuration without touching the vault.
func openConfigStore(cmd *cobra.Command) (driven.ConfigStore, error) {
	if configStore != nil {
		return configStore, nil
	}
	configDir, _ := cmd.Flags().GetString("config")
	store, err := configfile.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	configStore = store
	return store, nil
}

// expandHome resolves a leading ~ in user-supplied paths.
func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
