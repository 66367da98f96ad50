package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change settings in ~/.marginalia/config.toml.

Keys use dot notation:
  vault.root              vault root directory
  vault.highlights_dir    folder for imported notes (default "Highlights")
  import.auto_merge       merge safe updates without prompting (default true)
  import.workers          import worker pool size (default: CPU count)
  import.default_choice   answer for every duplicate prompt
  backup.keep_days        backup retention window (default 30)
  backup.keep_per_doc     backups kept per document regardless of age (default 5)
  device.catalog_db       path to the reader's statistics database`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

// configKeys are the recognised settings, for display order and so a typo
// in 'config set' fails loudly instead of writing a dead key.
var configKeys = []string{
	"vault.root",
	"vault.highlights_dir",
	"import.auto_merge",
	"import.workers",
	"import.default_choice",
	"import.scan_timeout_seconds",
	"snapshot.dir",
	"backup.dir",
	"backup.keep_days",
	"backup.keep_per_doc",
	"device.catalog_db",
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	store, err := openConfigStore(cmd)
	if err != nil {
		return err
	}

	cmd.Printf("Config file: %s\n\n", store.Path())

	for _, key := range configKeys {
		if val, ok := store.Get(key); ok {
			cmd.Printf("%-28s %v\n", key, val)
		} else {
			cmd.Printf("%-28s (unset)\n", key)
		}
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	store, err := openConfigStore(cmd)
	if err != nil {
		return err
	}

	val, ok := store.Get(args[0])
	if !ok {
		return fmt.Errorf("key %q is not set", args[0])
	}
	cmd.Printf("%v\n", val)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	store, err := openConfigStore(cmd)
	if err != nil {
		return err
	}

	key, raw := args[0], args[1]
	if !knownConfigKey(key) {
		return fmt.Errorf("unknown key %q (see 'marginalia config --help')", key)
	}

	if err := store.Set(key, coerceConfigValue(raw)); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	cmd.Printf("Set %s.\n", key)
	return nil
}

func knownConfigKey(key string) bool {
	for _, k := range configKeys {
		if k == key {
			return true
		}
	}
	return false
}

// coerceConfigValue keeps booleans and integers typed in the TOML file so
// the typed getters find them after a reload.
func coerceConfigValue(raw string) any {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}
