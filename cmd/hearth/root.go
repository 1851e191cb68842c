// Root command for the hearth CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stayforge/hearth/internal/console"
	"github.com/stayforge/hearth/internal/filestore"
	"github.com/stayforge/hearth/internal/paths"
	"github.com/stayforge/hearth/internal/sqlite"
	"github.com/stayforge/hearth/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagBackend   string
)

// Values loaded from config.yaml by PersistentPreRunE.
var (
	configDataDir string
	configBackend string
)

var rootCmd = &cobra.Command{
	Use:     "hearth",
	Short:   "Hearth is an interactive shell over a durable object table",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}

		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}

		configDataDir = cfg.GetString(cfgKeyDataDir)
		configBackend = cfg.GetString(cfgKeyBackend)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.hearth-db)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "storage backend: file or sqlite (default: file)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(consoleCmd)
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive shell",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole()
	},
}

// runConsole attaches the configured backend and hands stdin/stdout to the
// interpreter loop. A corrupt store at startup is fatal: there is no safe
// in-memory state to fall back to. A bad backend selection is the user's
// mistake and exits with the user-error code.
func runConsole() error {
	store, registry, err := attachStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, "hearth:", err)
		if errors.Is(err, types.ErrBackendUnknown) || errors.Is(err, types.ErrBackendEmpty) {
			os.Exit(exitUserError)
		}
		os.Exit(exitSysError)
	}
	defer store.Detach()

	return console.New(store, registry, os.Stdin, os.Stdout).Run()
}

// attachStore resolves the data directory and backend selection, builds the
// matching store over the default registry, and attaches it.
func attachStore() (types.Store, *types.Registry, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := types.Config{
		Backend: resolveBackend(),
		DataDir: dataDir,
	}

	registry := types.NewDefaultRegistry()
	var store types.Store
	switch cfg.Backend {
	case types.BackendSQLite:
		store = sqlite.NewBackend(registry)
	default:
		store = filestore.New(registry)
	}

	if err := store.Attach(cfg); err != nil {
		return nil, nil, fmt.Errorf("attach %s backend: %w", cfg.Backend, err)
	}
	return store, registry, nil
}

// resolveBackend returns the backend name: --backend flag > config.yaml
// backend > default "file".
func resolveBackend() string {
	if flagBackend != "" {
		return flagBackend
	}
	if configBackend != "" {
		return configBackend
	}
	return defaultBackend
}

// resolveDataDir returns the data directory path: --data-dir flag >
// config.yaml data_dir > HEARTH_DATA_DIR env > default $(CWD)/.hearth-db.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, configDataDir)
}

// resolveConfigDir returns the configuration directory: --config-dir flag >
// HEARTH_CONFIG_DIR env > platform default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}
