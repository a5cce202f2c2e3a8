package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pagetree/internal/paths"
	"github.com/mesh-intelligence/pagetree/pkg/sqlite"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize pagetree storage",
		Long:  "Create configuration and data directories, then initialize the storage backend.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.Resolve(paths.ConfigDir, flags.configDir, "")
	if err != nil {
		return sysError(fmt.Errorf("resolve config directory: %w", err))
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return sysError(fmt.Errorf("create config directory: %w", err))
	}

	// An existing config.yaml may already name the data directory.
	v, err := loadConfigIfPresent(configDir)
	if err != nil {
		return sysError(err)
	}
	st := readSettings(v)

	dirs, err := paths.Set{Config: configDir}.ResolveStore(flags.dirs(), st.dirs())
	if err != nil {
		return sysError(fmt.Errorf("resolve directories: %w", err))
	}
	dataDir := dirs.Data

	configPath := filepath.Join(configDir, configFileExt)
	if err := writeConfigIfMissing(configPath, configFile{
		Backend:      types.BackendSQLite,
		DataDir:      dataDir,
		NavDir:       dirs.Nav,
		SyncStrategy: types.SyncImmediate,
		LogLevel:     flags.logLevel,
	}); err != nil {
		return sysError(fmt.Errorf("write config: %w", err))
	}

	cfg := st.storeConfig(dataDir)
	if err := cfg.Validate(); err != nil {
		return userError(fmt.Errorf("config: %w", err))
	}

	// Initialize the data directory via Attach then Detach.
	store := sqlite.NewBackend()
	if err := store.Attach(cfg); err != nil {
		return sysError(fmt.Errorf("initialize storage: %w", err))
	}
	if err := store.Detach(); err != nil {
		return sysError(fmt.Errorf("finalize storage: %w", err))
	}

	if flags.jsonMode {
		return printJSON(cmd, map[string]string{"config_dir": configDir, "data_dir": dataDir})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pagetree initialized in %s\n", dataDir)
	return nil
}
