package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/pagetree/internal/paths"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
)

// Config keys.
const (
	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyNavDir        = "nav_dir"
	cfgKeySyncStrategy  = "sync_strategy"
	cfgKeyBatchSize     = "batch_size"
	cfgKeyBatchInterval = "batch_interval"
	cfgKeyLogLevel      = "log_level"
	cfgKeyLogFile       = "log_file"
)

const envLogLevel = "PAGETREE_LOG_LEVEL"

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# pagetree configuration

# Backend selection
backend: sqlite

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# Legacy navigation YAML files rewritten when a page is deleted (optional)
# nav_dir:

# JSONL persistence: immediate, on_close or batch
sync_strategy: immediate
# batch_size: 10
# batch_interval: 5

# log_level: warn
# log_file:
`

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	Backend      string `yaml:"backend"`
	DataDir      string `yaml:"data_dir,omitempty"`
	NavDir       string `yaml:"nav_dir,omitempty"`
	SyncStrategy string `yaml:"sync_strategy,omitempty"`
	LogLevel     string `yaml:"log_level,omitempty"`
}

// settings is the resolved content of config.yaml.
type settings struct {
	Backend       string
	DataDir       string
	NavDir        string
	SyncStrategy  string
	BatchSize     int
	BatchInterval int
	LogLevel      string
	LogFile       string
}

func (s settings) dirs() paths.Set {
	return paths.Set{Data: s.DataDir, Nav: s.NavDir}
}

// storeConfig builds the Store configuration for dataDir.
func (s settings) storeConfig(dataDir string) types.Config {
	return types.Config{
		Backend: s.Backend,
		DataDir: dataDir,
		SQLiteConfig: types.SQLiteConfig{
			SyncStrategy:  s.SyncStrategy,
			BatchSize:     s.BatchSize,
			BatchInterval: s.BatchInterval,
		},
	}
}

// loadConfig reads config.yaml from the resolved config directory using Viper.
// It creates the config directory and a default config.yaml on first run.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}
	return loadConfigIfPresent(configDir)
}

// loadConfigIfPresent reads config.yaml if it exists. A missing config.yaml
// is not an error; the defaults apply.
func loadConfigIfPresent(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeySyncStrategy, types.SyncImmediate)
	v.SetDefault(cfgKeyBatchSize, types.DefaultBatchSize)
	v.SetDefault(cfgKeyBatchInterval, types.DefaultBatchInterval)
	if err := v.BindEnv(cfgKeyLogLevel, envLogLevel); err != nil {
		return nil, err
	}
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func readSettings(v *viper.Viper) settings {
	return settings{
		Backend:       v.GetString(cfgKeyBackend),
		DataDir:       v.GetString(cfgKeyDataDir),
		NavDir:        v.GetString(cfgKeyNavDir),
		SyncStrategy:  v.GetString(cfgKeySyncStrategy),
		BatchSize:     v.GetInt(cfgKeyBatchSize),
		BatchInterval: v.GetInt(cfgKeyBatchInterval),
		LogLevel:      v.GetString(cfgKeyLogLevel),
		LogFile:       v.GetString(cfgKeyLogFile),
	}
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// writeConfigIfMissing creates config.yaml from cfg if the file does not
// exist. An existing file is left alone.
func writeConfigIfMissing(path string, cfg configFile) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
