// Package paths locates the directories a pagetree session works with:
// the config directory holding config.yaml, the data directory holding the
// JSONL store, and the optional directory of legacy navigation files.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir names one of the directories.
type Dir int

const (
	ConfigDir Dir = iota
	DataDir
	NavDir
)

// DataDirName is the data directory created under the working directory
// when nothing else names one.
const DataDirName = ".pagetree-db"

// Environment variables overriding each directory.
const (
	EnvConfigDir = "PAGETREE_CONFIG_DIR"
	EnvDataDir   = "PAGETREE_DATA_DIR"
	EnvNavDir    = "PAGETREE_NAV_DIR"
)

// Swapped in tests.
var (
	userConfigDir = os.UserConfigDir
	getwd         = os.Getwd
)

func (d Dir) String() string {
	switch d {
	case ConfigDir:
		return "config"
	case DataDir:
		return "data"
	case NavDir:
		return "nav"
	}
	return fmt.Sprintf("Dir(%d)", int(d))
}

// Env returns the environment variable that overrides d.
func (d Dir) Env() string {
	switch d {
	case ConfigDir:
		return EnvConfigDir
	case DataDir:
		return EnvDataDir
	case NavDir:
		return EnvNavDir
	}
	return ""
}

// Resolve returns the absolute location of d. The first non-empty value
// among flag, configured and d's environment variable wins. configured is
// the value read from config.yaml and is ignored for ConfigDir, which
// holds that file.
//
// With nothing set, the config directory is pagetree under the user config
// directory, the data directory is DataDirName under the working directory,
// and the nav directory is "", which turns legacy navigation rewriting off.
func Resolve(d Dir, flag, configured string) (string, error) {
	if d == ConfigDir {
		configured = ""
	}
	for _, v := range []string{flag, configured, os.Getenv(d.Env())} {
		if v != "" {
			return filepath.Abs(v)
		}
	}

	switch d {
	case ConfigDir:
		base, err := userConfigDir()
		if err != nil {
			return "", fmt.Errorf("%s dir: %w", d, err)
		}
		return filepath.Join(base, "pagetree"), nil
	case DataDir:
		cwd, err := getwd()
		if err != nil {
			return "", fmt.Errorf("%s dir: %w", d, err)
		}
		return filepath.Join(cwd, DataDirName), nil
	case NavDir:
		return "", nil
	}
	return "", fmt.Errorf("unknown directory %s", d)
}

// Set is the resolved directory triple for one session.
type Set struct {
	Config string
	Data   string
	Nav    string
}

// ResolveStore fills in the data and nav directories of s once config.yaml
// has been read from s.Config. flags and configured carry the command-line
// and config-file values for each directory.
func (s Set) ResolveStore(flags, configured Set) (Set, error) {
	var err error
	if s.Data, err = Resolve(DataDir, flags.Data, configured.Data); err != nil {
		return s, err
	}
	if s.Nav, err = Resolve(NavDir, flags.Nav, configured.Nav); err != nil {
		return s, err
	}
	return s, nil
}
