// Package cli implements the pagetree command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pagetree/internal/paths"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	navDir    string
	logLevel  string
	jsonMode  bool
}

var flags rootFlags

func (f rootFlags) dirs() paths.Set {
	return paths.Set{Config: f.configDir, Data: f.dataDir, Nav: f.navDir}
}

// NewRootCmd creates the top-level "pagetree" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags = rootFlags{}

	root := &cobra.Command{
		Use:   "pagetree",
		Short: "Reorganize a tree of content pages",
		Long: "pagetree keeps a tree of content pages addressed by path, moves pages\n" +
			"under or beside each other, and keeps the records that refer to pages\n" +
			"by path in step with every move.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "data directory (default: .pagetree-db)")
	pf.StringVar(&flags.navDir, "nav-dir", "", "directory of legacy navigation YAML files")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newTreeCmd(),
		newAddCmd(),
		newMoveCmd(),
		newRenameCmd(),
		newDeleteCmd(),
		newAuditCmd(),
		newRepairCmd(),
		newSearchCmd(),
		newWatchCmd(),
		newGetCmd(),
		newSetCmd(),
		newListCmd(),
	)

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// userError marks err as caused by the invocation: bad arguments, a
// refused move, a missing page.
func userError(err error) error {
	return &exitError{code: exitUserError, err: err}
}

// sysError marks err as an environment or storage failure.
func sysError(err error) error {
	return &exitError{code: exitSysError, err: err}
}

// exitCode maps an error returned by a command to the process exit code.
// Unmarked store write failures count as system errors, anything else
// as a user error.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	if errors.Is(err, types.ErrStoreWrite) {
		return exitSysError
	}
	return exitUserError
}
