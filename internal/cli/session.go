package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pagetree/internal/logger"
	"github.com/mesh-intelligence/pagetree/internal/navfile"
	"github.com/mesh-intelligence/pagetree/internal/paths"
	"github.com/mesh-intelligence/pagetree/pkg/sqlite"
	"github.com/mesh-intelligence/pagetree/pkg/tree"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// session is one command's view of the configured store and engine.
type session struct {
	cfg     types.Config
	store   types.Store
	engine  *tree.Engine
	nav     *navfile.Dir
	log     zerolog.Logger
	logData *logger.LogData
}

// openSession resolves directories and configuration, attaches the store
// and builds the engine. The caller must Close the session.
func openSession(cmd *cobra.Command) (*session, error) {
	configDir, err := paths.Resolve(paths.ConfigDir, flags.configDir, "")
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return nil, sysError(err)
	}
	st := readSettings(v)

	dirs, err := paths.Set{Config: configDir}.ResolveStore(flags.dirs(), st.dirs())
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve directories: %w", err))
	}
	dataDir, navDir := dirs.Data, dirs.Nav

	level := flags.logLevel
	if level == "" {
		level = st.LogLevel
	}
	build := logger.New().FromWriter(cmd.ErrOrStderr()).WithLevel(level).Console(true)
	if st.LogFile != "" {
		build = build.FromPath(st.LogFile)
	}
	logData, err := build.Make()
	if err != nil {
		return nil, userError(err)
	}

	cfg := st.storeConfig(dataDir)
	if err := cfg.Validate(); err != nil {
		logData.Close()
		return nil, userError(fmt.Errorf("config: %w", err))
	}

	store := sqlite.NewBackend()
	if err := store.Attach(cfg); err != nil {
		logData.Close()
		return nil, sysError(fmt.Errorf("attach backend: %w", err))
	}

	s := &session{
		cfg:     cfg,
		store:   store,
		log:     logData.Logger,
		logData: logData,
	}
	opts := tree.Options{Logger: &s.log}
	if navDir != "" {
		s.nav = navfile.New(navDir)
		opts.Legacy = s.nav
	}
	s.engine = tree.New(store, opts)
	return s, nil
}

// Close detaches the store and closes the log file.
func (s *session) Close() error {
	err := s.store.Detach()
	return errors.Join(err, s.logData.Close())
}

// withSession opens a session, runs fn and closes the session.
func withSession(cmd *cobra.Command, fn func(s *session) error) (err error) {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = sysError(fmt.Errorf("detach: %w", cerr))
		}
	}()
	return fn(s)
}

// resolvePage finds a page by numeric id or by path.
func resolvePage(t *tree.Tree, ref string) (types.Page, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if p, ok := t.ByID(id); ok {
			return p, nil
		}
	}
	if p, ok := t.Lookup(strings.Trim(ref, "/")); ok {
		return p, nil
	}
	return types.Page{}, userError(fmt.Errorf("%w: %s", types.ErrPageNotFound, ref))
}

// mutationError classifies an engine error for the exit code.
func mutationError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrStoreWrite) {
		return sysError(err)
	}
	return userError(err)
}
