// Package watch reports changes to the JSONL files of a data directory,
// such as those made by a git pull or a second process.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const watchedExt = ".jsonl"

// Watcher watches one directory.
type Watcher struct {
	dir      string
	debounce *Debouncer
	log      zerolog.Logger
}

// New creates a watcher for dir. debounce may be zero.
func New(dir string, debounce time.Duration, log zerolog.Logger) *Watcher {
	return &Watcher{dir: dir, debounce: NewDebouncer(debounce), log: log}
}

// Run calls onChange once per burst of JSONL changes until ctx is done.
// onChange runs on a timer goroutine.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()
	defer w.debounce.Cancel()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.log.Debug().Str("dir", w.dir).Msg("watching")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.log.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("change")
			w.debounce.Trigger(onChange)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if filepath.Ext(ev.Name) != watchedExt {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
		ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}
