package ui

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// dbChangedMsg signals that the database file was written by someone.
type dbChangedMsg struct{}

const watchSettle = 250 * time.Millisecond

// dbWatcher reports writes to a SQLite file and its WAL sidecar. Bursts are
// coalesced into a single notification.
type dbWatcher struct {
	w      *fsnotify.Watcher
	path   string
	notify chan struct{}
	done   chan struct{}
	logger *slog.Logger
}

func newDBWatcher(path string, logger *slog.Logger) (*dbWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: SQLite replaces and truncates its files.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, err
	}
	dw := &dbWatcher{
		w:      w,
		path:   filepath.Clean(path),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go dw.loop()
	return dw, nil
}

func (dw *dbWatcher) relevant(name string) bool {
	name = filepath.Clean(name)
	return name == dw.path || strings.HasPrefix(name, dw.path+"-")
}

func (dw *dbWatcher) loop() {
	var settle <-chan time.Time
	for {
		select {
		case ev, ok := <-dw.w.Events:
			if !ok {
				return
			}
			if !dw.relevant(ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if settle == nil {
				settle = time.After(watchSettle)
			}
		case err, ok := <-dw.w.Errors:
			if !ok {
				return
			}
			dw.logger.Warn("database watch error", "error", err)
		case <-settle:
			settle = nil
			select {
			case dw.notify <- struct{}{}:
			default:
			}
		case <-dw.done:
			return
		}
	}
}

// wait returns a command that blocks until the next change.
func (dw *dbWatcher) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-dw.notify:
			return dbChangedMsg{}
		case <-dw.done:
			return nil
		}
	}
}

func (dw *dbWatcher) Close() error {
	close(dw.done)
	return dw.w.Close()
}
