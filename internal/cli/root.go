// Package cli provides the command-line interface for termgrid.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/treykane/termgrid/internal/appconfig"
	"github.com/treykane/termgrid/internal/bundle"
	"github.com/treykane/termgrid/internal/dispatch"
	"github.com/treykane/termgrid/internal/events"
	"github.com/treykane/termgrid/internal/history"
	"github.com/treykane/termgrid/internal/inventory"
	"github.com/treykane/termgrid/internal/logging"
	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/query"
	"github.com/treykane/termgrid/internal/ui"
	"github.com/treykane/termgrid/internal/util"
)

// app carries what every command needs once flags and config are read.
type app struct {
	dbPath string
	debug  bool

	cfg       appconfig.Config
	dataDir   string
	logger    *slog.Logger
	logCloser io.Closer

	// Test hooks; nil selects the real system.
	lookPath dispatch.LookPathFunc
	launcher dispatch.Launcher
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           util.AppName,
		Short:         "Inventory and launcher for SSH, SFTP, FTP, RDP and VNC endpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUI(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "inventory database path (default <data dir>/servers.db)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "log at debug level")

	root.AddCommand(
		newListCmd(a),
		newShowCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newConnectCmd(a),
		newEventsCmd(a),
		newBundleCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newProbeCmd(a),
		newDoctorCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.dataDir, err = appconfig.DataDir(cfg); err != nil {
		return err
	}
	if a.dbPath == "" {
		a.dbPath = filepath.Join(a.dataDir, util.DatabaseFile)
	}

	logPath, err := appconfig.LogPath(cfg)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if a.debug {
		level = "debug"
	}
	logger, closer, err := logging.New(logging.Options{
		File:       logPath,
		Level:      level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
		logger, closer, _ = logging.New(logging.Options{})
	}
	a.logger = logger
	a.logCloser = closer
	a.logger.Debug("starting", "data_dir", a.dataDir, "db", a.dbPath)
	return nil
}

func (a *app) teardown() error {
	if a.logCloser == nil {
		return nil
	}
	return a.logCloser.Close()
}

// withStore opens the inventory for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(*inventory.Store) error) error {
	s, err := inventory.Open(ctx, a.dbPath, inventory.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (a *app) dispatcher() *dispatch.Dispatcher {
	launcher := a.launcher
	if launcher == nil {
		launcher = dispatch.NewProcessLauncher(a.cfg.SpawnTimeout(), a.logger)
	}
	preferred := make(map[model.Protocol]string, len(a.cfg.Launcher.Clients))
	for p, bin := range a.cfg.Launcher.Clients {
		preferred[model.Protocol(p)] = bin
	}
	return dispatch.New(dispatch.Options{
		Launcher:  launcher,
		LookPath:  a.lookPath,
		Terminal:  a.cfg.Launcher.Terminal,
		Preferred: preferred,
		Journal:   a.journal(),
		Logger:    a.logger,
	})
}

func (a *app) journal() *events.Store  { return events.NewStore(a.dataDir) }
func (a *app) history() *history.Store { return history.NewStore(a.dataDir) }
func (a *app) bundles() *bundle.Store  { return bundle.NewStore(a.dataDir) }

func (a *app) runUI(ctx context.Context) error {
	sortKey, _ := query.ParseSortKey(a.cfg.UI.DefaultSort)
	return a.withStore(ctx, func(s *inventory.Store) error {
		return ui.Run(ctx, ui.Options{
			Inventory:   s,
			Dispatcher:  a.dispatcher(),
			History:     a.history(),
			Bundles:     a.bundles(),
			Sort:        sortKey,
			RecentFirst: a.cfg.UI.RecentFirst,
			WatchDB:     a.cfg.UI.WatchDB,
			Logger:      a.logger,
		})
	})
}
