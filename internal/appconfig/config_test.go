package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, lines ...string) {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir := filepath.Join(xdg, "termgrid")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_CreatesDefaults(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Launcher.Terminal != "auto" {
		t.Fatalf("unexpected terminal: %q", cfg.Launcher.Terminal)
	}
	if cfg.SpawnTimeout() != 5*time.Second {
		t.Fatalf("unexpected spawn timeout: %s", cfg.SpawnTimeout())
	}
	if cfg.UI.DefaultSort != "group" || !cfg.UI.WatchDB {
		t.Fatalf("unexpected ui defaults: %+v", cfg.UI)
	}
	if _, err := os.Stat(filepath.Join(xdg, "termgrid", "config.yaml")); err != nil {
		t.Fatalf("expected config.yaml to be created: %v", err)
	}
}

func TestLoad_NormalizesInvalidValues(t *testing.T) {
	writeConfig(t,
		"log:",
		"  level: loud",
		"  max_size_mb: 0",
		"launcher:",
		"  terminal: \"\"",
		"  spawn_timeout_seconds: -3",
		"ui:",
		"  default_sort: latency",
	)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "info" || cfg.Log.MaxSizeMB != 10 {
		t.Fatalf("log settings not normalized: %+v", cfg.Log)
	}
	if cfg.Launcher.Terminal != "auto" || cfg.Launcher.SpawnTimeoutSeconds != 5 {
		t.Fatalf("launcher settings not normalized: %+v", cfg.Launcher)
	}
	if cfg.UI.DefaultSort != "group" {
		t.Fatalf("sort not normalized: %q", cfg.UI.DefaultSort)
	}
}

func TestLoad_ReadsClientsAndEnvOverrides(t *testing.T) {
	writeConfig(t,
		"launcher:",
		"  clients:",
		"    rdp: xfreerdp",
		"ui:",
		"  default_sort: name",
	)
	t.Setenv("TERMGRID_LOG_LEVEL", "debug")
	t.Setenv("TERMGRID_DATA_DIR", "/srv/termgrid")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Launcher.Clients["rdp"] != "xfreerdp" {
		t.Fatalf("expected rdp client override, got %+v", cfg.Launcher.Clients)
	}
	if cfg.UI.DefaultSort != "name" {
		t.Fatalf("expected name sort, got %q", cfg.UI.DefaultSort)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected env log level, got %q", cfg.Log.Level)
	}
	if cfg.DataDir != "/srv/termgrid" {
		t.Fatalf("expected env data dir, got %q", cfg.DataDir)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg := Default()
	cfg.UI.RecentFirst = true
	cfg.Launcher.Terminal = "konsole"
	if err := Save(cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if !got.UI.RecentFirst || got.Launcher.Terminal != "konsole" {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestDataDirResolution(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	d, err := DataDir(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if d != filepath.Join("/xdg/data", "termgrid") {
		t.Fatalf("unexpected data dir: %s", d)
	}

	d, err = DataDir(Config{DataDir: "/explicit"})
	if err != nil {
		t.Fatal(err)
	}
	if d != "/explicit" {
		t.Fatalf("explicit data dir ignored: %s", d)
	}

	db, err := DatabasePath(Config{DataDir: "/explicit"})
	if err != nil {
		t.Fatal(err)
	}
	if db != filepath.Join("/explicit", "servers.db") {
		t.Fatalf("unexpected database path: %s", db)
	}
}

func TestPlatformDataDir(t *testing.T) {
	home := "/home/op"
	if got := platformDataDir("linux", home, ""); got != filepath.Join(home, ".local", "share", "termgrid") {
		t.Fatalf("linux: %s", got)
	}
	if got := platformDataDir("darwin", home, ""); got != filepath.Join(home, "Library", "Application Support", "termgrid") {
		t.Fatalf("darwin: %s", got)
	}
	if got := platformDataDir("windows", home, "/appdata"); got != filepath.Join("/appdata", "termgrid") {
		t.Fatalf("windows: %s", got)
	}
}
