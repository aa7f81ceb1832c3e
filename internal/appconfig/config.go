// Package appconfig manages application configuration and the locations of
// termgrid's files.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/treykane/termgrid/internal/logging"
	"github.com/treykane/termgrid/internal/query"
	"github.com/treykane/termgrid/internal/util"
)

// EnvPrefix prefixes environment overrides, e.g. TERMGRID_LOG_LEVEL.
const EnvPrefix = "TERMGRID"

// LogConfig controls the log file.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// LauncherConfig controls how clients are started.
type LauncherConfig struct {
	// Terminal is "auto", "none" or the terminal emulator binary to use.
	Terminal            string `yaml:"terminal" mapstructure:"terminal"`
	SpawnTimeoutSeconds int    `yaml:"spawn_timeout_seconds" mapstructure:"spawn_timeout_seconds"`
	// Clients maps a protocol to the client binary to try first.
	Clients map[string]string `yaml:"clients" mapstructure:"clients"`
}

// UIConfig contains TUI display settings.
type UIConfig struct {
	DefaultSort string `yaml:"default_sort" mapstructure:"default_sort"`
	RecentFirst bool   `yaml:"recent_first" mapstructure:"recent_first"`
	WatchDB     bool   `yaml:"watch_db" mapstructure:"watch_db"`
}

// Config holds application-level configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir" mapstructure:"data_dir"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Launcher LauncherConfig `yaml:"launcher" mapstructure:"launcher"`
	UI       UIConfig       `yaml:"ui" mapstructure:"ui"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  logging.DefaultMaxSizeMB,
			MaxBackups: logging.DefaultMaxBackups,
			MaxAgeDays: logging.DefaultMaxAgeDays,
		},
		Launcher: LauncherConfig{
			Terminal:            "auto",
			SpawnTimeoutSeconds: int(util.DefaultSpawnTimeout / time.Second),
			Clients:             map[string]string{},
		},
		UI: UIConfig{
			DefaultSort: string(query.SortGroup),
			WatchDB:     true,
		},
	}
}

// SpawnTimeout returns the launcher spawn bound as a duration.
func (c Config) SpawnTimeout() time.Duration {
	return time.Duration(c.Launcher.SpawnTimeoutSeconds) * time.Second
}

// ConfigDir returns the application config directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/termgrid.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, util.AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".config", util.AppName), nil
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.yaml"), nil
}

// DataDir returns where the inventory and journals live: cfg.DataDir when
// set, then XDG_DATA_HOME, then the platform's per-user application data
// directory.
func DataDir(cfg Config) (string, error) {
	if d := strings.TrimSpace(cfg.DataDir); d != "" {
		return expandHome(d)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, util.AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return platformDataDir(runtime.GOOS, home, os.Getenv("APPDATA")), nil
}

func platformDataDir(goos, home, appData string) string {
	switch goos {
	case "windows":
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, util.AppName)
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", util.AppName)
	default:
		return filepath.Join(home, ".local", "share", util.AppName)
	}
}

// DatabasePath returns the inventory database location.
func DatabasePath(cfg Config) (string, error) {
	d, err := DataDir(cfg)
	if err != nil {
		return "", err
	}
	return filepath.Join(d, util.DatabaseFile), nil
}

// LogPath returns the log file location.
func LogPath(cfg Config) (string, error) {
	if f := strings.TrimSpace(cfg.Log.File); f != "" {
		return expandHome(f)
	}
	d, err := DataDir(cfg)
	if err != nil {
		return "", err
	}
	return filepath.Join(d, util.LogFile), nil
}

// Load reads config.yaml from the config directory, applying TERMGRID_*
// environment overrides. If the file doesn't exist, creates it with defaults.
func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := Save(Default()); err != nil {
			return Default(), err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	normalize(&cfg)
	return cfg, nil
}

// setDefaults registers every key so environment overrides apply to keys
// absent from the file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
	v.SetDefault("launcher.terminal", d.Launcher.Terminal)
	v.SetDefault("launcher.spawn_timeout_seconds", d.Launcher.SpawnTimeoutSeconds)
	v.SetDefault("launcher.clients", d.Launcher.Clients)
	v.SetDefault("ui.default_sort", d.UI.DefaultSort)
	v.SetDefault("ui.recent_first", d.UI.RecentFirst)
	v.SetDefault("ui.watch_db", d.UI.WatchDB)
}

func normalize(cfg *Config) {
	d := Default()
	switch strings.ToLower(strings.TrimSpace(cfg.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	default:
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if cfg.Log.MaxBackups < 0 {
		cfg.Log.MaxBackups = d.Log.MaxBackups
	}
	if cfg.Log.MaxAgeDays < 0 {
		cfg.Log.MaxAgeDays = d.Log.MaxAgeDays
	}
	if strings.TrimSpace(cfg.Launcher.Terminal) == "" {
		cfg.Launcher.Terminal = d.Launcher.Terminal
	}
	if cfg.Launcher.SpawnTimeoutSeconds <= 0 {
		cfg.Launcher.SpawnTimeoutSeconds = d.Launcher.SpawnTimeoutSeconds
	}
	if cfg.Launcher.Clients == nil {
		cfg.Launcher.Clients = map[string]string{}
	}
	if k, err := query.ParseSortKey(cfg.UI.DefaultSort); err == nil {
		cfg.UI.DefaultSort = string(k)
	} else {
		cfg.UI.DefaultSort = d.UI.DefaultSort
	}
}

// Save writes config to config.yaml.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
