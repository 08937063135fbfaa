// Package config loads timelogd's layered runtime configuration and the
// small per-replica identity file that sits alongside the database.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config is timelogd's runtime configuration: where the database lives,
// how categories are displayed, and the optional sync/dashboard
// endpoints. It is loaded once at process startup and passed down to the
// packages that need it.
type Config struct {
	// DataPath is the directory holding the sqlite database, log files,
	// and this replica's identity file. Defaults to
	// $XDG_DATA_HOME/timelogd, falling back to ~/.local/share/timelogd,
	// mirroring the original implementation's QStandardPaths::AppDataLocation
	// default.
	DataPath string `mapstructure:"data_path"`

	// CategorySeparator splits a category name into hierarchy levels for
	// GetStats aggregation. Defaults to "/".
	CategorySeparator string `mapstructure:"category_separator"`

	// InboxDir is the directory watch.Watcher watches for peer sync
	// batches. Defaults to $DataPath/inbox.
	InboxDir string `mapstructure:"inbox_dir"`

	// DashboardAddr, if non-empty, is the host:port the websocket
	// broadcaster listens on. Empty disables the dashboard.
	DashboardAddr string `mapstructure:"dashboard_addr"`

	// ReplicaID identifies this replica in multi-replica sync. Load does
	// not generate or persist one; LoadReplicaState manages the id kept in
	// replica.toml.
	ReplicaID string `mapstructure:"replica_id"`
}

// EnvPrefix is the prefix viper strips from TIMELOGD_* environment
// variables (e.g. TIMELOGD_DASHBOARD_ADDR maps to dashboard_addr).
const EnvPrefix = "TIMELOGD"

// DBFileName is the sqlite file name under DataPath/timelog, matching the
// <dataPath>/timelog/db.sqlite convention.
const DBFileName = "db.sqlite"

func defaultDataPath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "timelogd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".timelogd")
	}
	return filepath.Join(home, ".local", "share", "timelogd")
}

func setDefaults(v *viper.Viper) {
	if v.GetString("data_path") == "" {
		v.SetDefault("data_path", defaultDataPath())
	}
	v.SetDefault("category_separator", "/")
	v.SetDefault("inbox_dir", "")
	v.SetDefault("dashboard_addr", "")
	v.SetDefault("replica_id", "")
}

// Load builds a Config by layering, in increasing priority: built-in
// defaults, a TOML file at $DataPath/config.toml (if present), and
// TIMELOGD_*-prefixed environment variables — the same flags > env > file >
// defaults precedence viper documents, minus flags, which callers bind
// separately with BindPFlag before calling Load.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataPath := v.GetString("data_path")
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dataPath)
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.InboxDir == "" {
		cfg.InboxDir = filepath.Join(cfg.DataPath, "inbox")
	}
	return cfg, nil
}

// DBPath returns the sqlite database path under cfg.DataPath.
func (c Config) DBPath() string {
	return filepath.Join(c.DataPath, "timelog", DBFileName)
}

// replicaState is the small, engine-internal identity file persisted at
// $DataPath/replica.toml: this replica's id and the high-water mtime of
// the last successful sync per peer. It is read/written directly with
// BurntSushi/toml rather than through viper, since it holds derived
// runtime state rather than user-facing settings.
type replicaState struct {
	ReplicaID   string           `toml:"replica_id"`
	LastSyncMTime map[string]int64 `toml:"last_sync_mtime"`
}

func replicaStatePath(dataPath string) string {
	return filepath.Join(dataPath, "replica.toml")
}

// LoadReplicaState reads $DataPath/replica.toml, generating and persisting
// a fresh replica id if the file doesn't exist yet.
func LoadReplicaState(dataPath string, newID func() string) (id string, lastSync map[string]int64, err error) {
	path := replicaStatePath(dataPath)

	var state replicaState
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		state = replicaState{ReplicaID: newID(), LastSyncMTime: map[string]int64{}}
		if err := saveReplicaState(dataPath, state); err != nil {
			return "", nil, err
		}
		return state.ReplicaID, state.LastSyncMTime, nil
	}

	if _, err := toml.DecodeFile(path, &state); err != nil {
		return "", nil, fmt.Errorf("decode replica state %s: %w", path, err)
	}
	if state.LastSyncMTime == nil {
		state.LastSyncMTime = map[string]int64{}
	}
	return state.ReplicaID, state.LastSyncMTime, nil
}

// SaveReplicaSyncMTime updates the high-water mtime recorded for peer and
// persists the replica state file.
func SaveReplicaSyncMTime(dataPath, replicaID, peer string, mtime int64) error {
	_, lastSync, err := LoadReplicaState(dataPath, func() string { return replicaID })
	if err != nil {
		return err
	}
	lastSync[peer] = mtime
	return saveReplicaState(dataPath, replicaState{ReplicaID: replicaID, LastSyncMTime: lastSync})
}

func saveReplicaState(dataPath string, state replicaState) error {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return fmt.Errorf("create data path %s: %w", dataPath, err)
	}
	f, err := os.Create(replicaStatePath(dataPath))
	if err != nil {
		return fmt.Errorf("create replica state file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(state); err != nil {
		return fmt.Errorf("encode replica state: %w", err)
	}
	return nil
}
