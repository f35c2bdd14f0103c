// Package config loads taskctl configuration from the platform config
// directory plus TASKCTL_* environment overrides. Precedence, highest first:
// environment variables, <config-dir>/taskctl/config.json, built-in defaults.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/taskctl/taskctl/internal/constants"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// Config is the resolved runtime configuration.
type Config struct {
	// DBPath is the SQLite database location.
	DBPath string `mapstructure:"db_path"`

	// LogLevel is the zerolog level name (trace, debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// LogDir is where rotated log files are written.
	LogDir string `mapstructure:"log_dir"`
}

// Dir returns the taskctl configuration directory
// (<platform-config-dir>/taskctl).
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, constants.AppName), nil
}

// DefaultDBPath returns the database location used when no override is set.
func DefaultDBPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.AppName+".db"), nil
}

// Load reads configuration from the default config file location.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(filepath.Join(dir, "config.json"))
}

// LoadFromPath reads configuration from a specific config file, mainly for
// tests. A missing file is not an error; defaults and environment overrides
// still apply.
func LoadFromPath(path string) (*Config, error) {
	v := newViperInstance()

	if fileExists(path) {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that would fail later in a
// less obvious place.
func Validate(cfg *Config) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("%w: db_path", taskctlerrors.ErrEmptyValue)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level %q", taskctlerrors.ErrInvalidArgument, cfg.LogLevel)
	}
	return nil
}

// newViperInstance creates a Viper instance with the TASKCTL_ env prefix and
// built-in defaults applied.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(strings.ToUpper(constants.AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults configures built-in defaults. Keys must match the mapstructure
// tags exactly.
func setDefaults(v *viper.Viper) {
	dbPath, err := DefaultDBPath()
	if err != nil {
		// No usable config dir; fall back to the working directory so the
		// tool still runs in minimal environments.
		dbPath = constants.AppName + ".db"
	}
	v.SetDefault("db_path", dbPath)
	v.SetDefault("log_level", zerolog.LevelInfoValue)

	logDir := filepath.Join(filepath.Dir(dbPath), "logs")
	v.SetDefault("log_dir", logDir)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isConfigNotFoundError(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return stderrors.As(err, &notFound)
}
