package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/rendezvous/internal/dispatch"
	"github.com/mesh-intelligence/rendezvous/internal/location"
	"github.com/mesh-intelligence/rendezvous/internal/paths"
	"github.com/mesh-intelligence/rendezvous/internal/schedule"
	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "RENDEZVOUS"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyRedisAddr     = "redis.addr"
	cfgKeyTimezone      = "timezone"
	cfgKeyLogLevel      = "log_level"
	cfgKeyLogFormat     = "log_format"
	cfgKeyWatchSchedule = "watch.schedule"
	cfgKeyLatitude      = "location.latitude"
	cfgKeyLongitude     = "location.longitude"
)

// configFile is the structure written to config.yaml on first run.
type configFile struct {
	Backend  string      `yaml:"backend"`
	DataDir  string      `yaml:"data_dir,omitempty"`
	LogLevel string      `yaml:"log_level"`
	Watch    watchConfig `yaml:"watch"`
}

type watchConfig struct {
	Schedule string `yaml:"schedule"`
}

func defaultConfigFile() configFile {
	return configFile{
		Backend:  types.BackendFile,
		LogLevel: "info",
		Watch:    watchConfig{Schedule: dispatch.DefaultSchedule},
	}
}

// loadSettings resolves the config directory, creates a default config.yaml
// on first run, reads it with Viper and builds the logger.
func (a *app) loadSettings(cmd *cobra.Command) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}

	v, err := loadConfig(configDir)
	if err != nil {
		return sysError(fmt.Errorf("load config: %w", err))
	}

	format := a.flags.logFormat
	if format == "" {
		format = v.GetString(cfgKeyLogFormat)
	}
	logger, err := newLogger(cmd, format, v.GetString(cfgKeyLogLevel))
	if err != nil {
		return userError(err)
	}

	a.configDir = configDir
	a.settings = v
	a.logger = logger
	return nil
}

// loadConfig reads config.yaml from configDir using Viper. Environment
// variables prefixed RENDEZVOUS_ override file values; nested keys use
// underscores (RENDEZVOUS_REDIS_ADDR).
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := writeConfigIfMissing(filepath.Join(configDir, configFileExt), defaultConfigFile()); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	def := defaultConfigFile()
	v := viper.New()
	v.SetDefault(cfgKeyBackend, def.Backend)
	v.SetDefault(cfgKeyLogLevel, def.LogLevel)
	v.SetDefault(cfgKeyLogFormat, "text")
	v.SetDefault(cfgKeyWatchSchedule, def.Watch.Schedule)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml if the file does not exist.
// If it already exists, the function returns nil (idempotent).
func writeConfigIfMissing(path string, cfg configFile) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# rendezvous configuration\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}

// newLogger builds the slog logger writing to the command's stderr.
func newLogger(cmd *cobra.Command, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), opts)), nil
	default:
		return nil, fmt.Errorf("invalid log_format %q (valid: text, json)", format)
	}
}

// backendConfig resolves the storage selection: --backend > config, and
// --data-dir > config data_dir > platform default.
func (a *app) backendConfig() (types.Config, error) {
	backend := a.flags.backend
	if backend == "" {
		backend = a.settings.GetString(cfgKeyBackend)
	}

	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.settings.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}

	return types.Config{
		Backend:   backend,
		DataDir:   dataDir,
		RedisAddr: a.settings.GetString(cfgKeyRedisAddr),
	}, nil
}

// scheduler builds a Scheduler in the configured timezone.
func (a *app) scheduler() (*schedule.Scheduler, error) {
	tz := a.settings.GetString(cfgKeyTimezone)
	if tz == "" {
		return schedule.New(), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return schedule.New(schedule.WithLocation(loc)), nil
}

// locator returns a Static provider when a position is configured.
func (a *app) locator() types.LocationProvider {
	if a.settings.IsSet(cfgKeyLatitude) && a.settings.IsSet(cfgKeyLongitude) {
		return location.Static{Position: types.Coordinates{
			Latitude:  a.settings.GetFloat64(cfgKeyLatitude),
			Longitude: a.settings.GetFloat64(cfgKeyLongitude),
		}}
	}
	return location.Denied{}
}
