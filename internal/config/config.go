package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultStoreFileName    = "etracker.db"
	defaultBackupNamePrefix = "expense_backup_"
	defaultLogLevel         = "info"
	defaultLogFormat        = "text"
	defaultLogMaxSizeMB     = 10
	defaultLogMaxFiles      = 5
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Store   StoreConfig   `toml:"store"`
	Backup  BackupConfig  `toml:"backup"`
	Drive   DriveConfig   `toml:"drive"`
	Logging LoggingConfig `toml:"logging"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type BackupConfig struct {
	NamePrefix string `toml:"name_prefix"`
	Verify     bool   `toml:"verify"`
}

type DriveConfig struct {
	BaseURL   string `toml:"base_url"`
	UploadURL string `toml:"upload_url"`
}

type LoggingConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

type LoadOptions struct {
	ConfigPath string
	Env        map[string]string
	Flags      FlagOverrides
}

type FlagOverrides struct {
	StorePath *string
}

func DefaultConfig(opts LoadOptions) (Config, error) {
	home, err := etrackerHome(opts)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Store: StoreConfig{
			Path: filepath.Join(home, defaultStoreFileName),
		},
		Backup: BackupConfig{
			NamePrefix: defaultBackupNamePrefix,
			Verify:     true,
		},
		Drive: DriveConfig{
			BaseURL:   "",
			UploadURL: "",
		},
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			Format:    defaultLogFormat,
			File:      "",
			MaxSizeMB: defaultLogMaxSizeMB,
			MaxFiles:  defaultLogMaxFiles,
		},
	}, nil
}

func Load(opts LoadOptions) (Config, error) {
	cfg, err := DefaultConfig(opts)
	if err != nil {
		return Config{}, err
	}

	configPath, err := resolveConfigPath(opts)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}
	if err := loadAndApplyFile(configPath, &cfg); err != nil {
		return Config{}, err
	}

	if err := applyEnvOverrides(&cfg, opts); err != nil {
		return Config{}, err
	}
	applyFlagOverrides(&cfg, opts.Flags)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Raw mirrors keep absent keys distinguishable from zero values so a
// config file only overrides what it actually sets.
type rawConfig struct {
	Store   *rawStore   `toml:"store"`
	Backup  *rawBackup  `toml:"backup"`
	Drive   *rawDrive   `toml:"drive"`
	Logging *rawLogging `toml:"logging"`
}

type rawStore struct {
	Path *string `toml:"path"`
}

type rawBackup struct {
	NamePrefix *string `toml:"name_prefix"`
	Verify     *bool   `toml:"verify"`
}

type rawDrive struct {
	BaseURL   *string `toml:"base_url"`
	UploadURL *string `toml:"upload_url"`
}

type rawLogging struct {
	Level     *string `toml:"level"`
	Format    *string `toml:"format"`
	File      *string `toml:"file"`
	MaxSizeMB *int    `toml:"max_size_mb"`
	MaxFiles  *int    `toml:"max_files"`
}

func loadAndApplyFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
	}

	applyRawConfig(cfg, raw)
	return nil
}

func applyRawConfig(cfg *Config, raw rawConfig) {
	if raw.Store != nil {
		setString(raw.Store.Path, &cfg.Store.Path)
	}

	if raw.Backup != nil {
		setString(raw.Backup.NamePrefix, &cfg.Backup.NamePrefix)
		setBool(raw.Backup.Verify, &cfg.Backup.Verify)
	}

	if raw.Drive != nil {
		setString(raw.Drive.BaseURL, &cfg.Drive.BaseURL)
		setString(raw.Drive.UploadURL, &cfg.Drive.UploadURL)
	}

	if raw.Logging != nil {
		setString(raw.Logging.Level, &cfg.Logging.Level)
		setString(raw.Logging.Format, &cfg.Logging.Format)
		setString(raw.Logging.File, &cfg.Logging.File)
		setInt(raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setInt(raw.Logging.MaxFiles, &cfg.Logging.MaxFiles)
	}
}

func applyEnvOverrides(cfg *Config, opts LoadOptions) error {
	if value, ok := lookupEnv(opts, "ETRACKER_STORE_PATH"); ok {
		cfg.Store.Path = value
	}

	if value, ok := lookupEnv(opts, "ETRACKER_BACKUP_NAME_PREFIX"); ok {
		cfg.Backup.NamePrefix = value
	}
	if value, ok := lookupEnv(opts, "ETRACKER_BACKUP_VERIFY"); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: parse ETRACKER_BACKUP_VERIFY: %v", ErrInvalidConfig, err)
		}
		cfg.Backup.Verify = parsed
	}

	if value, ok := lookupEnv(opts, "ETRACKER_DRIVE_BASE_URL"); ok {
		cfg.Drive.BaseURL = value
	}
	if value, ok := lookupEnv(opts, "ETRACKER_DRIVE_UPLOAD_URL"); ok {
		cfg.Drive.UploadURL = value
	}

	if value, ok := lookupEnv(opts, "ETRACKER_LOG_LEVEL"); ok {
		cfg.Logging.Level = value
	}
	if value, ok := lookupEnv(opts, "ETRACKER_LOG_FORMAT"); ok {
		cfg.Logging.Format = value
	}
	if value, ok := lookupEnv(opts, "ETRACKER_LOG_FILE"); ok {
		cfg.Logging.File = value
	}
	if value, ok := lookupEnv(opts, "ETRACKER_LOG_MAX_SIZE_MB"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse ETRACKER_LOG_MAX_SIZE_MB: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxSizeMB = parsed
	}
	if value, ok := lookupEnv(opts, "ETRACKER_LOG_MAX_FILES"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse ETRACKER_LOG_MAX_FILES: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxFiles = parsed
	}

	return nil
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides) {
	if flags.StorePath != nil {
		cfg.Store.Path = *flags.StorePath
	}
}

func validate(cfg Config) error {
	if cfg.Store.Path == "" {
		return fmt.Errorf("%w: store.path must not be empty", ErrInvalidConfig)
	}
	if cfg.Backup.NamePrefix == "" {
		return fmt.Errorf("%w: backup.name_prefix must not be empty", ErrInvalidConfig)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be one of debug, info, warn, error", ErrInvalidConfig)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format must be text or json", ErrInvalidConfig)
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		return fmt.Errorf("%w: logging.max_size_mb must be > 0", ErrInvalidConfig)
	}
	if cfg.Logging.MaxFiles <= 0 {
		return fmt.Errorf("%w: logging.max_files must be > 0", ErrInvalidConfig)
	}
	return nil
}

func setString(raw *string, target *string) {
	if raw == nil {
		return
	}
	*target = *raw
}

func setBool(raw *bool, target *bool) {
	if raw == nil {
		return
	}
	*target = *raw
}

func setInt(raw *int, target *int) {
	if raw == nil {
		return
	}
	*target = *raw
}

func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, nil
	}
	if value, ok := lookupEnv(opts, "ETRACKER_CONFIG_PATH"); ok {
		return value, nil
	}
	return defaultConfigPath()
}

func lookupEnv(opts LoadOptions, key string) (string, bool) {
	if opts.Env != nil {
		if value, ok := opts.Env[key]; ok {
			return value, true
		}
	}
	return os.LookupEnv(key)
}

func etrackerHome(opts LoadOptions) (string, error) {
	if value, ok := lookupEnv(opts, "ETRACKER_HOME"); ok {
		return value, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "etracker"), nil
	}

	dataHome := filepath.Join(home, ".local", "share")
	if xdgDataHome, ok := lookupEnv(opts, "XDG_DATA_HOME"); ok && xdgDataHome != "" {
		dataHome = xdgDataHome
	}
	return filepath.Join(dataHome, "etracker"), nil
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "etracker", "config.toml"), nil
	}

	configHome := filepath.Join(home, ".config")
	if xdgConfigHome, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdgConfigHome != "" {
		configHome = xdgConfigHome
	}
	return filepath.Join(configHome, "etracker", "config.toml"), nil
}
