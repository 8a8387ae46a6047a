package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/spf13/viper"
)

const (
	appName        = "nearby"
	configFileName = "config.yaml"
	envPrefix      = "NEARBY"
)

// Config holds all application configuration
type Config struct {
	Directory     DirectoryConfig     `mapstructure:"directory"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Logging       LoggingConfig       `mapstructure:"logging"`

	// File is the config file that was read, or the one given explicitly.
	// Empty when the search found nothing.
	File string `mapstructure:"-"`
}

// DirectoryConfig holds the directory API connection
type DirectoryConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"` // Optional bearer token
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds local store settings
type CacheConfig struct {
	Dir           string        `mapstructure:"dir"`
	RadiusMiles   float64       `mapstructure:"radius_miles"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	PreferencesFile  string         `mapstructure:"preferences_file"`
	SubscriptionFile string         `mapstructure:"subscription_file"`
	PublicKey        string         `mapstructure:"public_key"` // Push application server key
	Icon             string         `mapstructure:"icon"`
	Permission       string         `mapstructure:"permission"` // default, granted or denied
	ForceTerminal    bool           `mapstructure:"force_terminal"`
	Firebase         FirebaseConfig `mapstructure:"firebase"`
}

// FirebaseConfig enables push delivery through Firebase Cloud Messaging
type FirebaseConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	DeviceToken     string `mapstructure:"device_token"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Directory: DirectoryConfig{
			URL:     "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Dir:           filepath.Join(defaultDataPath(), "cache"),
			RadiusMiles:   10,
			PruneInterval: time.Hour,
		},
		Notifications: NotificationsConfig{
			PreferencesFile:  filepath.Join(defaultConfigPath(), "notifications.yaml"),
			SubscriptionFile: filepath.Join(defaultConfigPath(), "subscription.yaml"),
			Permission:       string(domain.PermissionDefault),
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), appName+".log"),
			Level: "INFO",
		},
	}
}

// PushConfigured reports whether Firebase delivery has what it needs
func (c *Config) PushConfigured() bool {
	fb := c.Notifications.Firebase
	return fb.CredentialsFile != "" && fb.DeviceToken != ""
}

// Permission returns the persisted notification permission
func (c *Config) Permission() domain.Permission {
	return domain.ParsePermission(c.Notifications.Permission)
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), appName)
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", appName)
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), appName)
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultConfigFile returns the file SaveConfig writes when no path is given
func DefaultConfigFile() string {
	return filepath.Join(defaultConfigPath(), configFileName)
}

func resolve(path string) string {
	if path == "" {
		return DefaultConfigFile()
	}
	return path
}

// newViper returns a viper instance with defaults and env overrides bound.
// Defaults are registered for every key so env vars reach Unmarshal.
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range settings(cfg) {
		v.SetDefault(key, value)
	}
	return v
}

func settings(cfg *Config) map[string]any {
	return map[string]any{
		"directory.url":                           cfg.Directory.URL,
		"directory.token":                         cfg.Directory.Token,
		"directory.timeout":                       cfg.Directory.Timeout.String(),
		"cache.dir":                               cfg.Cache.Dir,
		"cache.radius_miles":                      cfg.Cache.RadiusMiles,
		"cache.prune_interval":                    cfg.Cache.PruneInterval.String(),
		"notifications.preferences_file":          cfg.Notifications.PreferencesFile,
		"notifications.subscription_file":         cfg.Notifications.SubscriptionFile,
		"notifications.public_key":                cfg.Notifications.PublicKey,
		"notifications.icon":                      cfg.Notifications.Icon,
		"notifications.permission":                cfg.Notifications.Permission,
		"notifications.force_terminal":            cfg.Notifications.ForceTerminal,
		"notifications.firebase.credentials_file": cfg.Notifications.Firebase.CredentialsFile,
		"notifications.firebase.device_token":     cfg.Notifications.Firebase.DeviceToken,
		"logging.file":                            cfg.Logging.File,
		"logging.level":                           cfg.Logging.Level,
	}
}

// readFile loads path into v. A missing file is not an error.
func readFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from file and environment. An empty path
// searches the OS config directory, then the working directory. The file
// that was read is recorded in Config.File.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	if path != "" {
		if err := readFile(v, path); err != nil {
			return nil, err
		}
		cfg.File = path
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			// Config file not found is OK, use defaults
		}
		cfg.File = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes cfg to path, or the default config file when empty
func SaveConfig(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range settings(cfg) {
		v.Set(key, value)
	}
	return write(v, resolve(path))
}

// SavePermission updates just the notification permission, keeping the
// rest of the file as it is. Pass Config.File so the permission lands in
// the file that was loaded.
func SavePermission(p domain.Permission, path string) error {
	path = resolve(path)

	v := viper.New()
	v.SetConfigType("yaml")
	if err := readFile(v, path); err != nil {
		return err
	}
	v.Set("notifications.permission", string(p))
	return write(v, path)
}

func write(v *viper.Viper, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
