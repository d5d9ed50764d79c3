package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "TETHER"
	configName = "config.yaml"
)

type Config struct {
	Owner    string         `mapstructure:"owner"`
	Home     string         `mapstructure:"home"`
	DBPath   string         `mapstructure:"db_path"`
	Log      LogConfig      `mapstructure:"log"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Cooldown CooldownConfig `mapstructure:"cooldown"`
	Notes    NotesConfig    `mapstructure:"notes"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Server   ServerConfig   `mapstructure:"server"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type RemoteConfig struct {
	Addr      string        `mapstructure:"addr"`
	HealthURL string        `mapstructure:"health_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type SyncConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

type MonitorConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

type CooldownConfig struct {
	Window     time.Duration `mapstructure:"window"`
	Threshold  int           `mapstructure:"threshold"`
	Base       time.Duration `mapstructure:"base"`
	Multiplier float64       `mapstructure:"multiplier"`
	Max        time.Duration `mapstructure:"max"`
	ResetAfter time.Duration `mapstructure:"reset_after"`
}

type NotesConfig struct {
	Dir string `mapstructure:"dir"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type ServerConfig struct {
	GRPCAddr    string `mapstructure:"grpc_addr"`
	HTTPAddr    string `mapstructure:"http_addr"`
	Backend     string `mapstructure:"backend"`
	BadgerDir   string `mapstructure:"badger_dir"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// Loader reads $home/config.yaml with TETHER_* environment overrides.
type Loader struct {
	v    *viper.Viper
	home string
	path string
}

// NewLoader resolves home from the argument, then TETHER_HOME, then ~/.tether.
func NewLoader(home string) (*Loader, error) {
	if home == "" {
		home = os.Getenv(envPrefix + "_HOME")
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		home = filepath.Join(userHome, ".tether")
	}
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, home)
	return &Loader{v: v, home: home, path: filepath.Join(home, configName)}, nil
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("owner", "")
	v.SetDefault("home", home)
	v.SetDefault("db_path", filepath.Join(home, "tether.db"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("remote.addr", "127.0.0.1:7420")
	v.SetDefault("remote.health_url", "")
	v.SetDefault("remote.timeout", 5*time.Second)
	v.SetDefault("sync.interval", 30*time.Second)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.base_backoff", 2*time.Second)
	v.SetDefault("sync.max_backoff", 5*time.Minute)
	v.SetDefault("monitor.interval", 10*time.Second)
	v.SetDefault("monitor.failure_threshold", 1)
	v.SetDefault("cooldown.window", time.Hour)
	v.SetDefault("cooldown.threshold", 3)
	v.SetDefault("cooldown.base", 5*time.Minute)
	v.SetDefault("cooldown.multiplier", 2.0)
	v.SetDefault("cooldown.max", 2*time.Hour)
	v.SetDefault("cooldown.reset_after", 4*time.Hour)
	v.SetDefault("notes.dir", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("server.grpc_addr", "127.0.0.1:7420")
	v.SetDefault("server.http_addr", "127.0.0.1:7421")
	v.SetDefault("server.backend", "badger")
	v.SetDefault("server.badger_dir", filepath.Join(home, "remote"))
	v.SetDefault("server.postgres_dsn", "")
}

func (l *Loader) Home() string {
	return l.home
}

func (l *Loader) Path() string {
	return l.path
}

// Load reads the config file when present. A missing file leaves defaults
// and environment values in effect.
func (l *Loader) Load() (Config, error) {
	if _, err := os.Stat(l.path); err == nil {
		l.v.SetConfigFile(l.path)
		if err := l.v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", l.path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat config: %w", err)
	}
	return l.decode()
}

func (l *Loader) decode() (Config, error) {
	cfg := Config{}
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch calls fn with the re-decoded config whenever the file changes.
// It reports false when there is no config file to watch.
func (l *Loader) Watch(fn func(Config, error)) bool {
	if _, err := os.Stat(l.path); err != nil {
		return false
	}
	l.v.SetConfigFile(l.path)
	l.v.OnConfigChange(func(fsnotify.Event) {
		fn(l.decode())
	})
	l.v.WatchConfig()
	return true
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries must be non-negative")
	}
	if c.Sync.Interval <= 0 || c.Monitor.Interval <= 0 {
		return fmt.Errorf("sync.interval and monitor.interval must be positive")
	}
	if c.Cooldown.Threshold < 1 {
		return fmt.Errorf("cooldown.threshold must be at least 1")
	}
	if c.Cooldown.Multiplier < 1 {
		return fmt.Errorf("cooldown.multiplier must be at least 1")
	}
	switch c.Server.Backend {
	case "badger", "postgres":
	default:
		return fmt.Errorf("unknown server.backend %q", c.Server.Backend)
	}
	return nil
}
