package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full fabric configuration
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Courier  CourierConfig  `yaml:"courier"`
	Store    StoreConfig    `yaml:"store"`
	Watchers WatcherConfig  `yaml:"watchers"`
	Actions  ActionConfig   `yaml:"actions"`
	Registry RegistryConfig `yaml:"registry"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CourierConfig controls the message-exchange service
type CourierConfig struct {
	Addr            string        `yaml:"addr"`
	MailboxRoot     string        `yaml:"mailbox_root"`
	ControlDir      string        `yaml:"control_dir"`
	DebounceWindow  time.Duration `yaml:"debounce_window"`
	DebounceMaxWait time.Duration `yaml:"debounce_max_wait"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
}

// StoreConfig controls the artifact store
type StoreConfig struct {
	Root       string        `yaml:"root"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
	SweepEvery time.Duration `yaml:"sweep_every"`
}

// WatcherConfig controls the polling watchers
type WatcherConfig struct {
	IssueDir      string        `yaml:"issue_dir"`
	MemoInbox     string        `yaml:"memo_inbox"`
	MemoThreshold int           `yaml:"memo_threshold"`
	TaskFile      string        `yaml:"task_file"`
	PollInterval  time.Duration `yaml:"poll_interval"`
}

// ActionConfig controls built-in action defaults
type ActionConfig struct {
	RepoDir        string        `yaml:"repo_dir"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// RegistryConfig locates the courier project registry
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// Default returns the documented defaults
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
		Courier: CourierConfig{
			Addr:            "localhost:8644",
			MailboxRoot:     "mailbox",
			ControlDir:      ".fabric",
			DebounceWindow:  2 * time.Second,
			DebounceMaxWait: 10 * time.Second,
			LockTimeout:     5 * time.Minute,
		},
		Store: StoreConfig{
			Root:       ".fabric/store",
			DefaultTTL: 0,
			SweepEvery: time.Hour,
		},
		Watchers: WatcherConfig{
			IssueDir:      "issues",
			MemoInbox:     "memos/inbox.md",
			MemoThreshold: 5,
			TaskFile:      "tasks.md",
			PollInterval:  2 * time.Second,
		},
		Actions: ActionConfig{
			MaxConcurrent:  3,
			CommandTimeout: 60 * time.Second,
		},
	}
}

// Load reads configuration: an optional .env file first, then the
// YAML file at path (missing file falls back to defaults), then
// FABRIC_* environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	// Ignore a missing .env; it is a development convenience.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays FABRIC_* environment variables
func (c *Config) applyEnv() {
	if v := os.Getenv("FABRIC_ADDR"); v != "" {
		c.Courier.Addr = v
	}
	if v := os.Getenv("FABRIC_MAILBOX_ROOT"); v != "" {
		c.Courier.MailboxRoot = v
	}
	if v := os.Getenv("FABRIC_CONTROL_DIR"); v != "" {
		c.Courier.ControlDir = v
	}
	if v := os.Getenv("FABRIC_STORE_ROOT"); v != "" {
		c.Store.Root = v
	}
	if v := os.Getenv("FABRIC_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("FABRIC_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Watchers.PollInterval = d
		}
	}
	if v := os.Getenv("FABRIC_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Actions.MaxConcurrent = n
		}
	}
}

// Validate rejects configurations that cannot run
func (c *Config) Validate() error {
	if c.Courier.Addr == "" {
		return fmt.Errorf("courier.addr is required")
	}
	if c.Courier.DebounceWindow <= 0 {
		return fmt.Errorf("courier.debounce_window must be positive")
	}
	if c.Courier.DebounceMaxWait < c.Courier.DebounceWindow {
		return fmt.Errorf("courier.debounce_max_wait must be at least the debounce window")
	}
	if c.Courier.LockTimeout <= 0 {
		return fmt.Errorf("courier.lock_timeout must be positive")
	}
	if c.Watchers.PollInterval <= 0 {
		return fmt.Errorf("watchers.poll_interval must be positive")
	}
	if c.Watchers.MemoThreshold < 0 {
		return fmt.Errorf("watchers.memo_threshold must not be negative")
	}
	if c.Actions.MaxConcurrent <= 0 {
		return fmt.Errorf("actions.max_concurrent must be positive")
	}
	return nil
}
