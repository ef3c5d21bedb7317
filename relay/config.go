package relay

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DaemonConfig is the top-level relay configuration.
type DaemonConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// DBPath holds settings, transcript cache, handoff payloads, and
	// routes in one SQLite file.
	DBPath string `yaml:"db_path"`

	// ChatbotsConfig overrides the embedded chatbot registry.
	ChatbotsConfig string `yaml:"chatbots_config"`

	AllowPrivateWindows bool `yaml:"allow_private_windows"`

	RoutesWatchInterval time.Duration `yaml:"routes_watch_interval"`

	Browser BrowserConfig `yaml:"browser"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Mode             string        `yaml:"mode"` // headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*DaemonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg DaemonConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, cfg.validate()
}

// DefaultDaemonConfig returns the configuration used when no file is
// given.
func DefaultDaemonConfig() *DaemonConfig {
	cfg := &DaemonConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *DaemonConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:8088"
	}
	if c.DBPath == "" {
		c.DBPath = "ebutia.db"
	}
	if c.RoutesWatchInterval <= 0 {
		c.RoutesWatchInterval = 200 * time.Millisecond
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headless"
	}
}

func (c *DaemonConfig) validate() error {
	switch c.Browser.Mode {
	case "headless", "headful":
	default:
		return fmt.Errorf("relay: invalid browser mode %q", c.Browser.Mode)
	}
	return nil
}
