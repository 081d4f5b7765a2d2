package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const appDirName = "shieldline"

type Config struct {
	Paths        PathsConfig        `yaml:"paths"`
	Engine       EngineConfig       `yaml:"engine"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	GeoIP        GeoIPConfig        `yaml:"geoip"`
	Sync         SyncConfig         `yaml:"sync"`
	Export       ExportConfig       `yaml:"export"`
}

type PathsConfig struct {
	DataDir  string `yaml:"data_dir"`  // profiles.json, settings.json, sessions.db
	CacheDir string `yaml:"cache_dir"` // engine config.json
	LogDir   string `yaml:"log_dir"`   // session.log
}

type EngineConfig struct {
	Binary       string        `yaml:"binary"`
	ProcessName  string        `yaml:"process_name"` // used by terminate-by-name
	LogLevel     string        `yaml:"log_level"`
	TailInterval time.Duration `yaml:"tail_interval"`
	StartGrace   time.Duration `yaml:"start_grace"` // wait for an immediate engine exit
}

type SubscriptionConfig struct {
	Timeout   time.Duration `yaml:"timeout"` // 0 keeps the transport defaults
	Proxy     string        `yaml:"proxy"`   // socks5://host:port
	UserAgent string        `yaml:"user_agent"`
}

type GeoIPConfig struct {
	CountryPath string `yaml:"country_path"`
	ASNPath     string `yaml:"asn_path"`
}

type SyncConfig struct {
	// Identity decides which id wins when a pulled profile carries an id
	// different from the one the server assigned: "server" or "embedded".
	// Unset, such a pull fails.
	Identity string `yaml:"identity"`
}

type ExportConfig struct {
	Base64 bool         `yaml:"base64"`
	GitHub GitHubConfig `yaml:"github"`
}

// GitHubConfig publishes the exported subscription as a file in a repo.
type GitHubConfig struct {
	Token   string        `yaml:"token"`
	Owner   string        `yaml:"owner"`
	Repo    string        `yaml:"repo"`
	Path    string        `yaml:"path"`
	Branch  string        `yaml:"branch"`
	Message string        `yaml:"message"`
	APIURL  string        `yaml:"api_url"`
	Timeout time.Duration `yaml:"timeout"`
}

const (
	IdentityServer   = "server"
	IdentityEmbedded = "embedded"
)

// Default returns a config usable without any file on disk.
func Default() *Config {
	var cfg Config

	dataDir := filepath.Join(os.TempDir(), appDirName)
	if dir, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(dir, appDirName)
	}
	cacheDir := filepath.Join(dataDir, "cache")
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, appDirName)
	}

	cfg.Paths.DataDir = dataDir
	cfg.Paths.CacheDir = cacheDir
	cfg.Paths.LogDir = filepath.Join(dataDir, "logs")

	cfg.Engine.Binary = "sing-box"
	cfg.Engine.ProcessName = "sing-box"
	cfg.Engine.LogLevel = "info"
	cfg.Engine.TailInterval = 300 * time.Millisecond
	cfg.Engine.StartGrace = 500 * time.Millisecond

	cfg.Subscription.UserAgent = "shieldline/1.0"

	cfg.Export.Base64 = true
	cfg.Export.GitHub.APIURL = "https://api.github.com"
	cfg.Export.GitHub.Message = "Update subscription [shieldline]"
	cfg.Export.GitHub.Timeout = 30 * time.Second
	return &cfg
}

// Load reads the YAML config over the defaults. A missing file yields the
// defaults; an unreadable or malformed one is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Engine.TailInterval <= 0 {
		c.Engine.TailInterval = 300 * time.Millisecond
	}
	if c.Engine.ProcessName == "" {
		c.Engine.ProcessName = filepath.Base(c.Engine.Binary)
	}
	switch c.Sync.Identity {
	case "", IdentityServer, IdentityEmbedded:
	default:
		return fmt.Errorf("invalid sync.identity %q (want %q or %q)", c.Sync.Identity, IdentityServer, IdentityEmbedded)
	}
	return nil
}

func (c *Config) ProfilesPath() string { return filepath.Join(c.Paths.DataDir, "profiles.json") }
func (c *Config) SettingsPath() string { return filepath.Join(c.Paths.DataDir, "settings.json") }
func (c *Config) DatabasePath() string { return filepath.Join(c.Paths.DataDir, "sessions.db") }
func (c *Config) EngineConfigPath() string {
	return filepath.Join(c.Paths.CacheDir, "config.json")
}
func (c *Config) LogPath() string { return filepath.Join(c.Paths.LogDir, "session.log") }
