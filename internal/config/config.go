package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Validation ValidationConfig `mapstructure:"validation"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Duplicates DuplicatesConfig `mapstructure:"duplicates"`
	Server     ServerConfig     `mapstructure:"server"`
}

type DatabaseConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialRetryDelay time.Duration `mapstructure:"initial_retry_delay"`
	MaxRetryDelay     time.Duration `mapstructure:"max_retry_delay"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
}

type ValidationConfig struct {
	AllowLocalhost  bool `mapstructure:"allow_localhost"`
	AllowPrivateIPs bool `mapstructure:"allow_private_ips"`
}

type RelayConfig struct {
	Enabled          bool            `mapstructure:"enabled"`
	ReorderBySuccess bool            `mapstructure:"reorder_by_success"`
	Timeout          time.Duration   `mapstructure:"timeout"`
	Endpoints        []RelayEndpoint `mapstructure:"endpoints"`
}

// RelayEndpoint describes a third-party relay. URLTemplate contains {url}
// where the escaped target address is substituted. Format is "raw" when the
// relay returns the resource body verbatim, or "json" when the body is
// wrapped in a JSON object under JSONField.
type RelayEndpoint struct {
	Name        string `mapstructure:"name"`
	URLTemplate string `mapstructure:"url_template"`
	Format      string `mapstructure:"format"`
	JSONField   string `mapstructure:"json_field"`
}

type DiscoveryConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	PageTimeout    time.Duration `mapstructure:"page_timeout"`
	MaxContentScan int           `mapstructure:"max_content_scan"`
	CommonPaths    []string      `mapstructure:"common_paths"`
}

type CacheConfig struct {
	SuccessTTL      time.Duration `mapstructure:"success_ttl"`
	FailureTTL      time.Duration `mapstructure:"failure_ttl"`
	DiscoveryTTL    time.Duration `mapstructure:"discovery_ttl"`
	MaxEntries      int           `mapstructure:"max_entries"`
	MaxBytes        int64         `mapstructure:"max_bytes"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type DuplicatesConfig struct {
	TitleSimilarityThreshold float64 `mapstructure:"title_similarity_threshold"`
	FingerprintConcurrency   int     `mapstructure:"fingerprint_concurrency"`
}

type ServerConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

// DefaultCommonPaths are the conventional feed locations probed during discovery.
var DefaultCommonPaths = []string{
	"/feed",
	"/rss",
	"/rss.xml",
	"/feed.xml",
	"/atom.xml",
	"/index.xml",
	"/feed/atom",
	"/feed/rss",
	"/feeds/all.atom.xml",
	"/feeds/posts/default",
	"/rss/index.xml",
	"/blog/feed",
	"/blog/rss.xml",
	"/blog/atom.xml",
	"/index.rss",
	"/wp-rss2.php",
	"/?feed=rss2",
}

// DefaultRelayEndpoints are public relays tried in order when a direct fetch is blocked.
var DefaultRelayEndpoints = []RelayEndpoint{
	{Name: "allorigins", URLTemplate: "https://api.allorigins.win/get?url={url}", Format: "json", JSONField: "contents"},
	{Name: "corsproxy", URLTemplate: "https://corsproxy.io/?url={url}", Format: "raw"},
	{Name: "codetabs", URLTemplate: "https://api.codetabs.com/v1/proxy?quest={url}", Format: "raw"},
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dbPath := filepath.Join(homeDir, ".feedscout", "feeds.db")

	return &Config{
		Database: DatabaseConfig{
			Path:    dbPath,
			Timeout: 1 * time.Second,
		},
		Log: LogConfig{
			Level: "off",
		},
		Fetch: FetchConfig{
			Timeout:           10 * time.Second,
			UserAgent:         "feedscout/1.0 (feed resolver; github.com/pders01/feedscout)",
			MaxRetries:        2,
			InitialRetryDelay: 250 * time.Millisecond,
			MaxRetryDelay:     2 * time.Second,
			MaxBodyBytes:      5 << 20,
		},
		Validation: ValidationConfig{
			AllowLocalhost:  false,
			AllowPrivateIPs: false,
		},
		Relay: RelayConfig{
			Enabled:          true,
			ReorderBySuccess: true,
			Timeout:          8 * time.Second,
			Endpoints:        append([]RelayEndpoint(nil), DefaultRelayEndpoints...),
		},
		Discovery: DiscoveryConfig{
			Concurrency:    4,
			ProbeTimeout:   5 * time.Second,
			PageTimeout:    8 * time.Second,
			MaxContentScan: 10,
			CommonPaths:    append([]string(nil), DefaultCommonPaths...),
		},
		Cache: CacheConfig{
			SuccessTTL:      1 * time.Hour,
			FailureTTL:      5 * time.Minute,
			DiscoveryTTL:    15 * time.Minute,
			MaxEntries:      500,
			MaxBytes:        4 << 20,
			CleanupInterval: 1 * time.Minute,
		},
		Duplicates: DuplicatesConfig{
			TitleSimilarityThreshold: 0.9,
			FingerprintConcurrency:   4,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v, defaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "feedscout")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FEEDSCOUT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyFallbacks(&config)
	expandPaths(&config)

	return &config, nil
}

// setDefaults registers every leaf key so a config file may override a single
// field without dropping the rest of its section.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.timeout", cfg.Database.Timeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)

	v.SetDefault("fetch.timeout", cfg.Fetch.Timeout)
	v.SetDefault("fetch.user_agent", cfg.Fetch.UserAgent)
	v.SetDefault("fetch.max_retries", cfg.Fetch.MaxRetries)
	v.SetDefault("fetch.initial_retry_delay", cfg.Fetch.InitialRetryDelay)
	v.SetDefault("fetch.max_retry_delay", cfg.Fetch.MaxRetryDelay)
	v.SetDefault("fetch.max_body_bytes", cfg.Fetch.MaxBodyBytes)

	v.SetDefault("validation.allow_localhost", cfg.Validation.AllowLocalhost)
	v.SetDefault("validation.allow_private_ips", cfg.Validation.AllowPrivateIPs)

	v.SetDefault("relay.enabled", cfg.Relay.Enabled)
	v.SetDefault("relay.reorder_by_success", cfg.Relay.ReorderBySuccess)
	v.SetDefault("relay.timeout", cfg.Relay.Timeout)
	v.SetDefault("relay.endpoints", cfg.Relay.Endpoints)

	v.SetDefault("discovery.concurrency", cfg.Discovery.Concurrency)
	v.SetDefault("discovery.probe_timeout", cfg.Discovery.ProbeTimeout)
	v.SetDefault("discovery.page_timeout", cfg.Discovery.PageTimeout)
	v.SetDefault("discovery.max_content_scan", cfg.Discovery.MaxContentScan)
	v.SetDefault("discovery.common_paths", cfg.Discovery.CommonPaths)

	v.SetDefault("cache.success_ttl", cfg.Cache.SuccessTTL)
	v.SetDefault("cache.failure_ttl", cfg.Cache.FailureTTL)
	v.SetDefault("cache.discovery_ttl", cfg.Cache.DiscoveryTTL)
	v.SetDefault("cache.max_entries", cfg.Cache.MaxEntries)
	v.SetDefault("cache.max_bytes", cfg.Cache.MaxBytes)
	v.SetDefault("cache.cleanup_interval", cfg.Cache.CleanupInterval)

	v.SetDefault("duplicates.title_similarity_threshold", cfg.Duplicates.TitleSimilarityThreshold)
	v.SetDefault("duplicates.fingerprint_concurrency", cfg.Duplicates.FingerprintConcurrency)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.api_key", cfg.Server.APIKey)
}

// applyFallbacks restores defaults for values a config file zeroed out.
func applyFallbacks(cfg *Config) {
	def := defaultConfig()
	if cfg.Discovery.Concurrency <= 0 {
		cfg.Discovery.Concurrency = def.Discovery.Concurrency
	}
	if len(cfg.Discovery.CommonPaths) == 0 {
		cfg.Discovery.CommonPaths = def.Discovery.CommonPaths
	}
	if cfg.Duplicates.TitleSimilarityThreshold <= 0 || cfg.Duplicates.TitleSimilarityThreshold > 1 {
		cfg.Duplicates.TitleSimilarityThreshold = def.Duplicates.TitleSimilarityThreshold
	}
	if cfg.Duplicates.FingerprintConcurrency <= 0 {
		cfg.Duplicates.FingerprintConcurrency = def.Duplicates.FingerprintConcurrency
	}
	if cfg.Fetch.MaxRetries < 0 {
		cfg.Fetch.MaxRetries = 0
	}
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Log.File = expandPath(cfg.Log.File)
}

func Save(config *Config, path string) error {
	v := viper.New()

	// Durations as strings for TOML readability
	v.Set("database", map[string]interface{}{
		"path":    config.Database.Path,
		"timeout": config.Database.Timeout.String(),
	})
	v.Set("log", map[string]interface{}{
		"level": config.Log.Level,
		"file":  config.Log.File,
	})
	v.Set("fetch", map[string]interface{}{
		"timeout":             config.Fetch.Timeout.String(),
		"user_agent":          config.Fetch.UserAgent,
		"max_retries":         config.Fetch.MaxRetries,
		"initial_retry_delay": config.Fetch.InitialRetryDelay.String(),
		"max_retry_delay":     config.Fetch.MaxRetryDelay.String(),
		"max_body_bytes":      config.Fetch.MaxBodyBytes,
	})
	v.Set("validation", map[string]interface{}{
		"allow_localhost":   config.Validation.AllowLocalhost,
		"allow_private_ips": config.Validation.AllowPrivateIPs,
	})

	endpoints := make([]map[string]interface{}, 0, len(config.Relay.Endpoints))
	for _, ep := range config.Relay.Endpoints {
		endpoints = append(endpoints, map[string]interface{}{
			"name":         ep.Name,
			"url_template": ep.URLTemplate,
			"format":       ep.Format,
			"json_field":   ep.JSONField,
		})
	}
	v.Set("relay", map[string]interface{}{
		"enabled":            config.Relay.Enabled,
		"reorder_by_success": config.Relay.ReorderBySuccess,
		"timeout":            config.Relay.Timeout.String(),
		"endpoints":          endpoints,
	})
	v.Set("discovery", map[string]interface{}{
		"concurrency":      config.Discovery.Concurrency,
		"probe_timeout":    config.Discovery.ProbeTimeout.String(),
		"page_timeout":     config.Discovery.PageTimeout.String(),
		"max_content_scan": config.Discovery.MaxContentScan,
		"common_paths":     config.Discovery.CommonPaths,
	})
	v.Set("cache", map[string]interface{}{
		"success_ttl":      config.Cache.SuccessTTL.String(),
		"failure_ttl":      config.Cache.FailureTTL.String(),
		"discovery_ttl":    config.Cache.DiscoveryTTL.String(),
		"max_entries":      config.Cache.MaxEntries,
		"max_bytes":        config.Cache.MaxBytes,
		"cleanup_interval": config.Cache.CleanupInterval.String(),
	})
	v.Set("duplicates", map[string]interface{}{
		"title_similarity_threshold": config.Duplicates.TitleSimilarityThreshold,
		"fingerprint_concurrency":    config.Duplicates.FingerprintConcurrency,
	})
	v.Set("server", map[string]interface{}{
		"addr":    config.Server.Addr,
		"api_key": config.Server.APIKey,
	})

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
