package config

import "time"

// TestConfig returns a config suitable for testing: short timeouts, fast
// retries and permissive address validation so httptest servers are reachable.
func TestConfig() *Config {
	def := defaultConfig()
	return &Config{
		Database: DatabaseConfig{
			Path:    ":memory:",
			Timeout: 1 * time.Second,
		},
		Log: LogConfig{Level: "off"},
		Fetch: FetchConfig{
			Timeout:           2 * time.Second,
			UserAgent:         "feedscout-test/1.0",
			MaxRetries:        1,
			InitialRetryDelay: 1 * time.Millisecond,
			MaxRetryDelay:     5 * time.Millisecond,
			MaxBodyBytes:      1 << 20,
		},
		Validation: ValidationConfig{
			AllowLocalhost:  true,
			AllowPrivateIPs: true,
		},
		Relay: RelayConfig{
			Enabled:          true,
			ReorderBySuccess: false,
			Timeout:          1 * time.Second,
			Endpoints:        def.Relay.Endpoints,
		},
		Discovery: DiscoveryConfig{
			Concurrency:    4,
			ProbeTimeout:   1 * time.Second,
			PageTimeout:    1 * time.Second,
			MaxContentScan: 5,
			CommonPaths:    def.Discovery.CommonPaths,
		},
		Cache: CacheConfig{
			SuccessTTL:      1 * time.Hour,
			FailureTTL:      5 * time.Minute,
			DiscoveryTTL:    15 * time.Minute,
			MaxEntries:      100,
			MaxBytes:        1 << 20,
			CleanupInterval: 1 * time.Minute,
		},
		Duplicates: def.Duplicates,
		Server:     ServerConfig{Addr: "127.0.0.1:0"},
	}
}
