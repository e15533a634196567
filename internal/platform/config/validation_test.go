package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "quote-sync",
			Version:     "1.0.0",
			Environment: "local",
		},
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxRequestSize:  1048576,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Client: ClientConfig{
			Timeout: 10 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     5 * time.Second,
				Multiplier:      2.0,
				JitterFactor:    0.25,
			},
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures:   5,
				Timeout:       30 * time.Second,
				HalfOpenLimit: 3,
			},
			Transport: TransportConfig{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Remote: RemoteConfig{
			BaseURL:      "https://jsonplaceholder.typicode.com",
			Name:         "posts",
			FetchLimit:   15,
			UploadUserID: 1,
		},
		Store: StoreConfig{
			Driver: StoreSQLite,
			Path:   "./data/quotes.db",
		},
		Sync: SyncConfig{
			Enabled:        true,
			Interval:       30 * time.Second,
			InitialDelay:   time.Second,
			Timeout:        20 * time.Second,
			ConflictPolicy: "server_wins",
			ManualChoice:   "remote",
		},
		Notify: NotifyConfig{
			Capacity: 50,
			TTL:      4 * time.Second,
		},
	}
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantErrs []string
	}{
		{
			name:     "missing app name",
			mutate:   func(c *Config) { c.App.Name = "" },
			wantErrs: []string{"app.name is required"},
		},
		{
			name:     "unknown environment",
			mutate:   func(c *Config) { c.App.Environment = "staging" },
			wantErrs: []string{"app.environment", "must be one of"},
		},
		{
			name:     "port out of range",
			mutate:   func(c *Config) { c.Server.Port = 65536 },
			wantErrs: []string{"server.port must be at most 65535"},
		},
		{
			name:     "unknown log level",
			mutate:   func(c *Config) { c.Log.Level = "verbose" },
			wantErrs: []string{"log.level"},
		},
		{
			name:     "pretty format accepted",
			mutate:   func(c *Config) { c.Log.Format = "pretty"; c.Log.Level = "trace" },
			wantErrs: nil,
		},
		{
			name:     "log file enabled without path",
			mutate:   func(c *Config) { c.Log.File.Enabled = true },
			wantErrs: []string{"log.file.path is required when"},
		},
		{
			name:     "telemetry enabled without endpoint",
			mutate:   func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.ServiceName = "quote-sync" },
			wantErrs: []string{"telemetry.endpoint"},
		},
		{
			name:     "sampling rate above one",
			mutate:   func(c *Config) { c.Telemetry.SamplingRate = 1.5 },
			wantErrs: []string{"telemetry.samplingrate must be at most 1"},
		},
		{
			name:     "auth enabled without headers",
			mutate:   func(c *Config) { c.Auth.Enabled = true },
			wantErrs: []string{"auth.subjectheader", "auth.scopesheader", "auth.writescope"},
		},
		{
			name:     "negative rate limit",
			mutate:   func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.RPS = -1; c.RateLimit.Burst = 1 },
			wantErrs: []string{"ratelimit.rps must be greater than 0"},
		},
		{
			name:     "remote base url not a url",
			mutate:   func(c *Config) { c.Remote.BaseURL = "not a url" },
			wantErrs: []string{"remote.baseurl must be a valid URL"},
		},
		{
			name:     "fetch limit zero",
			mutate:   func(c *Config) { c.Remote.FetchLimit = 0 },
			wantErrs: []string{"remote.fetchlimit is required"},
		},
		{
			name:     "negative remote rate limit",
			mutate:   func(c *Config) { c.Remote.RateLimit = -1 },
			wantErrs: []string{"remote.ratelimit"},
		},
		{
			name:     "unknown store driver",
			mutate:   func(c *Config) { c.Store.Driver = "postgres" },
			wantErrs: []string{"store.driver must be one of: sqlite yaml memory"},
		},
		{
			name:     "file store without path",
			mutate:   func(c *Config) { c.Store.Driver = StoreYAML; c.Store.Path = "" },
			wantErrs: []string{"store.path is required unless"},
		},
		{
			name:     "memory store needs no path",
			mutate:   func(c *Config) { c.Store.Driver = StoreMemory; c.Store.Path = "" },
			wantErrs: nil,
		},
		{
			name:     "unknown conflict policy",
			mutate:   func(c *Config) { c.Sync.ConflictPolicy = "client_wins" },
			wantErrs: []string{"sync.conflictpolicy must be one of"},
		},
		{
			name:     "unknown manual choice",
			mutate:   func(c *Config) { c.Sync.ManualChoice = "both" },
			wantErrs: []string{"sync.manualchoice"},
		},
		{
			name:     "sync timeout longer than interval",
			mutate:   func(c *Config) { c.Sync.Timeout = time.Minute },
			wantErrs: []string{"sync.timeout must not exceed sync.interval"},
		},
		{
			name:     "retry max interval below initial",
			mutate:   func(c *Config) { c.Client.Retry.MaxInterval = 200 * time.Millisecond; c.Client.Retry.InitialInterval = time.Second },
			wantErrs: []string{"client.retry.max_interval must not be shorter"},
		},
		{
			name: "archive enabled without bucket or keys",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Endpoint = "localhost:9000"
			},
			wantErrs: []string{"archive.bucket", "archive.accesskey", "archive.secretkey"},
		},
		{
			name:     "notify capacity zero",
			mutate:   func(c *Config) { c.Notify.Capacity = 0 },
			wantErrs: []string{"notify.capacity is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if len(tt.wantErrs) == 0 {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			for _, want := range tt.wantErrs {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""
	cfg.Server.Port = 0
	cfg.Store.Driver = ""

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "config validation failed")
	assert.Contains(t, msg, "app.name")
	assert.Contains(t, msg, "server.port")
	assert.Contains(t, msg, "store.driver")
}

func TestFormatFieldPath(t *testing.T) {
	tests := []struct {
		namespace string
		want      string
	}{
		{"Config.Server.Port", "server.port"},
		{"Config.Sync.ConflictPolicy", "sync.conflictpolicy"},
		{"Config.Client.Retry.MaxAttempts", "client.retry.maxattempts"},
		{"Port", "port"},
	}

	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			assert.Equal(t, tt.want, formatFieldPath(tt.namespace))
		})
	}
}
