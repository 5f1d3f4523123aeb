// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that call
// external services.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-journey/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// StoreConfig locates the entity store.
type StoreConfig struct {
	// Path is the sqlite database file (e.g. "data/journey.db").
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LogConfig selects the logger flavour.
type LogConfig struct {
	// Development switches to zap's human-readable development logger.
	Development bool `json:"development" yaml:"development" mapstructure:"development"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// JWTSecret verifies HS256 bearer tokens issued by the auth provider.
	JWTSecret string `json:"jwt_secret,omitempty" yaml:"jwt_secret,omitempty" mapstructure:"jwt_secret"`

	// JWTIssuer, when set, must match the token's iss claim.
	JWTIssuer string `json:"jwt_issuer,omitempty" yaml:"jwt_issuer,omitempty" mapstructure:"jwt_issuer"`

	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
}

// PlatformConfig configures one external community platform.
type PlatformConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// BaseURL overrides the platform's public API root.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Token authenticates against the platform API when it requires one.
	Token string `json:"token,omitempty" yaml:"token,omitempty" mapstructure:"token"`
}

// DirectoryConfig holds settings for community and resource directories.
type DirectoryConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults caps results per platform backend (default 25).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	Reddit  PlatformConfig `json:"reddit" yaml:"reddit" mapstructure:"reddit"`
	Discord PlatformConfig `json:"discord" yaml:"discord" mapstructure:"discord"`
	Slack   PlatformConfig `json:"slack" yaml:"slack" mapstructure:"slack"`
}

// TopicConfig holds settings for topic recommendations.
type TopicConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// RecommenderURL is the AI inference endpoint; empty disables recommendations.
	RecommenderURL string `json:"recommender_url,omitempty" yaml:"recommender_url,omitempty" mapstructure:"recommender_url"`

	// APIKey authenticates against the recommender.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Model is passed through to the recommender.
	Model string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
}

// LedgerConfig holds settings for the points ledger.
type LedgerConfig struct {
	// ReconcileSchedule is the cron expression for total/history
	// reconciliation; empty disables the job.
	ReconcileSchedule string `json:"reconcile_schedule" yaml:"reconcile_schedule" mapstructure:"reconcile_schedule"`
}

// ExportConfig holds settings for journey exports.
type ExportConfig struct {
	// Dir is where export files are written (default "exports").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// S3 upload target; uploads are skipped when Bucket is empty.
	S3Bucket    string `json:"s3_bucket,omitempty" yaml:"s3_bucket,omitempty" mapstructure:"s3_bucket"`
	S3Endpoint  string `json:"s3_endpoint,omitempty" yaml:"s3_endpoint,omitempty" mapstructure:"s3_endpoint"`
	S3Region    string `json:"s3_region,omitempty" yaml:"s3_region,omitempty" mapstructure:"s3_region"`
	S3AccessKey string `json:"s3_access_key,omitempty" yaml:"s3_access_key,omitempty" mapstructure:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key,omitempty" yaml:"s3_secret_key,omitempty" mapstructure:"s3_secret_key"`
	S3Prefix    string `json:"s3_prefix,omitempty" yaml:"s3_prefix,omitempty" mapstructure:"s3_prefix"`
}

// Config groups every component's configuration.
type Config struct {
	Store     StoreConfig     `json:"store" yaml:"store" mapstructure:"store"`
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Directory DirectoryConfig `json:"directory" yaml:"directory" mapstructure:"directory"`
	Topic     TopicConfig     `json:"topic" yaml:"topic" mapstructure:"topic"`
	Ledger    LedgerConfig    `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	Export    ExportConfig    `json:"export" yaml:"export" mapstructure:"export"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides a value.
func DefaultConfig() Config {
	httpDefaults := HTTPConfig{
		Timeout:    20 * time.Second,
		UserAgent:  "research-journey/0.1",
		MaxRetries: 3,
	}
	return Config{
		Store: StoreConfig{Path: "data/journey.db"},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Directory: DirectoryConfig{
			HTTPConfig: httpDefaults,
			MaxResults: 25,
			Reddit:     PlatformConfig{Enabled: true},
		},
		Topic:  TopicConfig{HTTPConfig: httpDefaults},
		Ledger: LedgerConfig{ReconcileSchedule: "0 3 * * *"},
		Export: ExportConfig{Dir: "exports"},
	}
}
