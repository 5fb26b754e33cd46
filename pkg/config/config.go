// Package config loads the console configuration from defaults, an optional file and the environment.
package config

import "time"

// Log output formats accepted by observability.log_format.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config is the root configuration structure of the console.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	HTTP          HTTPConfig          `mapstructure:"http" yaml:"http"`
	Management    ManagementConfig    `mapstructure:"management" yaml:"management"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	ObjectStorage ObjectStorageConfig `mapstructure:"object_storage" yaml:"object_storage"`
	Auth          AuthConfig          `mapstructure:"auth" yaml:"auth"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit" yaml:"rate_limit"`
	Media         MediaConfig         `mapstructure:"media" yaml:"media"`
	Email         EmailConfig         `mapstructure:"email" yaml:"email"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// HTTPConfig configures the public API server.
type HTTPConfig struct {
	Port           int           `mapstructure:"port" yaml:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	MaxRequestSize int64         `mapstructure:"max_request_size" yaml:"max_request_size"`
}

// ManagementConfig configures the management server (health, readiness, metrics).
type ManagementConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Port         int           `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// ObservabilityConfig configures logging and tracing.
type ObservabilityConfig struct {
	LogLevel  string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string        `mapstructure:"log_format" yaml:"log_format"`
	Tracing   TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" yaml:"url" secret:"true"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
}

// ObjectStorageConfig configures both storage variants and the managed-host detection
// that chooses between them.
type ObjectStorageConfig struct {
	Managed ManagedHostConfig        `mapstructure:"managed" yaml:"managed"`
	Local   LocalObjectStorageConfig `mapstructure:"local" yaml:"local"`
	Cloud   CloudObjectStorageConfig `mapstructure:"cloud" yaml:"cloud"`
}

// ManagedHostConfig configures managed-host detection and the loopback sidecar.
type ManagedHostConfig struct {
	EnvVar       string        `mapstructure:"env_var" yaml:"env_var"`
	SidecarURL   string        `mapstructure:"sidecar_url" yaml:"sidecar_url"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
}

// LocalObjectStorageConfig configures the filesystem variant.
type LocalObjectStorageConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
}

// CloudObjectStorageConfig configures the S3-compatible cloud variant.
type CloudObjectStorageConfig struct {
	Bucket             string        `mapstructure:"bucket" yaml:"bucket"`
	Region             string        `mapstructure:"region" yaml:"region"`
	Endpoint           string        `mapstructure:"endpoint" yaml:"endpoint"`
	Prefix             string        `mapstructure:"prefix" yaml:"prefix"`
	AccessKeyID        string        `mapstructure:"access_key_id" yaml:"access_key_id" secret:"true"`
	SecretAccessKey    string        `mapstructure:"secret_access_key" yaml:"secret_access_key" secret:"true"`
	SessionToken       string        `mapstructure:"session_token" yaml:"session_token" secret:"true"`
	UsePathStyle       bool          `mapstructure:"use_path_style" yaml:"use_path_style"`
	SidecarCredentials bool          `mapstructure:"sidecar_credentials" yaml:"sidecar_credentials"`
	OperationTimeout   time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	PresignExpiry      time.Duration `mapstructure:"presign_expiry" yaml:"presign_expiry"`
}

// AuthConfig configures the admin login and the tokens it issues.
type AuthConfig struct {
	Issuer            string        `mapstructure:"issuer" yaml:"issuer"`
	SigningKey        string        `mapstructure:"signing_key" yaml:"signing_key" secret:"true"`
	TokenTTL          time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	AdminUsername     string        `mapstructure:"admin_username" yaml:"admin_username"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash" yaml:"admin_password_hash" secret:"true"`
}

// RateLimitConfig configures the login throttle.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond int  `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int  `mapstructure:"burst" yaml:"burst"`
}

// MediaConfig constrains image uploads.
type MediaConfig struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`

	// RedirectPresigned answers GET /media/*key with a redirect to a presigned URL
	// when the selected backend supports it.
	RedirectPresigned bool `mapstructure:"redirect_presigned" yaml:"redirect_presigned"`
}

// EmailConfig guards assignment notifications. SMTP server settings live in the
// database and are edited from the console.
type EmailConfig struct {
	NotifyMaxFailures int           `mapstructure:"notify_max_failures" yaml:"notify_max_failures"`
	NotifyCooldown    time.Duration `mapstructure:"notify_cooldown" yaml:"notify_cooldown"`
	SendTimeout       time.Duration `mapstructure:"send_timeout" yaml:"send_timeout"`
}

// DefaultConfig returns the configuration used when neither a file nor the environment
// overrides a value.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "intake-console",
			Environment: "development",
		},
		HTTP: HTTPConfig{
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			MaxRequestSize: 10 << 20,
		},
		Management: ManagementConfig{
			Enabled:      true,
			Port:         9090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: LogFormatJSON,
			Tracing: TracingConfig{
				Enabled:    false,
				SampleRate: 0.1,
			},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		ObjectStorage: ObjectStorageConfig{
			Managed: ManagedHostConfig{
				EnvVar:       "REPL_ID",
				SidecarURL:   "http://127.0.0.1:1106",
				ProbeTimeout: time.Second,
			},
			Local: LocalObjectStorageConfig{
				Root: "./data/uploads",
			},
			Cloud: CloudObjectStorageConfig{
				Region:           "us-east-1",
				OperationTimeout: 10 * time.Second,
				PresignExpiry:    15 * time.Minute,
			},
		},
		Auth: AuthConfig{
			Issuer:        "intake-console",
			TokenTTL:      8 * time.Hour,
			AdminUsername: "admin",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 1,
			Burst:             5,
		},
		Media: MediaConfig{
			MaxUploadBytes: 5 << 20,
		},
		Email: EmailConfig{
			NotifyMaxFailures: 3,
			NotifyCooldown:    time.Minute,
			SendTimeout:       15 * time.Second,
		},
	}
}
