package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix is used when the loader is created without a prefix.
const DefaultEnvPrefix = "INTAKE"

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
}

// ViperLoader implements Loader using Viper.
type ViperLoader struct {
	configFile string
	envPrefix  string
}

// NewViperLoader creates a new ViperLoader.
// configFile is optional; envPrefix defaults to INTAKE.
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: strings.TrimSpace(configFile),
		envPrefix:  strings.TrimSpace(envPrefix),
	}
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()
	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested keys.
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	bindings := map[string]string{
		"service.name":        "SERVICE_NAME",
		"service.environment": "SERVICE_ENVIRONMENT",

		"http.port":             "HTTP_PORT",
		"http.read_timeout":     "HTTP_READ_TIMEOUT",
		"http.write_timeout":    "HTTP_WRITE_TIMEOUT",
		"http.idle_timeout":     "HTTP_IDLE_TIMEOUT",
		"http.max_request_size": "HTTP_MAX_REQUEST_SIZE",

		"management.enabled":       "MGMT_ENABLED",
		"management.port":          "MGMT_PORT",
		"management.read_timeout":  "MGMT_READ_TIMEOUT",
		"management.write_timeout": "MGMT_WRITE_TIMEOUT",

		"observability.log_level":           "LOG_LEVEL",
		"observability.log_format":          "LOG_FORMAT",
		"observability.tracing.enabled":     "TRACING_ENABLED",
		"observability.tracing.endpoint":    "TRACING_ENDPOINT",
		"observability.tracing.sample_rate": "TRACING_SAMPLE_RATE",

		"database.url":                "DB_URL",
		"database.max_open_conns":     "DB_MAX_OPEN_CONNS",
		"database.max_idle_conns":     "DB_MAX_IDLE_CONNS",
		"database.conn_max_lifetime":  "DB_CONN_MAX_LIFETIME",
		"database.conn_max_idle_time": "DB_CONN_MAX_IDLE_TIME",
		"database.query_timeout":      "DB_QUERY_TIMEOUT",

		"object_storage.managed.env_var":           "STORAGE_MANAGED_ENV_VAR",
		"object_storage.managed.sidecar_url":       "STORAGE_SIDECAR_URL",
		"object_storage.managed.probe_timeout":     "STORAGE_SIDECAR_PROBE_TIMEOUT",
		"object_storage.local.root":                "STORAGE_LOCAL_ROOT",
		"object_storage.cloud.bucket":              "STORAGE_CLOUD_BUCKET",
		"object_storage.cloud.region":              "STORAGE_CLOUD_REGION",
		"object_storage.cloud.endpoint":            "STORAGE_CLOUD_ENDPOINT",
		"object_storage.cloud.prefix":              "STORAGE_CLOUD_PREFIX",
		"object_storage.cloud.access_key_id":       "STORAGE_CLOUD_ACCESS_KEY_ID",
		"object_storage.cloud.secret_access_key":   "STORAGE_CLOUD_SECRET_ACCESS_KEY",
		"object_storage.cloud.session_token":       "STORAGE_CLOUD_SESSION_TOKEN",
		"object_storage.cloud.use_path_style":      "STORAGE_CLOUD_USE_PATH_STYLE",
		"object_storage.cloud.sidecar_credentials": "STORAGE_CLOUD_SIDECAR_CREDENTIALS",
		"object_storage.cloud.operation_timeout":   "STORAGE_CLOUD_OPERATION_TIMEOUT",
		"object_storage.cloud.presign_expiry":      "STORAGE_CLOUD_PRESIGN_EXPIRY",

		"auth.issuer":              "AUTH_ISSUER",
		"auth.signing_key":         "AUTH_SIGNING_KEY",
		"auth.token_ttl":           "AUTH_TOKEN_TTL",
		"auth.admin_username":      "AUTH_ADMIN_USERNAME",
		"auth.admin_password_hash": "AUTH_ADMIN_PASSWORD_HASH",

		"rate_limit.enabled":             "RATE_LIMIT_ENABLED",
		"rate_limit.requests_per_second": "RATE_LIMIT_REQUESTS_PER_SECOND",
		"rate_limit.burst":               "RATE_LIMIT_BURST",

		"media.max_upload_bytes":   "MEDIA_MAX_UPLOAD_BYTES",
		"media.redirect_presigned": "MEDIA_REDIRECT_PRESIGNED",

		"email.notify_max_failures": "EMAIL_NOTIFY_MAX_FAILURES",
		"email.notify_cooldown":     "EMAIL_NOTIFY_COOLDOWN",
		"email.send_timeout":        "EMAIL_SEND_TIMEOUT",
	}
	for key, suffix := range bindings {
		_ = v.BindEnv(key, l.prefixedEnv(suffix))
	}
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := l.envPrefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.max_request_size", cfg.HTTP.MaxRequestSize)

	v.SetDefault("management.enabled", cfg.Management.Enabled)
	v.SetDefault("management.port", cfg.Management.Port)
	v.SetDefault("management.read_timeout", cfg.Management.ReadTimeout)
	v.SetDefault("management.write_timeout", cfg.Management.WriteTimeout)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.tracing.enabled", cfg.Observability.Tracing.Enabled)
	v.SetDefault("observability.tracing.endpoint", cfg.Observability.Tracing.Endpoint)
	v.SetDefault("observability.tracing.sample_rate", cfg.Observability.Tracing.SampleRate)

	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", cfg.Database.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", cfg.Database.ConnMaxIdleTime)
	v.SetDefault("database.query_timeout", cfg.Database.QueryTimeout)

	v.SetDefault("object_storage.managed.env_var", cfg.ObjectStorage.Managed.EnvVar)
	v.SetDefault("object_storage.managed.sidecar_url", cfg.ObjectStorage.Managed.SidecarURL)
	v.SetDefault("object_storage.managed.probe_timeout", cfg.ObjectStorage.Managed.ProbeTimeout)
	v.SetDefault("object_storage.local.root", cfg.ObjectStorage.Local.Root)
	v.SetDefault("object_storage.cloud.bucket", cfg.ObjectStorage.Cloud.Bucket)
	v.SetDefault("object_storage.cloud.region", cfg.ObjectStorage.Cloud.Region)
	v.SetDefault("object_storage.cloud.endpoint", cfg.ObjectStorage.Cloud.Endpoint)
	v.SetDefault("object_storage.cloud.prefix", cfg.ObjectStorage.Cloud.Prefix)
	v.SetDefault("object_storage.cloud.access_key_id", cfg.ObjectStorage.Cloud.AccessKeyID)
	v.SetDefault("object_storage.cloud.secret_access_key", cfg.ObjectStorage.Cloud.SecretAccessKey)
	v.SetDefault("object_storage.cloud.session_token", cfg.ObjectStorage.Cloud.SessionToken)
	v.SetDefault("object_storage.cloud.use_path_style", cfg.ObjectStorage.Cloud.UsePathStyle)
	v.SetDefault("object_storage.cloud.sidecar_credentials", cfg.ObjectStorage.Cloud.SidecarCredentials)
	v.SetDefault("object_storage.cloud.operation_timeout", cfg.ObjectStorage.Cloud.OperationTimeout)
	v.SetDefault("object_storage.cloud.presign_expiry", cfg.ObjectStorage.Cloud.PresignExpiry)

	v.SetDefault("auth.issuer", cfg.Auth.Issuer)
	v.SetDefault("auth.signing_key", cfg.Auth.SigningKey)
	v.SetDefault("auth.token_ttl", cfg.Auth.TokenTTL)
	v.SetDefault("auth.admin_username", cfg.Auth.AdminUsername)
	v.SetDefault("auth.admin_password_hash", cfg.Auth.AdminPasswordHash)

	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests_per_second", cfg.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", cfg.RateLimit.Burst)

	v.SetDefault("media.max_upload_bytes", cfg.Media.MaxUploadBytes)
	v.SetDefault("media.redirect_presigned", cfg.Media.RedirectPresigned)

	v.SetDefault("email.notify_max_failures", cfg.Email.NotifyMaxFailures)
	v.SetDefault("email.notify_cooldown", cfg.Email.NotifyCooldown)
	v.SetDefault("email.send_timeout", cfg.Email.SendTimeout)
}
