package config

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// Validate checks the configuration for values the console cannot start with.
// Requirements that only apply when a component is used (database URL, signing key,
// cloud bucket) are checked by that component at construction time instead.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Service.Name) == "" {
		return fmt.Errorf("service.name is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Management.Enabled {
		if c.Management.Port <= 0 || c.Management.Port > 65535 {
			return fmt.Errorf("management.port must be between 1 and 65535, got %d", c.Management.Port)
		}
		if c.Management.Port == c.HTTP.Port {
			return fmt.Errorf("management.port must differ from http.port")
		}
	}

	switch strings.ToLower(c.Observability.LogFormat) {
	case LogFormatJSON, LogFormatText, "console":
	default:
		return fmt.Errorf("observability.log_format must be json or text, got %q", c.Observability.LogFormat)
	}
	if c.Observability.Tracing.Enabled {
		if strings.TrimSpace(c.Observability.Tracing.Endpoint) == "" {
			return fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled")
		}
		if c.Observability.Tracing.SampleRate < 0 || c.Observability.Tracing.SampleRate > 1 {
			return fmt.Errorf("observability.tracing.sample_rate must be between 0 and 1")
		}
	}

	managed := c.ObjectStorage.Managed
	if strings.TrimSpace(managed.EnvVar) == "" {
		return fmt.Errorf("object_storage.managed.env_var is required")
	}
	if _, err := url.ParseRequestURI(managed.SidecarURL); err != nil {
		return fmt.Errorf("object_storage.managed.sidecar_url is invalid: %w", err)
	}
	if managed.ProbeTimeout <= 0 {
		return fmt.Errorf("object_storage.managed.probe_timeout must be positive")
	}
	if strings.TrimSpace(c.ObjectStorage.Local.Root) == "" {
		return fmt.Errorf("object_storage.local.root is required")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate_limit.requests_per_second and rate_limit.burst must be positive when enabled")
	}
	if c.Media.MaxUploadBytes <= 0 {
		return fmt.Errorf("media.max_upload_bytes must be positive")
	}
	if c.Email.NotifyMaxFailures <= 0 || c.Email.NotifyCooldown <= 0 || c.Email.SendTimeout <= 0 {
		return fmt.Errorf("email.notify_max_failures, email.notify_cooldown and email.send_timeout must be positive")
	}
	return nil
}

// Redacted returns the configuration as a nested map keyed by mapstructure names,
// with every field tagged secret:"true" masked when set.
func (c *Config) Redacted() map[string]any {
	return redactStruct(reflect.ValueOf(c).Elem())
}

func redactStruct(v reflect.Value) map[string]any {
	out := make(map[string]any, v.NumField())
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		if !value.CanInterface() {
			continue
		}
		name := field.Name
		if tag := field.Tag.Get("mapstructure"); tag != "" && tag != "-" {
			name = tag
		}
		switch {
		case value.Kind() == reflect.Struct:
			out[name] = redactStruct(value)
		case field.Tag.Get("secret") == "true" && !value.IsZero():
			out[name] = "***"
		case value.Type().String() == "time.Duration":
			out[name] = fmt.Sprint(value.Interface())
		default:
			out[name] = value.Interface()
		}
	}
	return out
}
