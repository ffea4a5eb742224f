package types

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds everything the engine reads once at startup.
type Config struct {
	DataDir       string        `mapstructure:"data_dir" yaml:"data_dir"`
	PublicURL     string        `mapstructure:"public_url" yaml:"public_url"`
	SchemasPath   string        `mapstructure:"schemas_path" yaml:"schemas_path"`
	StrictSchemas bool          `mapstructure:"strict_schemas" yaml:"strict_schemas"`
	LogLevel      string        `mapstructure:"log_level" yaml:"log_level"`
	Server        ServerConfig  `mapstructure:"server" yaml:"server"`
	Webhook       WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// WebhookConfig configures change notification. Either sink may be left
// empty; with both empty notifications are disabled.
type WebhookConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	Command        string        `mapstructure:"command" yaml:"command"`
	CommandDir     string        `mapstructure:"command_dir" yaml:"command_dir"`
	Debounce       time.Duration `mapstructure:"debounce" yaml:"debounce"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Enabled reports whether any notification sink is configured.
func (w WebhookConfig) Enabled() bool {
	return w.URL != "" || w.Command != ""
}

// Config validation errors.
var (
	ErrPublicURLInvalid  = errors.New("public_url must be an absolute http(s) URL")
	ErrWebhookURLInvalid = errors.New("webhook.url must be an absolute http(s) URL")
	ErrDebounceNegative  = errors.New("webhook.debounce must not be negative")
	ErrTimeoutNegative   = errors.New("webhook timeouts must not be negative")
	ErrLogLevelUnknown   = errors.New("unknown log level")
)

var knownLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.PublicURL != "" && !isHTTPURL(c.PublicURL) {
		return fmt.Errorf("%w: %q", ErrPublicURLInvalid, c.PublicURL)
	}
	if c.Webhook.URL != "" && !isHTTPURL(c.Webhook.URL) {
		return fmt.Errorf("%w: %q", ErrWebhookURLInvalid, c.Webhook.URL)
	}
	if c.Webhook.Debounce < 0 {
		return ErrDebounceNegative
	}
	if c.Webhook.CommandTimeout < 0 || c.Webhook.Timeout < 0 {
		return ErrTimeoutNegative
	}
	if !knownLogLevels[c.LogLevel] {
		return fmt.Errorf("%w: %q", ErrLogLevelUnknown, c.LogLevel)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
