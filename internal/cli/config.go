package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/lowercasename/eggcms/internal/log"
	"github.com/lowercasename/eggcms/internal/paths"
	"github.com/lowercasename/eggcms/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "EGGCMS"

	// defaultSchemasFile is looked up in the config directory when
	// schemas_path is not set.
	defaultSchemasFile = "schemas.yaml"
)

// Config keys.
const (
	cfgKeyDataDir        = "data_dir"
	cfgKeyPublicURL      = "public_url"
	cfgKeySchemasPath    = "schemas_path"
	cfgKeyStrictSchemas  = "strict_schemas"
	cfgKeyLogLevel       = "log_level"
	cfgKeyServerAddr     = "server.addr"
	cfgKeyWebhookURL     = "webhook.url"
	cfgKeyCommand        = "webhook.command"
	cfgKeyCommandDir     = "webhook.command_dir"
	cfgKeyDebounce       = "webhook.debounce"
	cfgKeyCommandTimeout = "webhook.command_timeout"
	cfgKeyWebhookTimeout = "webhook.timeout"
)

// defaultConfigYAML is the content written to config.yaml by init.
const defaultConfigYAML = `# eggcms configuration

# Data directory holding eggcms.db (overridable by --data-dir)
# data_dir: ./data

# Base URL prefixed to stored media paths in responses
public_url: ""

# YAML schema source; defaults to schemas.yaml next to this file.
# When it is missing the built-in schemas are used.
# schemas_path: ./schemas.yaml

# Refuse to start when the schema source exists but cannot be used
strict_schemas: false

log_level: info

server:
  addr: ":3000"

webhook:
  # POSTed a JSON event after published content changes
  url: ""
  # Shell command run after published content changes, e.g. "npm run build"
  command: ""
  command_dir: ""
  # Coalesce bursts of changes; 0 dispatches every change
  debounce: 0s
  # 0 lets the build run as long as it needs
  command_timeout: 0s
  timeout: 10s
`

func setDefaults(v *viper.Viper) {
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyPublicURL, "")
	v.SetDefault(cfgKeySchemasPath, "")
	v.SetDefault(cfgKeyStrictSchemas, false)
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyServerAddr, ":3000")
	v.SetDefault(cfgKeyWebhookURL, "")
	v.SetDefault(cfgKeyCommand, "")
	v.SetDefault(cfgKeyCommandDir, "")
	v.SetDefault(cfgKeyDebounce, "0s")
	v.SetDefault(cfgKeyCommandTimeout, "0s")
	v.SetDefault(cfgKeyWebhookTimeout, "10s")
}

// readConfig reads config.yaml from configDir using Viper. A missing
// config.yaml is not an error. The returned string is data_dir as written in
// the file, before environment overrides, so directory resolution can keep
// its own precedence.
func readConfig(configDir string) (*viper.Viper, string, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("read config: %w", err)
		}
	}
	fileDataDir := v.GetString(cfgKeyDataDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, fileDataDir, nil
}

// loadConfig resolves the config directory, reads and validates the
// configuration, and applies the log level.
func loadConfig() (types.Config, string, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, "", sysError("resolve config dir: %w", err)
	}

	v, fileDataDir, err := readConfig(configDir)
	if err != nil {
		return types.Config{}, "", userError("%w", err)
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, "", userError("decode config: %w", err)
	}

	cfg.DataDir, err = paths.ResolveDataDir(flags.dataDir, fileDataDir)
	if err != nil {
		return types.Config{}, "", sysError("resolve data dir: %w", err)
	}
	cfg.SchemasPath = resolveSchemasPath(configDir, cfg.SchemasPath)

	if err := cfg.Validate(); err != nil {
		return types.Config{}, "", userError("invalid config: %w", err)
	}

	log.SetLevel(cfg.LogLevel)
	if flags.debug {
		log.SetDebugMode()
	}
	return cfg, configDir, nil
}

// resolveSchemasPath makes a relative schemas path relative to the config
// directory and defaults to schemas.yaml there.
func resolveSchemasPath(configDir, p string) string {
	if p == "" {
		return filepath.Join(configDir, defaultSchemasFile)
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(configDir, p)
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory. It reports whether a file was written.
func ensureDefaultConfigFile(configDir string) (bool, error) {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
