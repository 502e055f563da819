package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load
const EnvPrefix = "FLOWTRAIN_"

// ConfigPathEnv names the environment variable holding an optional YAML config file
const ConfigPathEnv = "FLOWTRAIN_CONFIG"

// Config holds the process configuration
type Config struct {
	// Database (optional run registry)
	DatabaseURL string `koanf:"database_url"`

	// Server
	ServerPort string `koanf:"server_port"`

	// Filesystem root under which save_model directories are created
	OutputRoot string `koanf:"output_root"`

	// AWS (optional artifact offload)
	AWSRegion      string `koanf:"aws_region"`
	ArtifactBucket string `koanf:"artifact_bucket"`

	// debug | info | warn | error
	LogLevel string `koanf:"log_level"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		ServerPort: "8080",
		OutputRoot: "outputs",
		AWSRegion:  "us-east-1",
		LogLevel:   "info",
	}
}

// Load loads configuration from defaults, the file named by FLOWTRAIN_CONFIG
// (if set) and FLOWTRAIN_* environment variables, in that order
func Load() (*Config, error) {
	var fileProvider koanf.Provider
	if path := os.Getenv(ConfigPathEnv); path != "" {
		fileProvider = file.Provider(path)
	}
	return LoadFrom(fileProvider)
}

// LoadFrom is Load with an explicit YAML provider; a nil provider skips the file layer
func LoadFrom(provider koanf.Provider) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if provider != nil {
		if err := k.Load(provider, yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// RegistryEnabled reports whether runs should be recorded in the database
func (c *Config) RegistryEnabled() bool {
	return c.DatabaseURL != ""
}

// OffloadEnabled reports whether checkpoints should be copied to object storage
func (c *Config) OffloadEnabled() bool {
	return c.ArtifactBucket != ""
}
