package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models taskboard.yml.
type Config struct {
	Actor struct {
		ID          string `yaml:"id"`
		DisplayName string `yaml:"display_name"`
	} `yaml:"actor"`
	Server struct {
		Addr      string `yaml:"addr"`
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"server"`
	Store struct {
		Backend string `yaml:"backend"`
		Latency string `yaml:"latency"`
		Jitter  string `yaml:"jitter"`
	} `yaml:"store"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	cfg, err := FromFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config %s not found; create it with tb init", path)
	}
	return cfg, err
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := FromFile(Path(workspace))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return cfg, err
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "", "sqlite", "memory":
	default:
		return fmt.Errorf("config.store.backend must be 'sqlite' or 'memory', got %q", c.Store.Backend)
	}
	for _, field := range []struct {
		name, value string
	}{
		{"config.server.token_ttl", c.Server.TokenTTL},
		{"config.store.latency", c.Store.Latency},
		{"config.store.jitter", c.Store.Jitter},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	return nil
}

// TokenTTL returns the configured token lifetime, defaulting to 24h.
func (c *Config) TokenTTL() time.Duration {
	return duration(c.Server.TokenTTL, 24*time.Hour)
}

// StoreLatency returns the simulated delay for the memory backend.
func (c *Config) StoreLatency() time.Duration {
	return duration(c.Store.Latency, 0)
}

// StoreJitter returns the random delay spread for the memory backend.
func (c *Config) StoreJitter() time.Duration {
	return duration(c.Store.Jitter, 0)
}

func duration(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskboard.yml")
}

// Default returns the default Config struct for an actor.
func Default(actorID string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(fmt.Sprintf(defaultTemplate, actorID)), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(actorID string) string {
	return fmt.Sprintf(defaultTemplate, actorID)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `actor:
  id: %s
  display_name: ""

server:
  addr: "127.0.0.1:8787"
  jwt_secret: ""
  token_ttl: 24h

store:
  backend: sqlite
  latency: 0s
  jitter: 0s
`
