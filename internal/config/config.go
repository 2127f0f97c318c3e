package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/behaviour/internal/core/observability/log"
)

// Config drives the btrun command: which template to load, how many agents
// to spawn from it and how they are ticked.
type Config struct {
	LogLevel     string         `yaml:"log_level"`
	Template     string         `yaml:"template"`
	Agents       int            `yaml:"agents"`
	Workers      int            `yaml:"workers"`
	TickInterval time.Duration  `yaml:"tick_interval"`
	Rounds       int            `yaml:"rounds"`
	HTTPAddr     string         `yaml:"http_addr"`
	Blackboard   map[string]any `yaml:"blackboard,omitempty"`
	Cooldowns    Cooldowns      `yaml:"cooldowns"`
}

// Cooldowns selects where agents keep their tagged cooldowns. The memory
// backend gives every agent a private in-process handler; the redis backend
// shares one server with a key prefix per agent.
type Cooldowns struct {
	Backend  string        `yaml:"backend"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	Timeout  time.Duration `yaml:"timeout"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

func Default() Config {
	return Config{
		LogLevel:     "info",
		Agents:       1,
		TickInterval: 100 * time.Millisecond,
		Cooldowns: Cooldowns{
			Backend: BackendMemory,
			Addr:    "localhost:6379",
			Prefix:  "bt:cooldown:",
			Timeout: time.Second,
		},
	}
}

// envVarRe matches ${VAR} and ${VAR:default}.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a YAML config on top of Default. Environment references are
// substituted before parsing and unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	resolved := envVarRe.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envVarRe.FindSubmatch(match)
		if v := os.Getenv(string(parts[1])); v != "" {
			return []byte(v)
		}
		return parts[2]
	})

	dec := yaml.NewDecoder(bytes.NewReader(resolved))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Agents < 1 {
		errs = append(errs, fmt.Errorf("agents must be at least 1, got %d", c.Agents))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval))
	}
	if c.Rounds < 0 {
		errs = append(errs, fmt.Errorf("rounds must not be negative, got %d", c.Rounds))
	}
	switch c.Cooldowns.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cooldowns.Addr == "" {
			errs = append(errs, errors.New("cooldowns.addr is required for the redis backend"))
		}
		if c.Cooldowns.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("cooldowns.timeout must be positive, got %s", c.Cooldowns.Timeout))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cooldowns.backend %q", c.Cooldowns.Backend))
	}
	return errors.Join(errs...)
}
