package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Task kinds a boot process may run.
const (
	TaskIdle  = "idle"
	TaskPing  = "ping"
	TaskPong  = "pong"
	TaskSleep = "sleep"
)

// Bus backends.
const (
	BusMemory = "memory"
	BusRedis  = "redis"
)

// Config holds the kernel host configuration.
type Config struct {
	Bus      BusConfig      `mapstructure:"bus" yaml:"bus"`
	Memory   MemoryConfig   `mapstructure:"memory" yaml:"memory"`
	Headless HeadlessConfig `mapstructure:"headless" yaml:"headless"`
	Boot     []ProcessSpec  `mapstructure:"boot" yaml:"boot"`
}

// BusConfig selects the message bus backend.
type BusConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend"`
	Redis   RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig holds settings for the redis bus backend.
type RedisConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Timeout   string `mapstructure:"timeout" yaml:"timeout"`
}

// TimeoutDuration parses Timeout. Validate rejects values this cannot parse.
func (r RedisConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// MemoryConfig sizes the region allocator arena.
type MemoryConfig struct {
	Arena uint64 `mapstructure:"arena" yaml:"arena"`
}

// HeadlessConfig controls the host run loop.
type HeadlessConfig struct {
	Hz         int    `mapstructure:"hz" yaml:"hz"`
	Ticks      uint64 `mapstructure:"ticks" yaml:"ticks"`
	StepBudget int    `mapstructure:"step_budget" yaml:"step_budget"`
	Virtual    bool   `mapstructure:"virtual" yaml:"virtual"`
}

// ProcessSpec is one entry of the boot manifest. Each task runs on its own thread.
type ProcessSpec struct {
	Name  string   `mapstructure:"name" yaml:"name"`
	Tasks []string `mapstructure:"tasks" yaml:"tasks"`
	// Peer names the process ping tasks send to.
	Peer string `mapstructure:"peer" yaml:"peer,omitempty"`
	// Sleep is the period of sleep tasks.
	Sleep string `mapstructure:"sleep" yaml:"sleep,omitempty"`
}

// SleepDuration parses Sleep, defaulting to 100ms.
func (p ProcessSpec) SleepDuration() time.Duration {
	d, err := time.ParseDuration(p.Sleep)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// DefaultBoot is the manifest used when no config file names one.
func DefaultBoot() []ProcessSpec {
	return []ProcessSpec{
		{Name: "init", Tasks: []string{TaskIdle}},
		{Name: "ping", Tasks: []string{TaskPing}, Peer: "pong"},
		{Name: "pong", Tasks: []string{TaskPong}},
		{Name: "sleeper", Tasks: []string{TaskSleep}, Sleep: "250ms"},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Bus: BusConfig{
			Backend: BusMemory,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				Namespace: "bruna",
				Timeout:   "2s",
			},
		},
		Memory:   MemoryConfig{Arena: 64 * 1024},
		Headless: HeadlessConfig{Hz: 60, Ticks: 0, StepBudget: 4},
		Boot:     DefaultBoot(),
	}
}

// Load reads configuration from path, BRUNA_CONFIG, or ~/.config/bruna/config.yaml,
// in that order. Env var overrides use prefix BRUNA_. A missing file is only an
// error when it was named explicitly.
func Load(path string) (Config, error) {
	def := Default()
	v := viper.New()

	v.SetDefault("bus.backend", def.Bus.Backend)
	v.SetDefault("bus.redis.addr", def.Bus.Redis.Addr)
	v.SetDefault("bus.redis.namespace", def.Bus.Redis.Namespace)
	v.SetDefault("bus.redis.timeout", def.Bus.Redis.Timeout)
	v.SetDefault("memory.arena", def.Memory.Arena)
	v.SetDefault("headless.hz", def.Headless.Hz)
	v.SetDefault("headless.ticks", def.Headless.Ticks)
	v.SetDefault("headless.step_budget", def.Headless.StepBudget)
	v.SetDefault("headless.virtual", def.Headless.Virtual)

	v.SetConfigType("yaml")

	if path == "" {
		path = os.Getenv("BRUNA_CONFIG")
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "bruna"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("BRUNA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(c.Boot) == 0 {
		c.Boot = DefaultBoot()
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration for values the kernel host cannot run with.
func (c Config) Validate() error {
	switch c.Bus.Backend {
	case BusMemory:
	case BusRedis:
		if c.Bus.Redis.Addr == "" {
			return errors.New("config: bus.redis.addr is required for the redis backend")
		}
		if c.Bus.Redis.Namespace == "" {
			return errors.New("config: bus.redis.namespace is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown bus backend %q", c.Bus.Backend)
	}
	if d, err := time.ParseDuration(c.Bus.Redis.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("config: invalid bus.redis.timeout %q", c.Bus.Redis.Timeout)
	}
	if c.Memory.Arena == 0 {
		return errors.New("config: memory.arena must be positive")
	}
	if c.Headless.Hz <= 0 {
		return fmt.Errorf("config: invalid headless.hz %d", c.Headless.Hz)
	}
	if c.Headless.StepBudget <= 0 {
		return fmt.Errorf("config: invalid headless.step_budget %d", c.Headless.StepBudget)
	}

	names := make(map[string]bool, len(c.Boot))
	for _, p := range c.Boot {
		if p.Name == "" {
			return errors.New("config: boot process without a name")
		}
		if names[p.Name] {
			return fmt.Errorf("config: duplicate boot process %q", p.Name)
		}
		names[p.Name] = true
	}
	for _, p := range c.Boot {
		for _, task := range p.Tasks {
			switch task {
			case TaskIdle, TaskPong, TaskSleep:
			case TaskPing:
				if !names[p.Peer] {
					return fmt.Errorf("config: process %q pings unknown peer %q", p.Name, p.Peer)
				}
			default:
				return fmt.Errorf("config: process %q has unknown task %q", p.Name, task)
			}
		}
		if p.Sleep != "" {
			if _, err := time.ParseDuration(p.Sleep); err != nil {
				return fmt.Errorf("config: process %q: invalid sleep %q", p.Name, p.Sleep)
			}
		}
	}
	return nil
}

// Render returns the configuration as YAML.
func (c Config) Render() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return out, nil
}
