package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

var (
	MaxEvents  = 64
	Priorities = 1
	LogLevel   = "info"
	Metrics    = false
)

// Config is the on-disk form of the package defaults above.
type Config struct {
	// Upper bound on descriptors reported by a single poll.
	MaxEvents  int    `toml:"max_events" validate:"gte=1,lte=65536"`
	Priorities int    `toml:"priorities" validate:"gte=1,lte=256"`
	LogLevel   string `toml:"log_level" validate:"oneof=debug info warn error"`
	Metrics    bool   `toml:"metrics"`
}

var validate = validator.New()

func Default() Config {
	return Config{
		MaxEvents:  MaxEvents,
		Priorities: Priorities,
		LogLevel:   LogLevel,
		Metrics:    Metrics,
	}
}

// Load reads a TOML file. Keys missing from the file keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	return validate.Struct(c)
}

// Apply publishes c as the package defaults.
func (c Config) Apply() {
	MaxEvents = c.MaxEvents
	Priorities = c.Priorities
	LogLevel = c.LogLevel
	Metrics = c.Metrics
}
