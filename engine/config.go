package engine

import (
	"fmt"
	"os"

	"github.com/milk9111/blendrig/ragdoll"
	"gopkg.in/yaml.v3"
)

// Config holds engine settings. The physics keys sit at the top level of
// the document.
type Config struct {
	Physics  ragdoll.WorldConfig `yaml:",inline"`
	Ground   *GroundConfig       `yaml:"ground"`
	LogLevel string              `yaml:"log_level"`
}

// GroundConfig adds a static floor to the physics world.
type GroundConfig struct {
	Y         float64 `yaml:"y"`
	HalfWidth float64 `yaml:"half_width"`
}

func DefaultConfig() Config {
	return Config{
		Physics: ragdoll.WorldConfig{
			FixedStep:  ragdoll.DefaultFixedStep,
			Gravity:    ragdoll.DefaultGravity,
			Iterations: ragdoll.DefaultIterations,
		},
		LogLevel: "info",
	}
}

// ParseConfig decodes data over DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: unmarshal config: %w", err)
	}
	if cfg.Ground != nil && cfg.Ground.HalfWidth <= 0 {
		cfg.Ground.HalfWidth = 50
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config %s: %w", path, err)
	}
	return ParseConfig(data)
}
