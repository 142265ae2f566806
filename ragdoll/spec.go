package ragdoll

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrEmptySpec = errors.New("ragdoll: spec has no bodies")

// Spec describes the bodies of a planar ragdoll.
type Spec struct {
	Name     string     `yaml:"name"`
	Friction float64    `yaml:"friction"`
	Bodies   []BodySpec `yaml:"bodies"`
}

// BodySpec attaches one box body to a joint. Offset places the box centre in
// the joint's local frame.
type BodySpec struct {
	Joint  string     `yaml:"joint"`
	Mass   float64    `yaml:"mass"`
	Width  float64    `yaml:"width"`
	Height float64    `yaml:"height"`
	Offset [3]float32 `yaml:"offset"`
}

func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("ragdoll: unmarshal spec: %w", err)
	}
	if len(spec.Bodies) == 0 {
		return nil, ErrEmptySpec
	}
	for i := range spec.Bodies {
		b := &spec.Bodies[i]
		if b.Mass <= 0 {
			b.Mass = 1
		}
		if b.Width <= 0 {
			b.Width = 0.1
		}
		if b.Height <= 0 {
			b.Height = 0.1
		}
	}
	if spec.Friction <= 0 {
		spec.Friction = 0.8
	}
	return &spec, nil
}

func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ragdoll: load %s: %w", path, err)
	}
	spec, err := ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("ragdoll: %s: %w", path, err)
	}
	return spec, nil
}
