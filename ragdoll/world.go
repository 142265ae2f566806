package ragdoll

import (
	"log/slog"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/blendrig/logging"
)

const (
	DefaultFixedStep  = 1.0 / 60.0
	DefaultGravity    = -9.8
	DefaultIterations = 20

	// maxSubSteps bounds the catch-up work done by one Step call.
	maxSubSteps = 8
)

// WorldConfig configures the shared physics space.
type WorldConfig struct {
	FixedStep  float64 `yaml:"fixed_step"`
	Gravity    float64 `yaml:"gravity"`
	Iterations int     `yaml:"space_iterations"`
}

func (c WorldConfig) withDefaults() WorldConfig {
	if c.FixedStep <= 0 {
		c.FixedStep = DefaultFixedStep
	}
	if c.Gravity == 0 {
		c.Gravity = DefaultGravity
	}
	if c.Iterations <= 0 {
		c.Iterations = DefaultIterations
	}
	return c
}

// World owns the Chipmunk space every ragdoll simulates in and steps it at a
// fixed rate regardless of the frame delta.
type World struct {
	space     *cp.Space
	fixedStep float64
	accum     float64
	ground    *cp.Shape
	nextGroup uint
	log       *slog.Logger
}

func NewWorld(cfg WorldConfig, log *slog.Logger) *World {
	if log == nil {
		log = logging.NewNop()
	}
	cfg = cfg.withDefaults()

	space := cp.NewSpace()
	space.Iterations = uint(cfg.Iterations)
	space.SetGravity(cp.Vector{X: 0, Y: cfg.Gravity})

	return &World{
		space:     space,
		fixedStep: cfg.FixedStep,
		log:       log,
	}
}

// Space returns the underlying Chipmunk space.
func (w *World) Space() *cp.Space {
	if w == nil {
		return nil
	}
	return w.space
}

func (w *World) FixedStep() float64 {
	if w == nil {
		return DefaultFixedStep
	}
	return w.fixedStep
}

// Step accumulates dt and runs whole fixed steps. It returns how many steps ran.
func (w *World) Step(dt float64) int {
	if w == nil || w.space == nil || dt <= 0 {
		return 0
	}
	w.accum += dt
	steps := 0
	for w.accum >= w.fixedStep && steps < maxSubSteps {
		w.space.Step(w.fixedStep)
		w.accum -= w.fixedStep
		steps++
	}
	if steps == maxSubSteps && w.accum >= w.fixedStep {
		w.log.Debug("ragdoll: dropping physics backlog", "seconds", w.accum)
		w.accum = 0
	}
	return steps
}

// CreateGround adds a static floor segment at height y spanning [-halfWidth, halfWidth].
func (w *World) CreateGround(y, halfWidth float64) {
	if w == nil || w.space == nil {
		return
	}
	if w.ground != nil {
		w.space.RemoveShape(w.ground)
	}
	shape := cp.NewSegment(w.space.StaticBody, cp.Vector{X: -halfWidth, Y: y}, cp.Vector{X: halfWidth, Y: y}, 0.05)
	shape.SetFriction(0.9)
	w.space.AddShape(shape)
	w.ground = shape
}

// newGroup returns a collision group unique to one ragdoll so its own bodies
// never collide with each other.
func (w *World) newGroup() uint {
	w.nextGroup++
	return w.nextGroup
}
