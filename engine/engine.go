// Package engine ties the animation system together for a host: it owns the
// shared clock, the skeleton and clip registries, the physics world and every
// animator, and advances them all once per frame.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/milk9111/blendrig/animator"
	"github.com/milk9111/blendrig/blend"
	"github.com/milk9111/blendrig/clip"
	"github.com/milk9111/blendrig/common"
	"github.com/milk9111/blendrig/loader"
	"github.com/milk9111/blendrig/logging"
	"github.com/milk9111/blendrig/metrics"
	"github.com/milk9111/blendrig/ragdoll"
	"github.com/milk9111/blendrig/skeleton"
)

// Driver feeds an animator before it updates, e.g. a script setting
// parameters and requesting transitions.
type Driver interface {
	Drive(now, dt float32) error
}

type Options struct {
	Log     *slog.Logger
	Metrics *metrics.Collector
}

type Engine struct {
	clock     *common.Clock
	skeletons *skeleton.Registry
	clips     *clip.Library
	world     *ragdoll.World

	animators []*animator.Animator
	byName    map[string]*animator.Animator
	drivers   []Driver

	log     *slog.Logger
	metrics *metrics.Collector
}

func New(cfg Config, opts Options) *Engine {
	if opts.Log == nil {
		opts.Log = logging.NewNop()
	}
	e := &Engine{
		clock:     common.NewClock(),
		skeletons: skeleton.NewRegistry(),
		clips:     clip.NewLibrary(),
		world:     ragdoll.NewWorld(cfg.Physics, opts.Log),
		byName:    make(map[string]*animator.Animator),
		log:       opts.Log,
		metrics:   opts.Metrics,
	}
	if cfg.Ground != nil {
		e.world.CreateGround(cfg.Ground.Y, cfg.Ground.HalfWidth)
	}
	return e
}

func (e *Engine) Clock() *common.Clock          { return e.clock }
func (e *Engine) Skeletons() *skeleton.Registry { return e.skeletons }
func (e *Engine) Clips() *clip.Library          { return e.clips }
func (e *Engine) World() *ragdoll.World         { return e.world }

func (e *Engine) CreateSkeleton(name string, joints []skeleton.Joint) (*skeleton.Skeleton, error) {
	return e.skeletons.Create(name, joints)
}

// CreateClip validates a clip against sk and adds it to the library.
func (e *Engine) CreateClip(name string, sk *skeleton.Skeleton, duration float32, tracks []clip.Track) (*clip.Clip, error) {
	c, err := clip.New(name, sk, duration, tracks)
	if err != nil {
		return nil, err
	}
	if err := e.clips.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ImportModel adds the skeleton and clips of a glTF file.
func (e *Engine) ImportModel(path string) (*loader.Asset, error) {
	asset, err := loader.ImportGLTF(path, e.skeletons, e.clips)
	if err != nil {
		return nil, err
	}
	e.log.Info("engine: imported model", "path", path, "skeleton", asset.Skeleton.Name, "joints", asset.Skeleton.JointCount(), "clips", len(asset.Clips))
	for _, name := range asset.Skipped {
		e.log.Debug("engine: skipped animation without keys", "path", path, "animation", name)
	}
	return asset, nil
}

// CreateAnimator adds an animator for sk. It is updated by every Tick.
func (e *Engine) CreateAnimator(name string, sk *skeleton.Skeleton) (*animator.Animator, error) {
	if _, ok := e.byName[name]; ok {
		return nil, fmt.Errorf("engine: animator %q already exists", name)
	}
	opts := animator.Options{Name: name, Log: e.log}
	if e.metrics != nil {
		opts.Recorder = e.metrics
	}
	a := animator.New(&blend.Context{Clock: e.clock, Skeleton: sk, Clips: e.clips}, opts)
	e.animators = append(e.animators, a)
	e.byName[name] = a
	return a, nil
}

func (e *Engine) Animator(name string) (*animator.Animator, bool) {
	a, ok := e.byName[name]
	return a, ok
}

func (e *Engine) Animators() []*animator.Animator {
	return append([]*animator.Animator(nil), e.animators...)
}

// CreateRagdoll builds a ragdoll for a's skeleton in the engine's world and
// attaches it to a. A ragdoll a already had is removed from the world.
func (e *Engine) CreateRagdoll(a *animator.Animator, spec *ragdoll.Spec) (*ragdoll.Planar, error) {
	r, err := ragdoll.NewPlanar(e.world, a.Skeleton(), spec)
	if err != nil {
		return nil, err
	}
	a.AttachRagdoll(r)
	return r, nil
}

// AddDriver runs d at the start of every tick.
func (e *Engine) AddDriver(d Driver) {
	e.drivers = append(e.drivers, d)
}

// Tick advances the clock by dt, runs the drivers, steps physics and updates
// every animator, in that order. Driver errors are logged and skipped.
func (e *Engine) Tick(dt float32) {
	start := time.Now()
	e.clock.Advance(dt)

	for _, d := range e.drivers {
		if err := d.Drive(e.clock.Now(), e.clock.Delta()); err != nil {
			e.log.Warn("engine: driver failed", "error", err)
		}
	}

	e.world.Step(float64(e.clock.Delta()))

	for _, a := range e.animators {
		a.Update()
	}

	if e.metrics != nil {
		e.metrics.ObserveTick(time.Since(start))
	}
}

// Reload rebuilds a's state machine with load and then restores the values
// of parameters that still exist.
func (e *Engine) Reload(a *animator.Animator, load func(*animator.Animator) error) error {
	saved := a.Params().Values()
	if err := a.Reload(load); err != nil {
		e.log.Error("engine: reload failed", "animator", a.Name(), "error", err)
		return err
	}
	for name, v := range saved {
		if a.Params().Exists(name) {
			_ = a.Params().Set(name, v)
		}
	}
	e.log.Info("engine: reloaded", "animator", a.Name(), "states", len(a.States()), "current", a.CurrentState())
	return nil
}

// LoadStateMachine reloads a from a state machine file. A file that cannot
// be read or decoded leaves a cleared, like any other failed load.
func (e *Engine) LoadStateMachine(a *animator.Animator, path string) error {
	doc, err := loader.LoadFile(path)
	if err != nil {
		return e.Reload(a, func(*animator.Animator) error { return err })
	}
	return e.Reload(a, doc.Build)
}
