package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/blendrig/animator"
	"github.com/milk9111/blendrig/clip"
	"github.com/milk9111/blendrig/metrics"
	"github.com/milk9111/blendrig/ragdoll"
	"github.com/milk9111/blendrig/skeleton"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const machine = `
param:
  - name: speed
    value: 0.5
state:
  - name: locomotion
    tree:
      type: linearBlend
      scaleClips: false
      observer: [{name: alpha, param: speed}]
      input:
        - {type: clipSample, clip: idle, looping: true}
        - {type: clipSample, clip: walk, looping: true}
`

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		expect func(t *testing.T, cfg Config)
	}{
		{
			name: "defaults",
			src:  "",
			expect: func(t *testing.T, cfg Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "overrides",
			src:  "fixed_step: 0.01\ngravity: -20\nspace_iterations: 5\nlog_level: debug\n",
			expect: func(t *testing.T, cfg Config) {
				assert.Equal(t, 0.01, cfg.Physics.FixedStep)
				assert.Equal(t, -20.0, cfg.Physics.Gravity)
				assert.Equal(t, 5, cfg.Physics.Iterations)
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Nil(t, cfg.Ground)
			},
		},
		{
			name: "ground_default_width",
			src:  "ground:\n  y: -1\n",
			expect: func(t *testing.T, cfg Config) {
				require.NotNil(t, cfg.Ground)
				assert.Equal(t, -1.0, cfg.Ground.Y)
				assert.Equal(t, 50.0, cfg.Ground.HalfWidth)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.src))
			require.NoError(t, err)
			tt.expect(t, cfg)
		})
	}

	_, err := ParseConfig([]byte("gravity: [1"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gravity: -3\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, -3.0, cfg.Physics.Gravity)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type rig struct {
	eng  *Engine
	sk   *skeleton.Skeleton
	hero *animator.Animator
	path string
}

func newRig(t *testing.T, opts Options) *rig {
	t.Helper()
	e := New(DefaultConfig(), opts)
	sk, err := e.CreateSkeleton("hero", []skeleton.Joint{{Name: "root", Parent: -1, InvBindPose: mgl32.Ident4()}})
	require.NoError(t, err)
	for _, c := range []struct {
		name string
		x    float32
	}{{"idle", 0}, {"walk", 2}} {
		_, err := e.CreateClip(c.name, sk, 1, []clip.Track{{
			Positions: []clip.PositionKey{{Time: 0, Value: mgl32.Vec3{c.x, 0, 0}}},
		}})
		require.NoError(t, err)
	}
	hero, err := e.CreateAnimator("hero", sk)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "hero.yaml")
	require.NoError(t, os.WriteFile(path, []byte(machine), 0o644))
	return &rig{eng: e, sk: sk, hero: hero, path: path}
}

func TestEngineRegistries(t *testing.T) {
	r := newRig(t, Options{})

	_, err := r.eng.CreateClip("idle", r.sk, 1, []clip.Track{{}})
	assert.ErrorIs(t, err, clip.ErrDuplicate)
	_, err = r.eng.CreateAnimator("hero", r.sk)
	assert.Error(t, err)

	got, ok := r.eng.Animator("hero")
	require.True(t, ok)
	assert.Same(t, r.hero, got)
	assert.Len(t, r.eng.Animators(), 1)
	assert.Equal(t, []string{"idle", "walk"}, r.eng.Clips().Names())
}

func TestTickUpdatesAnimators(t *testing.T) {
	r := newRig(t, Options{})
	require.NoError(t, r.eng.LoadStateMachine(r.hero, r.path))

	r.eng.Tick(0.1)
	assert.Equal(t, uint64(1), r.eng.Clock().TickIndex())
	assert.InDelta(t, 1.0, r.hero.Pose().Local[0].Position[0], 1e-5)
}

func TestReloadRestoresParams(t *testing.T) {
	r := newRig(t, Options{})
	require.NoError(t, r.eng.LoadStateMachine(r.hero, r.path))
	require.NoError(t, r.hero.Params().Set("speed", 1))

	require.NoError(t, r.eng.LoadStateMachine(r.hero, r.path))
	v, err := r.hero.Params().Get("speed")
	require.NoError(t, err)
	assert.Equal(t, float32(1), v)

	r.eng.Tick(0.1)
	assert.InDelta(t, 2.0, r.hero.Pose().Local[0].Position[0], 1e-5)
}

func TestFailedLoadClears(t *testing.T) {
	r := newRig(t, Options{})
	require.NoError(t, r.eng.LoadStateMachine(r.hero, r.path))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("state: [{name: x}]\n"), 0o644))
	assert.Error(t, r.eng.LoadStateMachine(r.hero, bad))
	assert.Empty(t, r.hero.States())

	assert.Error(t, r.eng.LoadStateMachine(r.hero, filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Empty(t, r.hero.States())
}

type recordingDriver struct {
	calls []float32
	err   error
}

func (d *recordingDriver) Drive(now, dt float32) error {
	d.calls = append(d.calls, now)
	return d.err
}

func TestDriversRunEachTick(t *testing.T) {
	r := newRig(t, Options{})
	ok := &recordingDriver{}
	failing := &recordingDriver{err: errors.New("boom")}
	r.eng.AddDriver(failing)
	r.eng.AddDriver(ok)

	r.eng.Tick(0.5)
	r.eng.Tick(0.25)
	assert.Equal(t, []float32{0.5, 0.75}, ok.calls)
	assert.Len(t, failing.calls, 2)
}

func TestTickRecordsMetrics(t *testing.T) {
	c := metrics.New()
	r := newRig(t, Options{Metrics: c})
	require.NoError(t, r.eng.LoadStateMachine(r.hero, r.path))

	r.eng.Tick(0.1)
	r.eng.Tick(0.1)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Ticks.WithLabelValues("hero")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.EngineTickTime))
}

func TestCreateRagdoll(t *testing.T) {
	r := newRig(t, Options{})
	spec, err := ragdoll.ParseSpec([]byte("bodies:\n  - joint: root\n    width: 0.2\n    height: 0.4\n"))
	require.NoError(t, err)

	rd, err := r.eng.CreateRagdoll(r.hero, spec)
	require.NoError(t, err)
	assert.Same(t, rd, r.hero.Ragdoll())
	assert.Equal(t, 1, rd.BodyCount())

	_, err = r.eng.CreateRagdoll(r.hero, &ragdoll.Spec{Bodies: []ragdoll.BodySpec{{Joint: "tail"}}})
	assert.ErrorIs(t, err, ragdoll.ErrUnknownJoint)
}

func TestCreateRagdollReplacesPrevious(t *testing.T) {
	r := newRig(t, Options{})
	spec, err := ragdoll.ParseSpec([]byte("bodies:\n  - joint: root\n    width: 0.2\n    height: 0.4\n"))
	require.NoError(t, err)

	first, err := r.eng.CreateRagdoll(r.hero, spec)
	require.NoError(t, err)
	second, err := r.eng.CreateRagdoll(r.hero, spec)
	require.NoError(t, err)

	assert.Equal(t, 0, first.BodyCount())
	assert.Equal(t, 1, second.BodyCount())
	assert.Same(t, second, r.hero.Ragdoll())

	bodies := 0
	r.eng.World().Space().EachBody(func(*cp.Body) { bodies++ })
	assert.Equal(t, 1, bodies)
}
