package ragdoll

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/blendrig/skeleton"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSpec = `
name: stick
bodies:
  - joint: hips
    mass: 2
    width: 0.4
    height: 0.2
  - joint: chest
    width: 0.3
    height: 0.5
    offset: [0, 0.25, 0]
`

func stickSkeleton(t *testing.T) *skeleton.Skeleton {
	t.Helper()
	sk, err := skeleton.NewRegistry().Create("stick", []skeleton.Joint{
		{Name: "hips", Parent: -1, InvBindPose: mgl32.Translate3D(0, -1, 0)},
		{Name: "chest", Parent: 0, InvBindPose: mgl32.Translate3D(0, -1.5, 0)},
		{Name: "head", Parent: 1, InvBindPose: mgl32.Translate3D(0, -2, 0)},
	})
	require.NoError(t, err)
	return sk
}

func newStick(t *testing.T, cfg WorldConfig) (*World, *skeleton.Skeleton, *Planar) {
	t.Helper()
	spec, err := ParseSpec([]byte(testSpec))
	require.NoError(t, err)
	w := NewWorld(cfg, nil)
	sk := stickSkeleton(t)
	p, err := NewPlanar(w, sk, spec)
	require.NoError(t, err)
	return w, sk, p
}

func bindPose(sk *skeleton.Skeleton) skeleton.Pose {
	p := skeleton.NewPose(sk)
	p.BuildBind(sk)
	return p
}

func TestParseSpecDefaults(t *testing.T) {
	spec, err := ParseSpec([]byte(testSpec))
	require.NoError(t, err)
	require.Len(t, spec.Bodies, 2)
	assert.Equal(t, 2.0, spec.Bodies[0].Mass)
	assert.Equal(t, 1.0, spec.Bodies[1].Mass)
	assert.Equal(t, 0.8, spec.Friction)
	assert.Equal(t, [3]float32{0, 0.25, 0}, spec.Bodies[1].Offset)

	_, err = ParseSpec([]byte("name: empty\n"))
	assert.ErrorIs(t, err, ErrEmptySpec)
}

func TestLoadSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stick.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSpec), 0o644))

	spec, err := LoadSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "stick", spec.Name)

	_, err = LoadSpec(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewPlanarRejectsBadSpecs(t *testing.T) {
	sk := stickSkeleton(t)
	cases := []struct {
		name    string
		spec    *Spec
		wantErr error
	}{
		{"nil", nil, ErrEmptySpec},
		{"unknown_joint", &Spec{Bodies: []BodySpec{{Joint: "tail", Mass: 1, Width: 1, Height: 1}}}, ErrUnknownJoint},
		{"duplicate", &Spec{Bodies: []BodySpec{
			{Joint: "hips", Mass: 1, Width: 1, Height: 1},
			{Joint: "hips", Mass: 1, Width: 1, Height: 1},
		}}, ErrDuplicateBody},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewPlanar(NewWorld(WorldConfig{}, nil), sk, c.spec)
			assert.ErrorIs(t, err, c.wantErr)
		})
	}
}

func TestPoseFromSimulationStartsAtBind(t *testing.T) {
	_, sk, p := newStick(t, WorldConfig{})
	assert.Equal(t, 2, p.BodyCount())
	assert.Nil(t, p.Body(2))

	got := p.PoseFromSimulation()
	want := bindPose(sk)
	for i := range want.Global {
		assert.True(t, got.Global[i].ApproxEqualThreshold(want.Global[i], 1e-4), "joint %d: %v", i, got.Global[i])
	}
}

func TestMatchPoseRoundTrip(t *testing.T) {
	_, sk, p := newStick(t, WorldConfig{})

	pose := bindPose(sk)
	pose.Local[0] = skeleton.JointTransform{
		Position: mgl32.Vec3{0.5, 1.2, 0.3},
		Rotation: mgl32.QuatRotate(0.4, mgl32.Vec3{0, 0, 1}).Mul(mgl32.QuatRotate(0.2, mgl32.Vec3{1, 0, 0})),
	}
	pose.Local[1].Rotation = mgl32.QuatRotate(-0.3, mgl32.Vec3{0, 0, 1})
	pose.BuildGlobal(sk)

	p.MatchPose(&pose)
	got := p.PoseFromSimulation()
	for i := range pose.Global {
		assert.True(t, got.Global[i].ApproxEqualThreshold(pose.Global[i], 1e-4), "joint %d", i)
	}
}

func TestMatchPoseSetsVelocity(t *testing.T) {
	w, sk, p := newStick(t, WorldConfig{})

	pose := bindPose(sk)
	pose.Local[0].Position = pose.Local[0].Position.Add(mgl32.Vec3{0.1, 0, 0})
	pose.BuildGlobal(sk)
	p.MatchPose(&pose)

	v := p.Body(0).Velocity()
	assert.InDelta(t, 0.1/w.FixedStep(), v.X, 1e-3)
	assert.InDelta(t, 0, v.Y, 1e-3)
}

func TestWorldStepSimulatesFall(t *testing.T) {
	w, _, p := newStick(t, WorldConfig{})
	before := p.Body(0).Position().Y

	steps := w.Step(0.5 * DefaultFixedStep)
	assert.Equal(t, 0, steps)
	steps = w.Step(10 * DefaultFixedStep)
	assert.Equal(t, 8, steps)

	assert.Less(t, p.Body(0).Position().Y, before)
}

func TestDirtyFlag(t *testing.T) {
	_, _, p := newStick(t, WorldConfig{})
	assert.False(t, p.Dirty())
	p.SetDirty(true)
	assert.True(t, p.Dirty())
}

func TestCloseRemovesBodies(t *testing.T) {
	_, _, p := newStick(t, WorldConfig{})
	p.Close()
	assert.Equal(t, 0, p.BodyCount())
	assert.Nil(t, p.Body(0))
}
