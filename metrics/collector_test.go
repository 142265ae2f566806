package metrics

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/blendrig/animator"
	"github.com/milk9111/blendrig/blend"
	"github.com/milk9111/blendrig/clip"
	"github.com/milk9111/blendrig/common"
	"github.com/milk9111/blendrig/skeleton"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New()
	require.NoError(t, c.Register(reg))
	assert.Error(t, c.Register(reg))
}

func TestCollectorCountsAnimatorEvents(t *testing.T) {
	sk, err := skeleton.NewRegistry().Create("hero", []skeleton.Joint{{Name: "root", Parent: -1, InvBindPose: mgl32.Ident4()}})
	require.NoError(t, err)
	lib := clip.NewLibrary()
	idleClip, err := clip.New("idle", sk, 1, []clip.Track{{}})
	require.NoError(t, err)
	require.NoError(t, lib.Add(idleClip))

	clk := common.NewClock()
	ctx := &blend.Context{Clock: clk, Skeleton: sk, Clips: lib}
	c := New()
	a := animator.New(ctx, animator.Options{Name: "hero", Recorder: c})

	idle, err := a.CreateState("idle")
	require.NoError(t, err)
	require.NoError(t, idle.Tree.SetOutput(idle.Tree.Add(blend.NewClipSample(ctx, "idle", true))))
	broken, err := a.CreateState("broken")
	require.NoError(t, err)
	broken.Tree.Add(blend.NewLinearBlend())
	require.NoError(t, broken.Tree.SetOutput(0))
	idle.AddTransition(animator.Transition{Name: "break", Destination: "broken", Type: animator.Smooth, Duration: 0.5})

	clk.Advance(0.1)
	a.Update()
	require.True(t, a.Transition("break"))
	assert.False(t, a.Transition("break"))
	assert.False(t, a.Transition("fly"))

	clk.Advance(0.6)
	a.Update()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Ticks.WithLabelValues("hero")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Started.WithLabelValues("hero", "break", "smooth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Rejected.WithLabelValues("hero", "break")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Rejected.WithLabelValues("hero", "fly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Committed.WithLabelValues("hero", "broken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.InvalidEvals.WithLabelValues("hero", "broken")))

	clk.Advance(0.1)
	a.Update()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.InvalidEvals.WithLabelValues("hero", "broken")))
}

func TestObserveTick(t *testing.T) {
	c := New()
	c.ObserveTick(2 * time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(c.EngineTickTime))
}
