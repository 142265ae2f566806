package clip

import (
	"math"

	"github.com/milk9111/blendrig/common"
	"github.com/milk9111/blendrig/skeleton"
)

// Sampler plays a clip. It advances at most once per clock tick no matter how
// many times it is ticked, so a sampler shared by several blend paths still
// moves at the right rate.
type Sampler struct {
	Clip    *Clip
	Speed   float32
	Looping bool

	time     float32
	lastTick uint64
	ticked   bool
}

func NewSampler(c *Clip, looping bool) Sampler {
	return Sampler{Clip: c, Speed: 1, Looping: looping}
}

// Tick advances the local timer by delta * Speed * timeScale once per tick.
func (s *Sampler) Tick(clk *common.Clock, timeScale float32) {
	if s.Clip == nil {
		return
	}
	idx := clk.TickIndex()
	if s.ticked && s.lastTick == idx {
		return
	}
	s.ticked = true
	s.lastTick = idx

	s.time += clk.Delta() * s.Speed * timeScale
	if s.Looping {
		s.time = wrap(s.time, s.Clip.Duration)
	}
}

func wrap(t, d float32) float32 {
	if d <= 0 {
		return 0
	}
	if t >= 0 && t < d {
		return t
	}
	w := float32(math.Mod(float64(t), float64(d)))
	if w < 0 {
		w += d
	}
	return w
}

// Sample writes the clip's pose at the current time into pose.
func (s *Sampler) Sample(pose *skeleton.Pose) {
	if s.Clip == nil {
		return
	}
	s.Clip.BuildLocalPose(s.time, pose)
}

// Restart rewinds to the start of the clip. The next tick still advances.
func (s *Sampler) Restart() {
	s.time = 0
	s.ticked = false
}

// Seek jumps to t seconds of clip time.
func (s *Sampler) Seek(t float32) {
	if s.Clip != nil && s.Looping {
		t = wrap(t, s.Clip.Duration)
	}
	s.time = t
}

func (s *Sampler) Time() float32 {
	return s.time
}

// Duration is the wall-clock length of one pass at the current speed. A
// stopped sampler reports the clip's own duration.
func (s *Sampler) Duration() float32 {
	if s.Clip == nil {
		return 0
	}
	speed := s.Speed
	if speed < 0 {
		speed = -speed
	}
	if speed == 0 {
		return s.Clip.Duration
	}
	return s.Clip.Duration / speed
}
