package common

// Clock is the frame clock shared by every animator driven from one engine.
// The tick index changes exactly once per Advance, which lets samplers
// reached through more than one tree path advance only once per frame.
type Clock struct {
	now   float32
	delta float32
	tick  uint64
}

func NewClock() *Clock {
	return &Clock{}
}

// Advance moves the clock forward by dt seconds and starts a new tick.
func (c *Clock) Advance(dt float32) {
	if c == nil {
		return
	}
	if dt < 0 {
		dt = 0
	}
	c.delta = dt
	c.now += dt
	c.tick++
}

// Now returns the seconds elapsed since the clock was created.
func (c *Clock) Now() float32 {
	if c == nil {
		return 0
	}
	return c.now
}

// Delta returns the length of the current tick in seconds.
func (c *Clock) Delta() float32 {
	if c == nil {
		return 0
	}
	return c.delta
}

func (c *Clock) TickIndex() uint64 {
	if c == nil {
		return 0
	}
	return c.tick
}
