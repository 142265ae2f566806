package clip

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/blendrig/common"
	"github.com/milk9111/blendrig/skeleton"
)

var (
	ErrTrackCount  = errors.New("clip: track count does not match skeleton")
	ErrKeyOrder    = errors.New("clip: keys out of order")
	ErrBadDuration = errors.New("clip: duration must be positive")
	ErrNotFound    = errors.New("clip: not found")
	ErrDuplicate   = errors.New("clip: duplicate name")
)

type PositionKey struct {
	Time  float32
	Value mgl32.Vec3
}

type RotationKey struct {
	Time  float32
	Value mgl32.Quat
}

// Track holds the keys for one joint. An empty key list leaves that channel
// of the joint untouched when sampling.
type Track struct {
	Positions []PositionKey
	Rotations []RotationKey
}

// Clip is a keyframed animation for one skeleton.
type Clip struct {
	Name     string
	Target   skeleton.ID
	Duration float32
	Tracks   []Track
}

// New validates key ordering and returns a clip. Tracks are indexed by joint.
func New(name string, sk *skeleton.Skeleton, duration float32, tracks []Track) (*Clip, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: %q has %v", ErrBadDuration, name, duration)
	}
	if len(tracks) != sk.JointCount() {
		return nil, fmt.Errorf("%w: %q has %d tracks, skeleton has %d joints", ErrTrackCount, name, len(tracks), sk.JointCount())
	}
	for j, tr := range tracks {
		if !sort.SliceIsSorted(tr.Positions, func(a, b int) bool { return tr.Positions[a].Time < tr.Positions[b].Time }) ||
			!sort.SliceIsSorted(tr.Rotations, func(a, b int) bool { return tr.Rotations[a].Time < tr.Rotations[b].Time }) {
			return nil, fmt.Errorf("%w: %q joint %d", ErrKeyOrder, name, j)
		}
	}
	return &Clip{
		Name:     name,
		Target:   sk.ID,
		Duration: duration,
		Tracks:   tracks,
	}, nil
}

// BuildLocalPose writes the clip's local transforms at time t into pose.
// Times at or after a track's final key hold that key.
func (c *Clip) BuildLocalPose(t float32, pose *skeleton.Pose) {
	for j := range c.Tracks {
		if j >= len(pose.Local) {
			return
		}
		tr := &c.Tracks[j]
		if len(tr.Positions) > 0 {
			pose.Local[j].Position = samplePosition(tr.Positions, t)
		}
		if len(tr.Rotations) > 0 {
			pose.Local[j].Rotation = sampleRotation(tr.Rotations, t)
		}
	}
}

func samplePosition(keys []PositionKey, t float32) mgl32.Vec3 {
	i, u, hold := segment(len(keys), func(k int) float32 { return keys[k].Time }, t)
	if hold {
		return keys[i].Value
	}
	return common.LerpVec3(keys[i].Value, keys[i+1].Value, u)
}

func sampleRotation(keys []RotationKey, t float32) mgl32.Quat {
	i, u, hold := segment(len(keys), func(k int) float32 { return keys[k].Time }, t)
	if hold {
		return keys[i].Value
	}
	return common.Slerp(keys[i].Value, keys[i+1].Value, u)
}

// segment finds the key pair bracketing t with a forward scan. hold is set
// when t is outside the keyed range and key i should be used unchanged.
func segment(n int, at func(int) float32, t float32) (i int, u float32, hold bool) {
	if n == 1 || t <= at(0) {
		return 0, 0, true
	}
	for i+1 < n && t >= at(i+1) {
		i++
	}
	if i == n-1 {
		return i, 0, true
	}
	span := at(i+1) - at(i)
	if span <= 0 {
		return i, 0, true
	}
	return i, (t - at(i)) / span, false
}
