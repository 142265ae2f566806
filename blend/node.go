package blend

import (
	"fmt"
	"sort"

	"github.com/milk9111/blendrig/clip"
	"github.com/milk9111/blendrig/common"
	"github.com/milk9111/blendrig/ragdoll"
	"github.com/milk9111/blendrig/skeleton"
)

// NoInput marks an input slot that has not been connected.
const NoInput = -1

// Node is one operator in a blend tree. The set of node kinds is closed:
// *ClipSample, *LinearBlend, *GeneralLinearBlend, *BilinearBlend and
// *RagdollSample.
type Node interface {
	kind() string
}

// ClipSample plays one clip.
type ClipSample struct {
	ClipName string
	sampler  clip.Sampler
	pose     skeleton.Pose
	err      error
}

// NewClipSample binds the named clip from ctx. A clip that cannot be bound
// leaves the node permanently invalid.
func NewClipSample(ctx *Context, clipName string, looping bool) *ClipSample {
	n := &ClipSample{ClipName: clipName}
	if ctx == nil || ctx.Skeleton == nil {
		n.err = ErrNoContext
		return n
	}
	n.pose = skeleton.NewPose(ctx.Skeleton)
	n.pose.BuildBind(ctx.Skeleton)

	if ctx.Clips == nil {
		n.err = fmt.Errorf("%w: %q", ErrUnknownClip, clipName)
		return n
	}
	c, err := ctx.Clips.Clip(clipName)
	if err != nil {
		n.err = fmt.Errorf("%w: %v", ErrUnknownClip, err)
		return n
	}
	if c.Target != ctx.Skeleton.ID {
		n.err = fmt.Errorf("%w: clip %q targets skeleton %d, not %d", ErrSkeletonMismatch, clipName, c.Target, ctx.Skeleton.ID)
		return n
	}
	n.sampler = clip.NewSampler(c, looping)
	return n
}

func (n *ClipSample) kind() string { return "clipSample" }

// Sampler exposes the playback state.
func (n *ClipSample) Sampler() *clip.Sampler { return &n.sampler }

// Err returns the binding error, if any.
func (n *ClipSample) Err() error { return n.err }

// LinearBlend mixes two inputs by Alpha.
type LinearBlend struct {
	Inputs     [2]int
	Alpha      float32
	ScaleClips bool
}

func NewLinearBlend() *LinearBlend {
	return &LinearBlend{Inputs: [2]int{NoInput, NoInput}, ScaleClips: true}
}

func (n *LinearBlend) kind() string { return "linearBlend" }

// BilinearBlend mixes inputs 0/1 and 2/3 by Alpha, then the two results by Beta.
type BilinearBlend struct {
	Inputs     [4]int
	Alpha      float32
	Beta       float32
	ScaleClips bool
}

func NewBilinearBlend() *BilinearBlend {
	return &BilinearBlend{Inputs: [4]int{NoInput, NoInput, NoInput, NoInput}, ScaleClips: true}
}

func (n *BilinearBlend) kind() string { return "bilinearBlend" }

// RagdollSample reads its pose from a ragdoll simulation.
type RagdollSample struct {
	Ragdoll ragdoll.Ragdoll
}

func NewRagdollSample(r ragdoll.Ragdoll) *RagdollSample {
	return &RagdollSample{Ragdoll: r}
}

func (n *RagdollSample) kind() string { return "ragdoll" }

// GeneralLinearBlend places any number of inputs on a one dimensional axis
// and blends the two neighbours of Alpha.
type GeneralLinearBlend struct {
	ScaleClips bool

	inputs     []int
	placements map[int]float32
	order      []int
	alpha      float32

	a, b   int
	weight float32
}

// NewGeneralLinearBlend returns a node with the first two slots placed at 0 and 1.
func NewGeneralLinearBlend() *GeneralLinearBlend {
	n := &GeneralLinearBlend{
		ScaleClips: true,
		placements: map[int]float32{0: 0, 1: 1},
	}
	n.sortPlacements()
	return n
}

func (n *GeneralLinearBlend) kind() string { return "generalLinearBlend" }

// Inputs returns the connected node indices in slot order.
func (n *GeneralLinearBlend) Inputs() []int {
	return append([]int(nil), n.inputs...)
}

func (n *GeneralLinearBlend) Alpha() float32 { return n.alpha }

// SetAlpha moves the blend position and reselects the active pair.
func (n *GeneralLinearBlend) SetAlpha(alpha float32) {
	n.alpha = alpha
	n.selectActive()
}

// SetPlacement places an input slot on the axis, replacing any earlier value.
func (n *GeneralLinearBlend) SetPlacement(slot int, value float32) {
	if slot < 0 {
		return
	}
	n.placements[slot] = value
	n.sortPlacements()
}

func (n *GeneralLinearBlend) Placement(slot int) (float32, bool) {
	v, ok := n.placements[slot]
	return v, ok
}

// Active returns the two active slots and the weight of the second.
func (n *GeneralLinearBlend) Active() (a, b int, weight float32) {
	return n.a, n.b, n.weight
}

func (n *GeneralLinearBlend) sortPlacements() {
	n.order = n.order[:0]
	for slot := range n.placements {
		n.order = append(n.order, slot)
	}
	sort.Slice(n.order, func(i, j int) bool {
		vi, vj := n.placements[n.order[i]], n.placements[n.order[j]]
		if vi != vj {
			return vi < vj
		}
		return n.order[i] < n.order[j]
	})
	n.selectActive()
}

// selectActive scans forward while alpha has reached the next placement.
// Reaching the last placement collapses both slots onto it.
func (n *GeneralLinearBlend) selectActive() {
	if len(n.order) == 0 {
		n.a, n.b, n.weight = 0, 0, 0
		return
	}
	i := 0
	for i+1 < len(n.order) && n.alpha >= n.placements[n.order[i+1]] {
		i++
	}
	if i == len(n.order)-1 {
		n.a, n.b, n.weight = n.order[i], n.order[i], 0
		return
	}
	lo, hi := n.placements[n.order[i]], n.placements[n.order[i+1]]
	n.a, n.b = n.order[i], n.order[i+1]
	n.weight = common.Remap(n.alpha, lo, hi)
}

// closerSlot returns whichever of the active slots is nearer to slot on the
// axis. Ties go to the first active slot.
func (n *GeneralLinearBlend) closerSlot(slot int) int {
	v := n.placements[slot]
	da := abs(v - n.placements[n.a])
	db := abs(v - n.placements[n.b])
	if db < da {
		return n.b
	}
	return n.a
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Kind returns the document name of a node's type.
func Kind(n Node) string {
	if n == nil {
		return ""
	}
	return n.kind()
}
