package blend

import (
	"errors"
	"fmt"

	"github.com/milk9111/blendrig/common"
	"github.com/milk9111/blendrig/ragdoll"
	"github.com/milk9111/blendrig/skeleton"
)

var (
	ErrNoContext        = errors.New("blend: tree has no skeleton context")
	ErrEmptyTree        = errors.New("blend: tree has no nodes")
	ErrNoOutput         = errors.New("blend: output node not set")
	ErrNodeIndex        = errors.New("blend: node index out of range")
	ErrMissingInput     = errors.New("blend: input not connected")
	ErrInputSlot        = errors.New("blend: bad input slot")
	ErrInputCount       = errors.New("blend: wrong number of inputs")
	ErrCycle            = errors.New("blend: cycle through node")
	ErrUnknownClip      = errors.New("blend: unknown clip")
	ErrSkeletonMismatch = errors.New("blend: clip targets another skeleton")
	ErrNoRagdoll        = errors.New("blend: no ragdoll bound")
	ErrZeroDuration     = errors.New("blend: cannot scale an input with no duration")
)

// Tree is an arena of blend nodes. Nodes refer to their inputs by index, so
// a node may feed several parents. Nodes are never removed.
type Tree struct {
	ctx    *Context
	nodes  []Node
	output int
	start  float32
}

func NewTree(ctx *Context) *Tree {
	return &Tree{ctx: ctx, output: NoInput}
}

// Context returns the context the tree was built against.
func (t *Tree) Context() *Context { return t.ctx }

// Add appends n to the arena and returns its index.
func (t *Tree) Add(n Node) int {
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node at index i, or nil.
func (t *Tree) Node(i int) Node {
	if i < 0 || i >= len(t.nodes) {
		return nil
	}
	return t.nodes[i]
}

// Output returns the index of the root node or NoInput.
func (t *Tree) Output() int { return t.output }

func (t *Tree) SetOutput(i int) error {
	if i < 0 || i >= len(t.nodes) {
		return fmt.Errorf("%w: %d", ErrNodeIndex, i)
	}
	t.output = i
	return nil
}

// SetInput connects input to a slot of node. General linear blends grow one
// slot at a time, so slot must be an existing slot or the next free one.
func (t *Tree) SetInput(node, slot, input int) error {
	if node < 0 || node >= len(t.nodes) {
		return fmt.Errorf("%w: node %d", ErrNodeIndex, node)
	}
	if input < 0 || input >= len(t.nodes) {
		return fmt.Errorf("%w: input %d", ErrNodeIndex, input)
	}
	switch n := t.nodes[node].(type) {
	case *LinearBlend:
		if slot < 0 || slot >= len(n.Inputs) {
			return fmt.Errorf("%w: %d on linear blend %d", ErrInputSlot, slot, node)
		}
		n.Inputs[slot] = input
	case *BilinearBlend:
		if slot < 0 || slot >= len(n.Inputs) {
			return fmt.Errorf("%w: %d on bilinear blend %d", ErrInputSlot, slot, node)
		}
		n.Inputs[slot] = input
	case *GeneralLinearBlend:
		switch {
		case slot >= 0 && slot < len(n.inputs):
			n.inputs[slot] = input
		case slot == len(n.inputs):
			n.inputs = append(n.inputs, input)
		default:
			return fmt.Errorf("%w: %d on general linear blend %d with %d inputs", ErrInputSlot, slot, node, len(n.inputs))
		}
	default:
		return fmt.Errorf("%w: node %d (%s) takes no inputs", ErrInputSlot, node, n.kind())
	}
	return nil
}

// BindRagdoll points every ragdoll node at r.
func (t *Tree) BindRagdoll(r ragdoll.Ragdoll) {
	for _, n := range t.nodes {
		if rs, ok := n.(*RagdollSample); ok {
			rs.Ragdoll = r
		}
	}
}

// Start restarts every node and records the clock time for RemainingDuration.
func (t *Tree) Start() {
	t.start = t.ctx.Clock.Now()
	for _, n := range t.nodes {
		if cs, ok := n.(*ClipSample); ok {
			cs.sampler.Restart()
		}
	}
}

// StartTime returns the clock time of the last Start.
func (t *Tree) StartTime() float32 { return t.start }

// Validate reports why the tree cannot be evaluated, or nil.
func (t *Tree) Validate() error {
	if t.ctx == nil || t.ctx.Skeleton == nil || t.ctx.Clock == nil {
		return ErrNoContext
	}
	if len(t.nodes) == 0 {
		return ErrEmptyTree
	}
	if t.output == NoInput {
		return ErrNoOutput
	}
	return t.validate(t.output, make([]bool, len(t.nodes)))
}

func (t *Tree) validate(i int, onPath []bool) error {
	if i == NoInput {
		return ErrMissingInput
	}
	if i < 0 || i >= len(t.nodes) {
		return fmt.Errorf("%w: %d", ErrNodeIndex, i)
	}
	if onPath[i] {
		return fmt.Errorf("%w %d", ErrCycle, i)
	}
	onPath[i] = true
	defer func() { onPath[i] = false }()

	switch n := t.nodes[i].(type) {
	case *ClipSample:
		return n.err
	case *RagdollSample:
		if n.Ragdoll == nil {
			return fmt.Errorf("%w: node %d", ErrNoRagdoll, i)
		}
		return nil
	case *LinearBlend:
		return t.validateInputs(i, n.Inputs[:], n.ScaleClips, onPath)
	case *BilinearBlend:
		return t.validateInputs(i, n.Inputs[:], n.ScaleClips, onPath)
	case *GeneralLinearBlend:
		if len(n.inputs) < 2 || len(n.inputs) != len(n.placements) {
			return fmt.Errorf("%w: node %d has %d inputs and %d placements", ErrInputCount, i, len(n.inputs), len(n.placements))
		}
		for slot := range n.inputs {
			if _, ok := n.placements[slot]; !ok {
				return fmt.Errorf("%w: node %d slot %d has no placement", ErrInputCount, i, slot)
			}
		}
		if err := t.validateInputs(i, n.inputs, false, onPath); err != nil {
			return err
		}
		if n.ScaleClips && n.a != n.b {
			if t.duration(n.inputs[n.a]) <= 0 || t.duration(n.inputs[n.b]) <= 0 {
				return fmt.Errorf("%w: node %d", ErrZeroDuration, i)
			}
		}
		return nil
	default:
		return fmt.Errorf("blend: node %d has unsupported type %T", i, n)
	}
}

func (t *Tree) validateInputs(i int, inputs []int, scaled bool, onPath []bool) error {
	for slot, in := range inputs {
		if in == NoInput {
			return fmt.Errorf("%w: node %d slot %d", ErrMissingInput, i, slot)
		}
		if err := t.validate(in, onPath); err != nil {
			return err
		}
	}
	if !scaled {
		return nil
	}
	for _, in := range inputs {
		if t.duration(in) <= 0 {
			return fmt.Errorf("%w: node %d", ErrZeroDuration, i)
		}
	}
	return nil
}

// TickAndEvaluate advances the tree by one clock tick and writes the root's
// pose into out. It returns false, leaving out untouched, when the tree is
// empty or invalid.
func (t *Tree) TickAndEvaluate(out *skeleton.Pose, timeScale float32) bool {
	if t == nil || len(t.nodes) == 0 || t.output == NoInput {
		return false
	}
	if t.Validate() != nil {
		return false
	}
	t.tick(t.output, timeScale)
	out.CopyFrom(t.evaluate(t.output))
	return true
}

func (t *Tree) tick(i int, scale float32) {
	switch n := t.nodes[i].(type) {
	case *ClipSample:
		n.sampler.Tick(t.ctx.Clock, scale)
	case *RagdollSample:
		n.Ragdoll.SetDirty(true)
	case *LinearBlend:
		s0, s1 := float32(1), float32(1)
		if n.ScaleClips {
			s0, s1 = pairScales(t.duration(n.Inputs[0]), t.duration(n.Inputs[1]), common.Clamp01(n.Alpha))
		}
		t.tick(n.Inputs[0], scale*s0)
		t.tick(n.Inputs[1], scale*s1)
	case *BilinearBlend:
		var s [4]float32
		for k := range s {
			s[k] = 1
		}
		if n.ScaleClips {
			alpha, beta := common.Clamp01(n.Alpha), common.Clamp01(n.Beta)
			d0, d2 := t.duration(n.Inputs[0]), t.duration(n.Inputs[2])
			s[0], s[1] = pairScales(d0, t.duration(n.Inputs[1]), alpha)
			s[2], s[3] = pairScales(d2, t.duration(n.Inputs[3]), alpha)
			top, bottom := pairScales(d0/s[0], d2/s[2], beta)
			s[0], s[1] = s[0]*top, s[1]*top
			s[2], s[3] = s[2]*bottom, s[3]*bottom
		}
		for k, in := range n.Inputs {
			t.tick(in, scale*s[k])
		}
	case *GeneralLinearBlend:
		scales := map[int]float32{n.a: 1, n.b: 1}
		if n.ScaleClips && n.a != n.b {
			scales[n.a], scales[n.b] = pairScales(t.duration(n.inputs[n.a]), t.duration(n.inputs[n.b]), n.weight)
		}
		t.tick(n.inputs[n.a], scale*scales[n.a])
		if n.b != n.a {
			t.tick(n.inputs[n.b], scale*scales[n.b])
		}
		for slot, in := range n.inputs {
			if slot == n.a || slot == n.b {
				continue
			}
			t.tick(in, scale*scales[n.closerSlot(slot)])
		}
	}
}

func (t *Tree) evaluate(i int) skeleton.Pose {
	sk := t.ctx.Skeleton
	switch n := t.nodes[i].(type) {
	case *ClipSample:
		n.sampler.Sample(&n.pose)
		n.pose.BuildGlobal(sk)
		return n.pose
	case *RagdollSample:
		p := n.Ragdoll.PoseFromSimulation()
		p.RecoverLocal(sk)
		return p
	case *LinearBlend:
		return skeleton.Lerp(sk, t.evaluate(n.Inputs[0]), t.evaluate(n.Inputs[1]), common.Clamp01(n.Alpha))
	case *BilinearBlend:
		alpha := common.Clamp01(n.Alpha)
		top := skeleton.Lerp(sk, t.evaluate(n.Inputs[0]), t.evaluate(n.Inputs[1]), alpha)
		bottom := skeleton.Lerp(sk, t.evaluate(n.Inputs[2]), t.evaluate(n.Inputs[3]), alpha)
		return skeleton.Lerp(sk, top, bottom, common.Clamp01(n.Beta))
	case *GeneralLinearBlend:
		if n.a == n.b {
			return t.evaluate(n.inputs[n.a])
		}
		return skeleton.Lerp(sk, t.evaluate(n.inputs[n.a]), t.evaluate(n.inputs[n.b]), n.weight)
	}
	return skeleton.NewPose(sk)
}

// Duration returns the length of one pass of the root, 0 when unset.
func (t *Tree) Duration() float32 {
	if t.Validate() != nil {
		return 0
	}
	return t.duration(t.output)
}

// RemainingDuration is the root duration minus the time since Start.
func (t *Tree) RemainingDuration() float32 {
	return t.Duration() - (t.ctx.Clock.Now() - t.start)
}

// Looping reports whether the root repeats.
func (t *Tree) Looping() bool {
	if t.Validate() != nil {
		return false
	}
	return t.looping(t.output)
}

// duration and looping are only called on validated subtrees.
func (t *Tree) duration(i int) float32 {
	switch n := t.nodes[i].(type) {
	case *ClipSample:
		return n.sampler.Duration()
	case *LinearBlend:
		return max(t.duration(n.Inputs[0]), t.duration(n.Inputs[1]))
	case *BilinearBlend:
		d := t.duration(n.Inputs[0])
		for _, in := range n.Inputs[1:] {
			d = max(d, t.duration(in))
		}
		return d
	case *GeneralLinearBlend:
		return max(t.duration(n.inputs[n.a]), t.duration(n.inputs[n.b]))
	}
	return 0
}

func (t *Tree) looping(i int) bool {
	switch n := t.nodes[i].(type) {
	case *ClipSample:
		return n.sampler.Looping
	case *LinearBlend:
		return t.looping(n.Inputs[0]) && t.looping(n.Inputs[1])
	case *BilinearBlend:
		for _, in := range n.Inputs {
			if !t.looping(in) {
				return false
			}
		}
		return true
	case *GeneralLinearBlend:
		for _, in := range n.inputs {
			if !t.looping(in) {
				return false
			}
		}
		return true
	}
	return false
}

// SetField writes a named node variable. It satisfies param.Binder.
func (t *Tree) SetField(node int, field string, value float32) bool {
	if node < 0 || node >= len(t.nodes) {
		return false
	}
	switch n := t.nodes[node].(type) {
	case *ClipSample:
		if field == "playbackSpeed" {
			n.sampler.Speed = value
			return true
		}
	case *LinearBlend:
		if field == "alpha" {
			n.Alpha = value
			return true
		}
	case *BilinearBlend:
		switch field {
		case "alpha":
			n.Alpha = value
			return true
		case "beta":
			n.Beta = value
			return true
		}
	case *GeneralLinearBlend:
		if field == "alpha" {
			n.SetAlpha(value)
			return true
		}
	}
	return false
}
