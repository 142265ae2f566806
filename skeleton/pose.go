package skeleton

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/blendrig/common"
)

// JointTransform is a joint's transform relative to its parent.
type JointTransform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

// Identity returns the zero translation, identity rotation transform.
func Identity() JointTransform {
	return JointTransform{Rotation: mgl32.QuatIdent()}
}

// Mat4 returns the transform as translate * rotate.
func (jt JointTransform) Mat4() mgl32.Mat4 {
	p := jt.Position
	return mgl32.Translate3D(p[0], p[1], p[2]).Mul4(jt.Rotation.Normalize().Mat4())
}

// Decompose splits a rigid transform into translation and rotation.
func Decompose(m mgl32.Mat4) JointTransform {
	return JointTransform{
		Position: m.Col(3).Vec3(),
		Rotation: mgl32.Mat4ToQuat(m).Normalize(),
	}
}

// Pose is one configuration of a skeleton: a local transform and a global
// matrix per joint. Poses are values; use Clone before sharing the slices.
type Pose struct {
	Skeleton ID
	Local    []JointTransform
	Global   []mgl32.Mat4
}

// NewPose returns an identity pose sized for sk.
func NewPose(sk *Skeleton) Pose {
	n := sk.JointCount()
	p := Pose{
		Local:  make([]JointTransform, n),
		Global: make([]mgl32.Mat4, n),
	}
	if sk != nil {
		p.Skeleton = sk.ID
	}
	for i := 0; i < n; i++ {
		p.Local[i] = Identity()
		p.Global[i] = mgl32.Ident4()
	}
	return p
}

func (p Pose) Clone() Pose {
	return Pose{
		Skeleton: p.Skeleton,
		Local:    append([]JointTransform(nil), p.Local...),
		Global:   append([]mgl32.Mat4(nil), p.Global...),
	}
}

// CopyFrom overwrites p with src, reusing p's storage when it is large enough.
func (p *Pose) CopyFrom(src Pose) {
	p.Skeleton = src.Skeleton
	p.Local = append(p.Local[:0], src.Local...)
	p.Global = append(p.Global[:0], src.Global...)
}

// BuildGlobal recomputes every global matrix from the local transforms.
// Parents always precede children, so one pass in index order suffices.
func (p *Pose) BuildGlobal(sk *Skeleton) {
	for i, j := range sk.Joints {
		local := p.Local[i].Mat4()
		if j.Parent < 0 {
			p.Global[i] = local
			continue
		}
		p.Global[i] = p.Global[j.Parent].Mul4(local)
	}
}

// RecoverLocal recomputes every local transform from the global matrices.
func (p *Pose) RecoverLocal(sk *Skeleton) {
	for i, j := range sk.Joints {
		if j.Parent < 0 {
			p.Local[i] = Decompose(p.Global[i])
			continue
		}
		p.Local[i] = Decompose(p.Global[j.Parent].Inv().Mul4(p.Global[i]))
	}
}

// BuildBind sets p to the skeleton's bind pose, global matrices first.
func (p *Pose) BuildBind(sk *Skeleton) {
	for i, j := range sk.Joints {
		p.Global[i] = j.InvBindPose.Inv()
	}
	p.RecoverLocal(sk)
}

// Lerp blends two poses of the same skeleton joint by joint and rebuilds the
// global matrices. Mixing skeletons is a programming error and panics.
func Lerp(sk *Skeleton, a, b Pose, t float32) Pose {
	if a.Skeleton != b.Skeleton || len(a.Local) != len(b.Local) {
		panic(fmt.Sprintf("skeleton: lerp between skeleton %d (%d joints) and %d (%d joints)",
			a.Skeleton, len(a.Local), b.Skeleton, len(b.Local)))
	}
	out := Pose{
		Skeleton: a.Skeleton,
		Local:    make([]JointTransform, len(a.Local)),
		Global:   make([]mgl32.Mat4, len(a.Local)),
	}
	for i := range a.Local {
		out.Local[i] = JointTransform{
			Position: common.LerpVec3(a.Local[i].Position, b.Local[i].Position, t),
			Rotation: common.Slerp(a.Local[i].Rotation, b.Local[i].Rotation, t),
		}
	}
	out.BuildGlobal(sk)
	return out
}

// ApproxEqual reports whether two poses match joint by joint within tol.
func ApproxEqual(a, b Pose, tol float32) bool {
	if a.Skeleton != b.Skeleton || len(a.Local) != len(b.Local) || len(a.Global) != len(b.Global) {
		return false
	}
	for i := range a.Local {
		if !a.Local[i].Position.ApproxEqualThreshold(b.Local[i].Position, tol) {
			return false
		}
		if !common.QuatEqual(a.Local[i].Rotation, b.Local[i].Rotation, tol) {
			return false
		}
	}
	for i := range a.Global {
		if !a.Global[i].ApproxEqualThreshold(b.Global[i], tol) {
			return false
		}
	}
	return true
}
