package ragdoll

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/blendrig/common"
	"github.com/milk9111/blendrig/skeleton"
)

var (
	ErrUnknownJoint  = errors.New("ragdoll: unknown joint")
	ErrDuplicateBody = errors.New("ragdoll: joint already has a body")
)

type jointBody struct {
	joint     int
	body      *cp.Body
	shape     *cp.Shape
	offset    mgl32.Mat4
	invOffset mgl32.Mat4

	// Chipmunk only simulates the XY plane. depth and residual hold the part
	// of the body's 3D frame the simulation does not see so the full
	// transform can be rebuilt from position and angle.
	depth    float32
	residual mgl32.Mat4
}

// Planar is a ragdoll made of Chipmunk box bodies pinned together at the
// joints of a skeleton. Joints without a body follow their parent using the
// last matched local transform.
type Planar struct {
	world       *World
	sk          *skeleton.Skeleton
	bodies      []*jointBody
	byJoint     []int
	constraints []*cp.Constraint
	last        skeleton.Pose
	dirty       bool
}

var _ Ragdoll = (*Planar)(nil)

// NewPlanar builds the bodies described by spec at the skeleton's bind pose
// and adds them to w.
func NewPlanar(w *World, sk *skeleton.Skeleton, spec *Spec) (*Planar, error) {
	if spec == nil || len(spec.Bodies) == 0 {
		return nil, ErrEmptySpec
	}

	p := &Planar{
		world:   w,
		sk:      sk,
		byJoint: make([]int, sk.JointCount()),
		last:    skeleton.NewPose(sk),
	}
	for i := range p.byJoint {
		p.byJoint[i] = -1
	}
	p.last.BuildBind(sk)

	group := w.newGroup()
	space := w.Space()
	for _, bs := range spec.Bodies {
		j := sk.JointIndex(bs.Joint)
		if j < 0 {
			p.Close()
			return nil, fmt.Errorf("%w: %q", ErrUnknownJoint, bs.Joint)
		}
		if p.byJoint[j] >= 0 {
			p.Close()
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBody, bs.Joint)
		}

		body := cp.NewBody(bs.Mass, cp.MomentForBox(bs.Mass, bs.Width, bs.Height))
		shape := cp.NewBox(body, bs.Width, bs.Height, 0)
		shape.SetFriction(spec.Friction)
		shape.SetFilter(cp.ShapeFilter{Group: group, Categories: ^uint(0), Mask: ^uint(0)})

		jb := &jointBody{
			joint:  j,
			body:   body,
			shape:  shape,
			offset: mgl32.Translate3D(bs.Offset[0], bs.Offset[1], bs.Offset[2]),
		}
		jb.invOffset = jb.offset.Inv()
		jb.place(p.last.Global[j].Mul4(jb.offset))

		space.AddBody(body)
		space.AddShape(shape)
		p.byJoint[j] = len(p.bodies)
		p.bodies = append(p.bodies, jb)
	}

	for _, jb := range p.bodies {
		parent := p.bodyAncestor(jb.joint)
		if parent == nil {
			continue
		}
		pivot := p.last.Global[jb.joint].Col(3)
		c := cp.NewPivotJoint(parent.body, jb.body, cp.Vector{X: float64(pivot[0]), Y: float64(pivot[1])})
		space.AddConstraint(c)
		p.constraints = append(p.constraints, c)
	}
	return p, nil
}

func (p *Planar) bodyAncestor(joint int) *jointBody {
	for a := p.sk.Joints[joint].Parent; a >= 0; a = p.sk.Joints[a].Parent {
		if bi := p.byJoint[a]; bi >= 0 {
			return p.bodies[bi]
		}
	}
	return nil
}

// place moves the body to the planar projection of global and records the
// out-of-plane remainder.
func (jb *jointBody) place(global mgl32.Mat4) (pos mgl32.Vec3, angle float64) {
	a := common.PlanarAngle(global)
	pos = global.Col(3).Vec3()

	rot := global
	rot.SetCol(3, mgl32.Vec4{0, 0, 0, 1})
	jb.residual = mgl32.HomogRotate3DZ(-a).Mul4(rot)
	jb.depth = pos[2]

	jb.body.SetPosition(cp.Vector{X: float64(pos[0]), Y: float64(pos[1])})
	jb.body.SetAngle(float64(a))
	return pos, float64(a)
}

func (jb *jointBody) jointGlobal() mgl32.Mat4 {
	pos := jb.body.Position()
	frame := mgl32.Translate3D(float32(pos.X), float32(pos.Y), jb.depth).
		Mul4(mgl32.HomogRotate3DZ(float32(jb.body.Angle()))).
		Mul4(jb.residual)
	return frame.Mul4(jb.invOffset)
}

func (p *Planar) PoseFromSimulation() skeleton.Pose {
	pose := p.last.Clone()
	for i, j := range p.sk.Joints {
		if bi := p.byJoint[i]; bi >= 0 {
			pose.Global[i] = p.bodies[bi].jointGlobal()
			continue
		}
		if j.Parent < 0 {
			continue
		}
		pose.Global[i] = pose.Global[j.Parent].Mul4(pose.Local[i].Mat4())
	}
	return pose
}

// MatchPose teleports every body to pose. Velocities are the finite
// difference from the previous placement over one physics step so the
// simulation continues the motion when it takes over.
func (p *Planar) MatchPose(pose *skeleton.Pose) {
	if pose == nil || len(pose.Global) != len(p.byJoint) {
		return
	}
	step := p.world.FixedStep()
	for _, jb := range p.bodies {
		prev := jb.body.Position()
		prevAngle := jb.body.Angle()

		pos, angle := jb.place(pose.Global[jb.joint].Mul4(jb.offset))
		jb.body.SetVelocity((float64(pos[0])-prev.X)/step, (float64(pos[1])-prev.Y)/step)
		jb.body.SetAngularVelocity(wrapAngle(angle-prevAngle) / step)
	}
	p.last.CopyFrom(*pose)
}

func (p *Planar) Dirty() bool {
	return p.dirty
}

func (p *Planar) SetDirty(dirty bool) {
	p.dirty = dirty
}

// BodyCount returns the number of simulated bodies.
func (p *Planar) BodyCount() int {
	return len(p.bodies)
}

// Body returns the Chipmunk body attached to a joint, or nil.
func (p *Planar) Body(joint int) *cp.Body {
	if joint < 0 || joint >= len(p.byJoint) || p.byJoint[joint] < 0 {
		return nil
	}
	return p.bodies[p.byJoint[joint]].body
}

// Close removes every body, shape and constraint from the world.
func (p *Planar) Close() {
	if p == nil || p.world == nil {
		return
	}
	space := p.world.Space()
	for _, c := range p.constraints {
		space.RemoveConstraint(c)
	}
	for _, jb := range p.bodies {
		space.RemoveShape(jb.shape)
		space.RemoveBody(jb.body)
	}
	p.constraints = nil
	p.bodies = nil
	for i := range p.byJoint {
		p.byJoint[i] = -1
	}
}

func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
