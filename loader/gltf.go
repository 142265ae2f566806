package loader

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/blendrig/clip"
	"github.com/milk9111/blendrig/skeleton"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

var (
	ErrNoSkin       = errors.New("loader: gltf document has no skin")
	ErrAccessorType = errors.New("loader: unexpected accessor layout")
)

// Asset is what ImportGLTF created.
type Asset struct {
	Skeleton *skeleton.Skeleton
	Clips    []*clip.Clip
	// Skipped names animations that had no usable keys.
	Skipped []string
}

// ImportGLTF reads the first skin of a glTF file as a skeleton and every
// animation that drives its joints as a clip. The skeleton is named after
// the file.
func ImportGLTF(path string, skeletons *skeleton.Registry, clips *clip.Library) (*Asset, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read gltf %q", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ImportDocument(doc, name, skeletons, clips)
}

// ImportDocument is ImportGLTF for an already decoded document.
func ImportDocument(doc *gltf.Document, name string, skeletons *skeleton.Registry, clips *clip.Library) (*Asset, error) {
	if len(doc.Skins) == 0 {
		return nil, ErrNoSkin
	}
	skin := doc.Skins[0]

	nodes, joints, offsets, err := skinJoints(doc, skin)
	if err != nil {
		return nil, err
	}
	sk, err := skeletons.Create(name, joints)
	if err != nil {
		return nil, errors.Wrapf(err, "loader: skeleton %q", name)
	}

	asset := &Asset{Skeleton: sk}
	jointOf := make(map[int]int, len(nodes))
	for j, n := range nodes {
		jointOf[n] = j
	}
	for i, anim := range doc.Animations {
		animName := anim.Name
		if animName == "" {
			animName = fmt.Sprintf("%s_anim%d", name, i)
		}
		c, err := importAnimation(doc, anim, animName, sk, jointOf, offsets)
		if err != nil {
			return nil, errors.Wrapf(err, "loader: animation %q", animName)
		}
		if c == nil {
			asset.Skipped = append(asset.Skipped, animName)
			continue
		}
		if err := clips.Add(c); err != nil {
			return nil, errors.Wrapf(err, "loader: animation %q", animName)
		}
		asset.Clips = append(asset.Clips, c)
	}
	return asset, nil
}

// skinJoints orders the skin's joint nodes parents first and returns the
// node index of each joint with the joint descriptions. Nodes between a joint
// and its parent joint that are not joints themselves are folded into the
// joint below them; offsets holds that product for each joint.
func skinJoints(doc *gltf.Document, skin *gltf.Skin) (order []int, joints []skeleton.Joint, offsets []mgl32.Mat4, err error) {
	inSkin := make(map[int]bool, len(skin.Joints))
	for _, j := range skin.Joints {
		inSkin[int(j)] = true
	}
	parentNode := make(map[int]int, len(doc.Nodes))
	for p, n := range doc.Nodes {
		for _, c := range n.Children {
			parentNode[int(c)] = p
		}
	}

	// Nearest ancestor that is also a joint.
	jointParent := func(n int) int {
		for {
			p, ok := parentNode[n]
			if !ok {
				return -1
			}
			if inSkin[p] {
				return p
			}
			n = p
		}
	}

	offsetOf := func(n int) mgl32.Mat4 {
		m := mgl32.Ident4()
		for p, ok := parentNode[n]; ok && !inSkin[p]; p, ok = parentNode[p] {
			m = nodeLocal(doc.Nodes[p]).Mat4().Mul4(m)
		}
		return m
	}

	depth := make(map[int]int, len(skin.Joints))
	var depthOf func(n int) int
	depthOf = func(n int) int {
		if d, ok := depth[n]; ok {
			return d
		}
		d := 0
		if p := jointParent(n); p >= 0 {
			d = depthOf(p) + 1
		}
		depth[n] = d
		return d
	}

	order = make([]int, 0, len(skin.Joints))
	skinSlot := make(map[int]int, len(skin.Joints))
	for i, j := range skin.Joints {
		order = append(order, int(j))
		skinSlot[int(j)] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return depthOf(order[a]) < depthOf(order[b]) })

	invBind, err := inverseBindMatrices(doc, skin)
	if err != nil {
		return nil, nil, nil, err
	}

	slot := make(map[int]int, len(order))
	joints = make([]skeleton.Joint, len(order))
	offsets = make([]mgl32.Mat4, len(order))
	rest := make([]mgl32.Mat4, len(order))
	for j, n := range order {
		slot[n] = j
		parent := -1
		if p := jointParent(n); p >= 0 {
			parent = slot[p]
		}
		node := doc.Nodes[n]
		joints[j] = skeleton.Joint{Name: node.Name, Parent: parent}
		if joints[j].Name == "" {
			joints[j].Name = fmt.Sprintf("joint%d", j)
		}

		offsets[j] = offsetOf(n)
		rest[j] = offsets[j].Mul4(nodeLocal(node).Mat4())
		if parent >= 0 {
			rest[j] = rest[parent].Mul4(rest[j])
		}
		if invBind != nil {
			joints[j].InvBindPose = invBind[skinSlot[n]]
		} else {
			joints[j].InvBindPose = rest[j].Inv()
		}
	}
	return order, joints, offsets, nil
}

func inverseBindMatrices(doc *gltf.Document, skin *gltf.Skin) ([]mgl32.Mat4, error) {
	acr, ok := index(skin.InverseBindMatrices)
	if !ok {
		return nil, nil
	}
	data, err := readAccessor(doc, acr)
	if err != nil {
		return nil, err
	}
	mats, ok := data.([][4][4]float32)
	if !ok || len(mats) < len(skin.Joints) {
		return nil, errors.Wrapf(ErrAccessorType, "inverse bind matrices: %T", data)
	}
	out := make([]mgl32.Mat4, len(mats))
	for i, m := range mats {
		// glTF stores matrices column by column, as mgl32 does.
		for c := 0; c < 4; c++ {
			for r := 0; r < 4; r++ {
				out[i][c*4+r] = m[c][r]
			}
		}
	}
	return out, nil
}

// nodeLocal returns a node's rest transform. Scale is not carried.
func nodeLocal(n *gltf.Node) skeleton.JointTransform {
	if n.Matrix != [16]float32{} && mgl32.Mat4(n.Matrix) != mgl32.Ident4() {
		return skeleton.Decompose(mgl32.Mat4(n.Matrix))
	}
	jt := skeleton.Identity()
	jt.Position = mgl32.Vec3(n.Translation)
	if n.Rotation != [4]float32{} {
		jt.Rotation = mgl32.Quat{W: n.Rotation[3], V: mgl32.Vec3{n.Rotation[0], n.Rotation[1], n.Rotation[2]}}.Normalize()
	}
	return jt
}

// importAnimation returns nil when the animation drives none of the joints
// or has no time span.
func importAnimation(doc *gltf.Document, anim *gltf.Animation, name string, sk *skeleton.Skeleton, jointOf map[int]int, offsets []mgl32.Mat4) (*clip.Clip, error) {
	tracks := make([]clip.Track, sk.JointCount())
	var duration float32
	used := false

	for ci, ch := range anim.Channels {
		node, ok := index(ch.Target.Node)
		if !ok {
			continue
		}
		j, ok := jointOf[node]
		if !ok {
			continue
		}
		if ch.Target.Path != gltf.TRSTranslation && ch.Target.Path != gltf.TRSRotation {
			continue
		}
		si, ok := index(ch.Sampler)
		if !ok || si >= len(anim.Samplers) {
			return nil, errors.Wrapf(ErrAccessorType, "channel %d has no sampler", ci)
		}
		smp := anim.Samplers[si]
		in, _ := index(smp.Input)
		out, _ := index(smp.Output)

		timesData, err := readAccessor(doc, in)
		if err != nil {
			return nil, err
		}
		times, ok := timesData.([]float32)
		if !ok {
			return nil, errors.Wrapf(ErrAccessorType, "channel %d input: %T", ci, timesData)
		}
		valuesData, err := readAccessor(doc, out)
		if err != nil {
			return nil, err
		}
		stride := 1
		if smp.Interpolation == gltf.InterpolationCubicSpline {
			// In-tangent, value, out-tangent per key.
			stride = 3
		}

		switch v := valuesData.(type) {
		case [][3]float32:
			if ch.Target.Path != gltf.TRSTranslation || len(v) < len(times)*stride {
				return nil, errors.Wrapf(ErrAccessorType, "channel %d output: %T", ci, valuesData)
			}
			keys := make([]clip.PositionKey, len(times))
			for k, t := range times {
				p := mgl32.Vec3(v[k*stride+stride/2])
				keys[k] = clip.PositionKey{Time: t, Value: offsets[j].Mul4x1(p.Vec4(1)).Vec3()}
			}
			tracks[j].Positions = keys
		case [][4]float32:
			if ch.Target.Path != gltf.TRSRotation || len(v) < len(times)*stride {
				return nil, errors.Wrapf(ErrAccessorType, "channel %d output: %T", ci, valuesData)
			}
			keys := make([]clip.RotationKey, len(times))
			turn := mgl32.Mat4ToQuat(offsets[j])
			for k, t := range times {
				q := v[k*stride+stride/2]
				r := mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}.Normalize()
				keys[k] = clip.RotationKey{Time: t, Value: turn.Mul(r).Normalize()}
			}
			tracks[j].Rotations = keys
		default:
			return nil, errors.Wrapf(ErrAccessorType, "channel %d output: %T", ci, valuesData)
		}
		used = true
		if n := len(times); n > 0 && times[n-1] > duration {
			duration = times[n-1]
		}
	}

	if !used || duration <= 0 {
		return nil, nil
	}
	return clip.New(name, sk, duration, tracks)
}

func readAccessor(doc *gltf.Document, i int) (any, error) {
	if i < 0 || i >= len(doc.Accessors) {
		return nil, errors.Wrapf(ErrAccessorType, "accessor %d out of range", i)
	}
	data, err := modeler.ReadAccessor(doc, doc.Accessors[i], nil)
	if err != nil {
		return nil, errors.Wrapf(err, "accessor %d", i)
	}
	return data, nil
}

// index reads an optional glTF index field.
func index(v any) (int, bool) {
	switch i := v.(type) {
	case uint32:
		return int(i), true
	case *uint32:
		if i == nil {
			return 0, false
		}
		return int(*i), true
	case int:
		return i, true
	case *int:
		if i == nil {
			return 0, false
		}
		return *i, true
	}
	return 0, false
}
