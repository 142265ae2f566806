package loader

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/blendrig/clip"
	"github.com/milk9111/blendrig/common"
	"github.com/milk9111/blendrig/skeleton"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// heroGLTF has two joints listed child first: node 0 is the spine, node 1
// the hips. The wave animation moves the hips and turns the spine.
func heroGLTF(t *testing.T) string {
	t.Helper()
	s := float32(math.Sin(math.Pi / 4))
	ibm := func(y float32) []float32 {
		m := mgl32.Translate3D(0, -y, 0)
		return m[:]
	}

	var floats []float32
	floats = append(floats, 0, 1)                   // times
	floats = append(floats, 0, 1, 0, 1, 1, 0)       // hips translation
	floats = append(floats, 0, 0, 0, 1, 0, 0, s, s) // spine rotation
	floats = append(floats, ibm(1.5)...)            // spine
	floats = append(floats, ibm(1)...)              // hips

	return writeGLTF(t, "hero.gltf", floats, `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [1]}],
  "nodes": [
    {"name": "spine", "translation": [0, 0.5, 0]},
    {"name": "hips", "translation": [0, 1, 0], "children": [0]}
  ],
  "skins": [{"joints": [0, 1], "inverseBindMatrices": 3}],
  "animations": [
    {
      "name": "wave",
      "channels": [
        {"sampler": 0, "target": {"node": 1, "path": "translation"}},
        {"sampler": 1, "target": {"node": 0, "path": "rotation"}}
      ],
      "samplers": [{"input": 0, "output": 1}, {"input": 0, "output": 2}]
    },
    {"name": "empty", "channels": [], "samplers": []}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 2, "type": "SCALAR", "min": [0], "max": [1]},
    {"bufferView": 1, "componentType": 5126, "count": 2, "type": "VEC3"},
    {"bufferView": 2, "componentType": 5126, "count": 2, "type": "VEC4"},
    {"bufferView": 3, "componentType": 5126, "count": 2, "type": "MAT4"}
  ],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 8},
    {"buffer": 0, "byteOffset": 8, "byteLength": 24},
    {"buffer": 0, "byteOffset": 32, "byteLength": 32},
    {"buffer": 0, "byteOffset": 64, "byteLength": 128}
  ],
  "buffers": [{"byteLength": %d, "uri": "data:application/octet-stream;base64,%s"}]
}`)
}

// writeGLTF packs floats into the document's only buffer. doc ends with the
// buffers entry and takes the byte length and base64 data as format verbs.
func writeGLTF(t *testing.T, name string, floats []float32, doc string) string {
	t.Helper()
	buf := make([]byte, 4*len(floats))
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	path := filepath.Join(t.TempDir(), name)
	data := fmt.Sprintf(doc, len(buf), base64.StdEncoding.EncodeToString(buf))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestImportGLTF(t *testing.T) {
	reg := skeleton.NewRegistry()
	lib := clip.NewLibrary()

	asset, err := ImportGLTF(heroGLTF(t), reg, lib)
	require.NoError(t, err)

	sk := asset.Skeleton
	assert.Equal(t, "hero", sk.Name)
	require.Equal(t, 2, sk.JointCount())
	assert.Equal(t, "hips", sk.Joints[0].Name)
	assert.Equal(t, -1, sk.Joints[0].Parent)
	assert.Equal(t, "spine", sk.Joints[1].Name)
	assert.Equal(t, 0, sk.Joints[1].Parent)
	assert.True(t, sk.Joints[0].InvBindPose.ApproxEqualThreshold(mgl32.Translate3D(0, -1, 0), 1e-5))
	assert.True(t, sk.Joints[1].InvBindPose.ApproxEqualThreshold(mgl32.Translate3D(0, -1.5, 0), 1e-5))

	require.Len(t, asset.Clips, 1)
	assert.Equal(t, []string{"empty"}, asset.Skipped)
	wave, err := lib.Clip("wave")
	require.NoError(t, err)
	assert.Equal(t, float32(1), wave.Duration)
	assert.Equal(t, sk.ID, wave.Target)

	pose := skeleton.NewPose(sk)
	pose.BuildBind(sk)
	wave.BuildLocalPose(0.5, &pose)
	assert.InDelta(t, 0.5, pose.Local[0].Position[0], 1e-5)
	assert.InDelta(t, 1.0, pose.Local[0].Position[1], 1e-5)

	wave.BuildLocalPose(1, &pose)
	s := float32(math.Sin(math.Pi / 4))
	want := mgl32.Quat{W: s, V: mgl32.Vec3{0, 0, s}}
	assert.True(t, common.QuatEqual(want, pose.Local[1].Rotation, 1e-5))
	// Spine has no translation channel and keeps its bind offset.
	assert.InDelta(t, 0.5, pose.Local[1].Position[1], 1e-5)
}

// bentGLTF places a non-joint node, raised and turned a quarter about z,
// between the root joint and the tip joint.
func bentGLTF(t *testing.T) string {
	t.Helper()
	floats := []float32{
		0, 1, // times
		2, 0, 0, 2, 0, 0, // tip translation
	}
	return writeGLTF(t, "bent.gltf", floats, `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [
    {"name": "root", "translation": [0, 2, 0], "children": [1]},
    {"name": "elbow", "translation": [0, 1, 0], "rotation": [0, 0, 0.70710678, 0.70710678], "children": [2]},
    {"name": "tip", "translation": [1, 0, 0]}
  ],
  "skins": [{"joints": [0, 2]}],
  "animations": [
    {
      "name": "reach",
      "channels": [{"sampler": 0, "target": {"node": 2, "path": "translation"}}],
      "samplers": [{"input": 0, "output": 1}]
    }
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 2, "type": "SCALAR", "min": [0], "max": [1]},
    {"bufferView": 1, "componentType": 5126, "count": 2, "type": "VEC3"}
  ],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 8},
    {"buffer": 0, "byteOffset": 8, "byteLength": 24}
  ],
  "buffers": [{"byteLength": %d, "uri": "data:application/octet-stream;base64,%s"}]
}`)
}

func TestImportGLTFFoldsIntermediateNodes(t *testing.T) {
	lib := clip.NewLibrary()
	asset, err := ImportGLTF(bentGLTF(t), skeleton.NewRegistry(), lib)
	require.NoError(t, err)

	sk := asset.Skeleton
	require.Equal(t, 2, sk.JointCount())
	assert.Equal(t, "tip", sk.Joints[1].Name)
	assert.Equal(t, 0, sk.Joints[1].Parent)

	turn := mgl32.HomogRotate3DZ(math.Pi / 2)
	restTip := mgl32.Translate3D(0, 3, 0).Mul4(turn).Mul4(mgl32.Translate3D(1, 0, 0))
	assert.True(t, sk.Joints[1].InvBindPose.ApproxEqualThreshold(restTip.Inv(), 1e-5))

	pose := skeleton.NewPose(sk)
	pose.BuildBind(sk)
	assert.True(t, pose.Local[1].Position.ApproxEqualThreshold(mgl32.Vec3{0, 2, 0}, 1e-5))

	reach, err := lib.Clip("reach")
	require.NoError(t, err)
	reach.BuildLocalPose(0.5, &pose)
	assert.True(t, pose.Local[1].Position.ApproxEqualThreshold(mgl32.Vec3{0, 3, 0}, 1e-5))
	assert.True(t, common.QuatEqual(mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1}), pose.Local[1].Rotation, 1e-5))
}

func TestImportDocumentWithoutInverseBind(t *testing.T) {
	doc := &gltf.Document{
		Nodes: []*gltf.Node{
			{Name: "root", Translation: [3]float32{0, 2, 0}, Children: []uint32{1}},
			{Name: "tip", Translation: [3]float32{1, 0, 0}},
		},
		Skins: []*gltf.Skin{{Joints: []uint32{0, 1}}},
	}

	asset, err := ImportDocument(doc, "stick", skeleton.NewRegistry(), clip.NewLibrary())
	require.NoError(t, err)
	sk := asset.Skeleton
	assert.True(t, sk.Joints[0].InvBindPose.ApproxEqualThreshold(mgl32.Translate3D(0, -2, 0), 1e-5))
	assert.True(t, sk.Joints[1].InvBindPose.ApproxEqualThreshold(mgl32.Translate3D(-1, -2, 0), 1e-5))
	assert.Empty(t, asset.Clips)
}

func TestImportDocumentWithoutSkin(t *testing.T) {
	_, err := ImportDocument(&gltf.Document{}, "empty", skeleton.NewRegistry(), clip.NewLibrary())
	assert.ErrorIs(t, err, ErrNoSkin)
}

func TestIndex(t *testing.T) {
	five := uint32(5)
	tests := []struct {
		name string
		in   any
		want int
		ok   bool
	}{
		{"uint32", uint32(3), 3, true},
		{"uint32_pointer", &five, 5, true},
		{"nil_pointer", (*uint32)(nil), 0, false},
		{"int", 7, 7, true},
		{"other", "x", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := index(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
