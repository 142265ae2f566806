package skeleton

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ID identifies a skeleton inside a Registry.
type ID uint8

// MaxSkeletons is the number of skeletons a Registry can hold.
const MaxSkeletons = 255

var (
	ErrBadParent    = errors.New("skeleton: joint parent must precede the joint")
	ErrNoJoints     = errors.New("skeleton: no joints")
	ErrRegistryFull = errors.New("skeleton: registry full")
	ErrNotFound     = errors.New("skeleton: not found")
)

// Joint is one bone of a skeleton. Parent is -1 for roots.
type Joint struct {
	Name        string
	Parent      int
	InvBindPose mgl32.Mat4
}

// Skeleton is an immutable joint hierarchy stored parents-first.
type Skeleton struct {
	ID     ID
	Name   string
	Joints []Joint
}

// Validate checks that every joint's parent is -1 or an earlier joint.
func Validate(joints []Joint) error {
	if len(joints) == 0 {
		return ErrNoJoints
	}
	for i, j := range joints {
		if j.Parent < -1 || j.Parent >= i {
			return fmt.Errorf("%w: joint %d (%q) has parent %d", ErrBadParent, i, j.Name, j.Parent)
		}
	}
	return nil
}

// JointCount returns the number of joints, 0 for a nil skeleton.
func (s *Skeleton) JointCount() int {
	if s == nil {
		return 0
	}
	return len(s.Joints)
}

// JointIndex returns the index of the named joint or -1.
func (s *Skeleton) JointIndex(name string) int {
	if s == nil {
		return -1
	}
	for i := range s.Joints {
		if s.Joints[i].Name == name {
			return i
		}
	}
	return -1
}

// Registry owns every skeleton created through it. Skeletons are immutable
// once created.
type Registry struct {
	skeletons []*Skeleton
	byName    map[string]ID
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]ID)}
}

// Create validates the joints and registers a new skeleton. The joints slice
// is copied.
func (r *Registry) Create(name string, joints []Joint) (*Skeleton, error) {
	if err := Validate(joints); err != nil {
		return nil, err
	}
	if len(r.skeletons) >= MaxSkeletons {
		return nil, ErrRegistryFull
	}
	sk := &Skeleton{
		ID:     ID(len(r.skeletons)),
		Name:   name,
		Joints: append([]Joint(nil), joints...),
	}
	r.skeletons = append(r.skeletons, sk)
	if name != "" {
		r.byName[name] = sk.ID
	}
	return sk, nil
}

func (r *Registry) Get(id ID) (*Skeleton, error) {
	if int(id) >= len(r.skeletons) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return r.skeletons[id], nil
}

func (r *Registry) ByName(name string) (*Skeleton, error) {
	id, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return r.skeletons[id], nil
}

func (r *Registry) Len() int {
	return len(r.skeletons)
}
