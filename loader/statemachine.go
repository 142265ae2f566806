package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/milk9111/blendrig/animator"
	"github.com/milk9111/blendrig/blend"
	"github.com/milk9111/blendrig/param"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingField    = errors.New("loader: missing required field")
	ErrUnknownNodeType = errors.New("loader: unknown node type")
	ErrUnknownVariable = errors.New("loader: node has no such variable")
	ErrEndTransition   = errors.New("loader: end transition is not defined on the state")
)

// Document is a state machine description. JSON documents decode as well,
// since the field names are the same.
type Document struct {
	Params []ParamDoc `yaml:"param"`
	States []StateDoc `yaml:"state"`
}

type ParamDoc struct {
	Name  string  `yaml:"name"`
	Value float32 `yaml:"value"`
}

type StateDoc struct {
	Name          string          `yaml:"name"`
	Tree          *NodeDoc        `yaml:"tree"`
	Transitions   []TransitionDoc `yaml:"transition"`
	EndTransition string          `yaml:"endTransition"`
}

type TransitionDoc struct {
	Name        string  `yaml:"name"`
	Destination string  `yaml:"destination"`
	Type        string  `yaml:"type"`
	Duration    float32 `yaml:"duration"`
}

// NodeDoc describes one blend node and, recursively, its inputs.
type NodeDoc struct {
	Type          string          `yaml:"type"`
	Clip          string          `yaml:"clip"`
	Looping       bool            `yaml:"looping"`
	PlaybackSpeed *float32        `yaml:"playbackSpeed"`
	Alpha         float32         `yaml:"alpha"`
	Beta          float32         `yaml:"beta"`
	ScaleClips    *bool           `yaml:"scaleClips"`
	InputAlpha    []InputAlphaDoc `yaml:"inputAlpha"`
	Inputs        []NodeDoc       `yaml:"input"`
	Observers     []ObserverDoc   `yaml:"observer"`
}

// InputAlphaDoc places input slot Input of a general linear blend at Alpha.
type InputAlphaDoc struct {
	Input int     `yaml:"input"`
	Alpha float32 `yaml:"alpha"`
}

// ObserverDoc binds the node variable Name to the parameter Param.
type ObserverDoc struct {
	Name  string `yaml:"name"`
	Param string `yaml:"param"`
}

// Parse decodes a state machine document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "loader: decode state machine")
	}
	return &doc, nil
}

// LoadFile reads and decodes a state machine document from path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loader: read %q", path)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loader: %q", path)
	}
	return doc, nil
}

// Build creates the document's parameters and states on a. It has the shape
// animator.Reload expects, so a failed build leaves a cleared.
func (d *Document) Build(a *animator.Animator) error {
	for i, p := range d.Params {
		if strings.TrimSpace(p.Name) == "" {
			return errors.Wrapf(ErrMissingField, "param[%d].name", i)
		}
		a.Params().Create(p.Name, p.Value)
	}

	// States first so a transition may name a state defined later.
	states := make([]*animator.State, len(d.States))
	for i, sd := range d.States {
		if strings.TrimSpace(sd.Name) == "" {
			return errors.Wrapf(ErrMissingField, "state[%d].name", i)
		}
		if sd.Tree == nil {
			return errors.Wrapf(ErrMissingField, "state[%d].tree", i)
		}
		s, err := a.CreateState(sd.Name)
		if err != nil {
			return errors.Wrapf(err, "state[%d]", i)
		}
		states[i] = s
	}

	for i, sd := range d.States {
		s := states[i]
		b := &treeBuilder{tree: s.Tree, params: a.Params()}
		root, err := b.node(sd.Tree, fmt.Sprintf("state[%d].tree", i))
		if err != nil {
			return err
		}
		if err := s.Tree.SetOutput(root); err != nil {
			return errors.Wrapf(err, "state[%d].tree", i)
		}

		for j, td := range sd.Transitions {
			path := fmt.Sprintf("state[%d].transition[%d]", i, j)
			if td.Name == "" {
				return errors.Wrapf(ErrMissingField, "%s.name", path)
			}
			if td.Destination == "" {
				return errors.Wrapf(ErrMissingField, "%s.destination", path)
			}
			s.AddTransition(animator.Transition{
				Name:        td.Name,
				Destination: td.Destination,
				Type:        animator.ParseTransitionType(td.Type),
				Duration:    td.Duration,
			})
		}

		if sd.EndTransition != "" && !s.SetEndTransition(sd.EndTransition) {
			return errors.Wrapf(ErrEndTransition, "state[%d].endTransition %q", i, sd.EndTransition)
		}
	}

	// Trees were built before the first state was started.
	if cur, ok := a.State(a.CurrentState()); ok {
		cur.Tree.Start()
	}
	return nil
}

type treeBuilder struct {
	tree   *blend.Tree
	params *param.Table
}

func (b *treeBuilder) node(nd *NodeDoc, path string) (int, error) {
	if nd.Type == "" {
		return 0, errors.Wrapf(ErrMissingField, "%s.type", path)
	}

	var idx int
	switch nd.Type {
	case "clipSample":
		if nd.Clip == "" {
			return 0, errors.Wrapf(ErrMissingField, "%s.clip", path)
		}
		n := blend.NewClipSample(b.tree.Context(), nd.Clip, nd.Looping)
		if nd.PlaybackSpeed != nil {
			n.Sampler().Speed = *nd.PlaybackSpeed
		}
		idx = b.tree.Add(n)
	case "linearBlend":
		n := blend.NewLinearBlend()
		n.Alpha = nd.Alpha
		if nd.ScaleClips != nil {
			n.ScaleClips = *nd.ScaleClips
		}
		idx = b.tree.Add(n)
	case "bilinearBlend":
		n := blend.NewBilinearBlend()
		n.Alpha = nd.Alpha
		n.Beta = nd.Beta
		if nd.ScaleClips != nil {
			n.ScaleClips = *nd.ScaleClips
		}
		idx = b.tree.Add(n)
	case "generalLinearBlend":
		n := blend.NewGeneralLinearBlend()
		if nd.ScaleClips != nil {
			n.ScaleClips = *nd.ScaleClips
		}
		for _, ia := range nd.InputAlpha {
			n.SetPlacement(ia.Input, ia.Alpha)
		}
		n.SetAlpha(nd.Alpha)
		idx = b.tree.Add(n)
	case "ragdoll":
		// The animator binds its ragdoll after the load.
		idx = b.tree.Add(blend.NewRagdollSample(nil))
	default:
		return 0, errors.Wrapf(ErrUnknownNodeType, "%s.type %q", path, nd.Type)
	}

	for slot := range nd.Inputs {
		inPath := fmt.Sprintf("%s.input[%d]", path, slot)
		in, err := b.node(&nd.Inputs[slot], inPath)
		if err != nil {
			return 0, err
		}
		if err := b.tree.SetInput(idx, slot, in); err != nil {
			return 0, errors.Wrap(err, inPath)
		}
	}

	for i, od := range nd.Observers {
		obPath := fmt.Sprintf("%s.observer[%d]", path, i)
		if od.Name == "" {
			return 0, errors.Wrapf(ErrMissingField, "%s.name", obPath)
		}
		if od.Param == "" {
			return 0, errors.Wrapf(ErrMissingField, "%s.param", obPath)
		}
		v, err := b.params.Get(od.Param)
		if err != nil {
			return 0, errors.Wrap(err, obPath)
		}
		if !b.tree.SetField(idx, od.Name, v) {
			return 0, errors.Wrapf(ErrUnknownVariable, "%s %q on %s", obPath, od.Name, nd.Type)
		}
		err = b.params.Subscribe(param.Subscription{Param: od.Param, Target: b.tree, Node: idx, Field: od.Name})
		if err != nil {
			return 0, errors.Wrap(err, obPath)
		}
	}
	return idx, nil
}
