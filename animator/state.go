package animator

import (
	"strings"

	"github.com/milk9111/blendrig/blend"
)

// TransitionType selects how the animator moves between states.
type TransitionType int

const (
	// Immediate switches state on request with no blending.
	Immediate TransitionType = iota
	// Smooth crossfades while both trees keep playing.
	Smooth
	// Frozen crossfades from a held pose of the current tree.
	Frozen
)

// ParseTransitionType maps "immediate", "smooth" and "frozen" to a type.
// Anything else is Immediate.
func ParseTransitionType(s string) TransitionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "smooth":
		return Smooth
	case "frozen":
		return Frozen
	default:
		return Immediate
	}
}

func (t TransitionType) String() string {
	switch t {
	case Smooth:
		return "smooth"
	case Frozen:
		return "frozen"
	default:
		return "immediate"
	}
}

// Transition is a named edge out of a state.
type Transition struct {
	Name        string
	Destination string
	Type        TransitionType
	Duration    float32
}

// State owns one blend tree and its outgoing transitions.
type State struct {
	Name string
	Tree *blend.Tree

	transitions map[string]Transition
	order       []string
	end         string
}

func newState(name string, ctx *blend.Context) *State {
	return &State{
		Name:        name,
		Tree:        blend.NewTree(ctx),
		transitions: make(map[string]Transition),
	}
}

// AddTransition registers tr under tr.Name. The first definition of a name
// wins; later ones are ignored and false is returned.
func (s *State) AddTransition(tr Transition) bool {
	if _, ok := s.transitions[tr.Name]; ok {
		return false
	}
	s.transitions[tr.Name] = tr
	s.order = append(s.order, tr.Name)
	return true
}

func (s *State) Transition(name string) (Transition, bool) {
	tr, ok := s.transitions[name]
	return tr, ok
}

// Transitions returns the state's transitions in the order they were added.
func (s *State) Transitions() []Transition {
	out := make([]Transition, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.transitions[name])
	}
	return out
}

// SetEndTransition names the transition to start automatically when the
// tree is about to finish. The transition must already exist.
func (s *State) SetEndTransition(name string) bool {
	if _, ok := s.transitions[name]; !ok {
		return false
	}
	s.end = name
	return true
}

func (s *State) EndTransition() (Transition, bool) {
	if s.end == "" {
		return Transition{}, false
	}
	return s.Transition(s.end)
}
