package animator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/blendrig/blend"
	"github.com/milk9111/blendrig/logging"
	"github.com/milk9111/blendrig/param"
	"github.com/milk9111/blendrig/ragdoll"
	"github.com/milk9111/blendrig/skeleton"
)

var (
	ErrTransitionPending = errors.New("animator: transition already pending")
	ErrUnknownTransition = errors.New("animator: unknown transition")
	ErrUnknownState      = errors.New("animator: unknown state")
	ErrNoCurrentState    = errors.New("animator: no current state")
	ErrDuplicateState    = errors.New("animator: duplicate state")
)

// Recorder receives animator events. metrics.Collector implements it.
type Recorder interface {
	Tick(animator string)
	TransitionStarted(animator, transition string, kind TransitionType)
	TransitionCommitted(animator, state string)
	TransitionRejected(animator, transition string)
	EvaluationFailed(animator, state string)
}

type nopRecorder struct{}

func (nopRecorder) Tick(string)                                      {}
func (nopRecorder) TransitionStarted(string, string, TransitionType) {}
func (nopRecorder) TransitionCommitted(string, string)               {}
func (nopRecorder) TransitionRejected(string, string)                {}
func (nopRecorder) EvaluationFailed(string, string)                  {}

type Options struct {
	Name     string
	Log      *slog.Logger
	Recorder Recorder
}

// Animator runs a state machine of blend trees for one skeleton and produces
// a skinning palette every update.
type Animator struct {
	name string
	ctx  *blend.Context
	sk   *skeleton.Skeleton

	bind    skeleton.Pose
	pose    skeleton.Pose
	scratch skeleton.Pose
	palette []mgl32.Mat4

	states  map[string]*State
	order   []string
	current *State
	next    *State
	pending Transition

	// endRejected is set once the current state's end transition failed to
	// start. It is cleared when a state is entered.
	endRejected bool

	params  *param.Table
	ragdoll ragdoll.Ragdoll

	log *slog.Logger
	rec Recorder
}

// New creates an animator posing ctx.Skeleton. The pose and palette start at
// the bind pose.
func New(ctx *blend.Context, opts Options) *Animator {
	if opts.Log == nil {
		opts.Log = logging.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	sk := ctx.Skeleton
	a := &Animator{
		name:    opts.Name,
		ctx:     ctx,
		sk:      sk,
		bind:    skeleton.NewPose(sk),
		palette: make([]mgl32.Mat4, sk.JointCount()),
		states:  make(map[string]*State),
		params:  param.NewTable(opts.Log),
		log:     opts.Log,
		rec:     opts.Recorder,
	}
	a.bind.BuildBind(sk)
	a.pose = a.bind.Clone()
	a.scratch = a.bind.Clone()
	a.buildPalette()
	return a
}

func (a *Animator) Name() string                 { return a.name }
func (a *Animator) Context() *blend.Context      { return a.ctx }
func (a *Animator) Skeleton() *skeleton.Skeleton { return a.sk }
func (a *Animator) Params() *param.Table         { return a.params }

// Palette returns the skinning matrices from the last update. The slice is
// reused across updates.
func (a *Animator) Palette() []mgl32.Mat4 { return a.palette }

// Pose returns the last valid pose. Callers must not modify it.
func (a *Animator) Pose() *skeleton.Pose { return &a.pose }

func (a *Animator) BindPose() *skeleton.Pose { return &a.bind }

// AttachRagdoll connects r to the animator and to every ragdoll node in the
// loaded states. A nil r detaches. A different ragdoll attached before is
// closed.
func (a *Animator) AttachRagdoll(r ragdoll.Ragdoll) {
	if a.ragdoll != nil && a.ragdoll != r {
		a.ragdoll.Close()
	}
	a.ragdoll = r
	for _, s := range a.states {
		s.Tree.BindRagdoll(r)
	}
}

func (a *Animator) Ragdoll() ragdoll.Ragdoll { return a.ragdoll }

// CreateState adds an empty state. The first state created becomes current.
func (a *Animator) CreateState(name string) (*State, error) {
	if _, ok := a.states[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateState, name)
	}
	s := newState(name, a.ctx)
	a.states[name] = s
	a.order = append(a.order, name)
	if a.current == nil {
		a.current = s
		a.endRejected = false
		s.Tree.Start()
	}
	return s, nil
}

func (a *Animator) State(name string) (*State, bool) {
	s, ok := a.states[name]
	return s, ok
}

// States returns the state names in creation order.
func (a *Animator) States() []string {
	return append([]string(nil), a.order...)
}

// CurrentState returns the name of the current state or "".
func (a *Animator) CurrentState() string {
	if a.current == nil {
		return ""
	}
	return a.current.Name
}

// NextState returns the destination of the pending transition or "".
func (a *Animator) NextState() string {
	if a.next == nil {
		return ""
	}
	return a.next.Name
}

// Pending returns the in-flight transition, if any.
func (a *Animator) Pending() (Transition, bool) {
	if a.next == nil {
		return Transition{}, false
	}
	return a.pending, true
}

// Progress returns how far the pending transition has run, in [0, 1].
// A transition with no duration is complete as soon as it starts.
func (a *Animator) Progress() float32 {
	if a.next == nil {
		return 0
	}
	if a.pending.Duration <= 0 {
		return 1
	}
	p := (a.ctx.Clock.Now() - a.next.Tree.StartTime()) / a.pending.Duration
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Jump makes name the current state without a transition and drops any
// pending one.
func (a *Animator) Jump(name string) error {
	s, ok := a.states[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownState, name)
	}
	a.next = nil
	a.pending = Transition{}
	a.current = s
	a.endRejected = false
	s.Tree.Start()
	return nil
}

// Transition requests the named transition from the current state.
func (a *Animator) Transition(name string) bool {
	return a.TransitionErr(name) == nil
}

// TransitionErr is Transition with the reason for a rejection.
func (a *Animator) TransitionErr(name string) error {
	err := a.startTransition(name)
	if err != nil {
		a.rec.TransitionRejected(a.name, name)
		a.log.Debug("animator: transition rejected", "animator", a.name, "transition", name, "error", err)
	}
	return err
}

func (a *Animator) startTransition(name string) error {
	if a.current == nil {
		return ErrNoCurrentState
	}
	if a.next != nil {
		return fmt.Errorf("%w: %q to %q", ErrTransitionPending, a.pending.Name, a.next.Name)
	}
	tr, ok := a.current.Transition(name)
	if !ok {
		return fmt.Errorf("%w: %q from %q", ErrUnknownTransition, name, a.current.Name)
	}
	dest, ok := a.states[tr.Destination]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownState, tr.Destination)
	}

	a.rec.TransitionStarted(a.name, name, tr.Type)
	if tr.Type == Immediate {
		a.current = dest
		a.endRejected = false
		dest.Tree.Start()
		a.rec.TransitionCommitted(a.name, dest.Name)
		return nil
	}
	a.pending = tr
	a.next = dest
	dest.Tree.Start()
	return nil
}

// Update advances the state machine by the clock's current tick, then
// rebuilds the palette. The clock must be advanced before calling it.
func (a *Animator) Update() {
	if len(a.states) == 0 || a.current == nil {
		return
	}
	a.rec.Tick(a.name)

	scale := float32(1)
	if a.next != nil && a.pending.Type == Frozen {
		scale = 0
	}
	ok := a.current.Tree.TickAndEvaluate(&a.scratch, scale)
	if !ok {
		a.rec.EvaluationFailed(a.name, a.current.Name)
	}

	if a.next != nil {
		dest := skeleton.NewPose(a.sk)
		destOK := a.next.Tree.TickAndEvaluate(&dest, 1)
		if !destOK {
			a.rec.EvaluationFailed(a.name, a.next.Name)
		}
		progress := a.Progress()
		switch {
		case ok && destOK:
			a.scratch = skeleton.Lerp(a.sk, a.scratch, dest, progress)
		case destOK:
			a.scratch = dest
			ok = true
		}
		if progress >= 1 {
			a.current = a.next
			a.next = nil
			a.pending = Transition{}
			a.endRejected = false
			a.rec.TransitionCommitted(a.name, a.current.Name)
		}
	} else if end, has := a.current.EndTransition(); has && !a.endRejected && a.current.Tree.RemainingDuration() <= end.Duration {
		a.endRejected = a.TransitionErr(end.Name) != nil
	}

	if ok {
		a.scratch.BuildGlobal(a.sk)
		a.pose.CopyFrom(a.scratch)
	}

	if a.ragdoll != nil {
		if a.ragdoll.Dirty() {
			a.ragdoll.SetDirty(false)
		} else {
			a.ragdoll.MatchPose(&a.pose)
		}
	}

	a.buildPalette()
}

func (a *Animator) buildPalette() {
	for i, j := range a.sk.Joints {
		a.palette[i] = a.pose.Global[i].Mul4(j.InvBindPose)
	}
}

// Clear drops every state and parameter. The last pose and palette are kept.
func (a *Animator) Clear() {
	a.states = make(map[string]*State)
	a.order = nil
	a.current = nil
	a.next = nil
	a.pending = Transition{}
	a.endRejected = false
	a.params.Clear()
}

// Reload replaces the state machine with whatever load builds. On failure
// the animator is left cleared. On success the previously current state is
// kept when the new machine still has it.
func (a *Animator) Reload(load func(*Animator) error) error {
	prev := a.CurrentState()
	a.Clear()
	if err := load(a); err != nil {
		a.Clear()
		return err
	}
	if a.ragdoll != nil {
		a.AttachRagdoll(a.ragdoll)
	}
	if prev != "" {
		if _, ok := a.states[prev]; ok {
			return a.Jump(prev)
		}
	}
	return nil
}
