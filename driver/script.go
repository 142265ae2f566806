// Package driver runs tengo scripts that steer an animator every tick by
// setting parameters and requesting transitions.
//
// A script defines update(engine, state). engine exposes:
//
//	param(name)            current value, or undefined
//	set_param(name, value) true when the parameter exists
//	transition(name)       true when the transition started
//	state()                name of the current state
//	pending()              true while a transition is blending
//	progress()             progress of the pending transition
//	time(), dt()           clock time and tick length in seconds
//	log(args...)           debug log line
//
// state is a map that persists between ticks.
package driver

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/milk9111/blendrig/animator"
	"github.com/milk9111/blendrig/logging"
)

const dispatchScript = `
update(__engine, __state)
`

type Script struct {
	name     string
	compiled *tengo.Compiled
	anim     *animator.Animator
	state    *tengo.Map
	log      *slog.Logger
}

// Compile prepares src to drive a.
func Compile(name string, src []byte, a *animator.Animator, log *slog.Logger) (*Script, error) {
	if log == nil {
		log = logging.NewNop()
	}
	script := tengo.NewScript([]byte(string(src) + "\n" + dispatchScript))
	_ = script.Add("__engine", map[string]any{})
	_ = script.Add("__state", map[string]any{})
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("driver: compile %s: %w", name, err)
	}
	return &Script{
		name:     name,
		compiled: compiled,
		anim:     a,
		state:    &tengo.Map{Value: map[string]tengo.Object{}},
		log:      log,
	}, nil
}

// Load compiles the script file at path.
func Load(path string, a *animator.Animator, log *slog.Logger) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("driver: load %s: %w", path, err)
	}
	return Compile(path, src, a, log)
}

func (s *Script) Name() string { return s.name }

// Value returns a script state entry converted to Go, or nil.
func (s *Script) Value(key string) any {
	obj, ok := s.state.Value[key]
	if !ok {
		return nil
	}
	return tengo.ToInterface(obj)
}

// Drive runs update once. It satisfies engine.Driver.
func (s *Script) Drive(now, dt float32) error {
	if err := s.compiled.Set("__engine", s.engine(now, dt)); err != nil {
		return err
	}
	if err := s.compiled.Set("__state", s.state); err != nil {
		return err
	}
	if err := s.compiled.Run(); err != nil {
		return fmt.Errorf("driver: %s: %w", s.name, err)
	}
	return nil
}

func (s *Script) engine(now, dt float32) *tengo.ImmutableMap {
	a := s.anim
	values := map[string]tengo.Object{}

	values["param"] = &tengo.UserFunction{Name: "param", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return tengo.UndefinedValue, nil
		}
		v, err := a.Params().Get(objectAsString(args[0]))
		if err != nil {
			return tengo.UndefinedValue, nil
		}
		return &tengo.Float{Value: float64(v)}, nil
	}}

	values["set_param"] = &tengo.UserFunction{Name: "set_param", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 2 {
			return tengo.FalseValue, nil
		}
		v, ok := objectAsFloat(args[1])
		if !ok {
			return tengo.FalseValue, nil
		}
		if err := a.Params().Set(objectAsString(args[0]), v); err != nil {
			return tengo.FalseValue, nil
		}
		return tengo.TrueValue, nil
	}}

	values["transition"] = &tengo.UserFunction{Name: "transition", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return tengo.FalseValue, nil
		}
		name := strings.TrimSpace(objectAsString(args[0]))
		if name == "" || !a.Transition(name) {
			return tengo.FalseValue, nil
		}
		return tengo.TrueValue, nil
	}}

	values["state"] = &tengo.UserFunction{Name: "state", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.String{Value: a.CurrentState()}, nil
	}}

	values["pending"] = &tengo.UserFunction{Name: "pending", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if _, ok := a.Pending(); ok {
			return tengo.TrueValue, nil
		}
		return tengo.FalseValue, nil
	}}

	values["progress"] = &tengo.UserFunction{Name: "progress", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.Float{Value: float64(a.Progress())}, nil
	}}

	values["time"] = &tengo.UserFunction{Name: "time", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.Float{Value: float64(now)}, nil
	}}

	values["dt"] = &tengo.UserFunction{Name: "dt", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.Float{Value: float64(dt)}, nil
	}}

	values["log"] = &tengo.UserFunction{Name: "log", Value: func(args ...tengo.Object) (tengo.Object, error) {
		parts := make([]string, 0, len(args))
		for _, arg := range args {
			parts = append(parts, objectAsString(arg))
		}
		s.log.Debug("driver: "+strings.Join(parts, " "), "script", s.name, "animator", a.Name())
		return tengo.UndefinedValue, nil
	}}

	return &tengo.ImmutableMap{Value: values}
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func objectAsFloat(obj tengo.Object) (float32, bool) {
	switch v := obj.(type) {
	case *tengo.Float:
		return float32(v.Value), true
	case *tengo.Int:
		return float32(v.Value), true
	case *tengo.Bool:
		if v.IsFalsy() {
			return 0, true
		}
		return 1, true
	}
	return 0, false
}
