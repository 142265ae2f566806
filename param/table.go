package param

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/milk9111/blendrig/logging"
)

var (
	ErrParamNotFound = errors.New("param: parameter not found")
	ErrNilTarget     = errors.New("param: subscription has no target")
)

// Binder is anything that can receive a parameter value for one field of one
// node. blend.Tree implements it.
type Binder interface {
	SetField(node int, field string, value float32) bool
}

// Subscription binds a parameter to a named field of a node in a target.
// The node is looked up at fire time so the subscription never holds a
// pointer into the target's storage.
type Subscription struct {
	Param  string
	Target Binder
	Node   int
	Field  string
}

type entry struct {
	value float32
	subs  []Subscription
}

// Table holds named scalar parameters and pushes every change to their
// subscribers in subscription order.
type Table struct {
	params map[string]*entry
	order  []string
	log    *slog.Logger
}

func NewTable(log *slog.Logger) *Table {
	if log == nil {
		log = logging.NewNop()
	}
	return &Table{
		params: make(map[string]*entry),
		log:    log,
	}
}

// Create defines a parameter. Redefining an existing name keeps the first
// value and subscribers and returns false.
func (t *Table) Create(name string, value float32) bool {
	if _, ok := t.params[name]; ok {
		t.log.Debug("param: ignoring redefinition", "name", name, "value", value)
		return false
	}
	t.params[name] = &entry{value: value}
	t.order = append(t.order, name)
	return true
}

// Subscribe registers sub and immediately pushes the current value to it.
func (t *Table) Subscribe(sub Subscription) error {
	if sub.Target == nil {
		return ErrNilTarget
	}
	e, ok := t.params[sub.Param]
	if !ok {
		return fmt.Errorf("%w: %q", ErrParamNotFound, sub.Param)
	}
	e.subs = append(e.subs, sub)
	t.fire(sub, e.value)
	return nil
}

// Set stores value and notifies the parameter's subscribers.
func (t *Table) Set(name string, value float32) error {
	e, ok := t.params[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrParamNotFound, name)
	}
	e.value = value
	for _, sub := range e.subs {
		t.fire(sub, value)
	}
	return nil
}

func (t *Table) Get(name string) (float32, error) {
	e, ok := t.params[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrParamNotFound, name)
	}
	return e.value, nil
}

func (t *Table) Exists(name string) bool {
	_, ok := t.params[name]
	return ok
}

// Names returns parameter names in creation order.
func (t *Table) Names() []string {
	return append([]string(nil), t.order...)
}

// Values returns a snapshot of every parameter value.
func (t *Table) Values() map[string]float32 {
	out := make(map[string]float32, len(t.params))
	for name, e := range t.params {
		out[name] = e.value
	}
	return out
}

// Subscriptions returns the subscribers of a parameter in firing order.
func (t *Table) Subscriptions(name string) []Subscription {
	e, ok := t.params[name]
	if !ok {
		return nil
	}
	return append([]Subscription(nil), e.subs...)
}

// UpdateAll re-pushes every current value to every subscriber.
func (t *Table) UpdateAll() {
	for _, name := range t.order {
		e := t.params[name]
		for _, sub := range e.subs {
			t.fire(sub, e.value)
		}
	}
}

// Clear removes every parameter and subscription.
func (t *Table) Clear() {
	t.params = make(map[string]*entry)
	t.order = nil
}

func (t *Table) fire(sub Subscription, value float32) {
	if !sub.Target.SetField(sub.Node, sub.Field, value) {
		t.log.Debug("param: subscriber rejected value", "param", sub.Param, "node", sub.Node, "field", sub.Field)
	}
}
