package state

import (
	"errors"
	"fmt"
	"sort"

	tele "gopkg.in/telebot.v4"
)

// ErrIllegalStep is returned when a flow is asked to follow an edge that its
// transition table does not contain.
var ErrIllegalStep = errors.New("fsm: illegal step")

// Flow is a conversation with named states and an explicit transition table.
// Idle is implicit: Begin enters the first state, Finish returns to idle from
// any state the flow owns.
type Flow struct {
	name  string
	first State
	next  map[State][]State
	steps map[State]tele.HandlerFunc
}

// NewFlow declares a flow entered at first.
func NewFlow(name string, first State) *Flow {
	return &Flow{
		name:  name,
		first: first,
		next:  make(map[State][]State),
		steps: make(map[State]tele.HandlerFunc),
	}
}

// Step declares st with its input handler and the states it may move to.
// A step without successors is the last one; its handler is expected to Finish.
func (f *Flow) Step(st State, h tele.HandlerFunc, next ...State) *Flow {
	f.steps[st] = h
	f.next[st] = append([]State(nil), next...)
	return f
}

// Name returns the flow name, used in logs.
func (f *Flow) Name() string { return f.name }

// First returns the entry state.
func (f *Flow) First() State { return f.first }

// Owns reports whether st is one of the flow's declared states.
func (f *Flow) Owns(st State) bool {
	_, ok := f.steps[st]
	return ok
}

// CanMove reports whether the table has an edge from -> to.
func (f *Flow) CanMove(from, to State) bool {
	for _, st := range f.next[from] {
		if st == to {
			return true
		}
	}
	return false
}

// States lists the declared states in a stable order.
func (f *Flow) States() []State {
	out := make([]State, 0, len(f.steps))
	for st := range f.steps {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Register binds every step handler on mgr.
func (f *Flow) Register(mgr Manager) {
	for st, h := range f.steps {
		mgr.Handle(st, h)
	}
}

// Begin drops any previous session of the user and enters the first state.
func (f *Flow) Begin(mgr Manager, userID int64) {
	mgr.Clear(userID)
	mgr.SetState(userID, f.first)
}

// Advance moves the user to the next state if the table allows it.
func (f *Flow) Advance(mgr Manager, userID int64, to State) error {
	from := mgr.GetState(userID)
	if !f.Owns(from) || !f.CanMove(from, to) {
		return fmt.Errorf("%w: %s: %s -> %s", ErrIllegalStep, f.name, from, to)
	}
	mgr.SetState(userID, to)
	return nil
}

// Finish ends the conversation and discards its temporary data.
func (f *Flow) Finish(mgr Manager, userID int64) {
	mgr.Clear(userID)
}

// Active reports whether the user is currently inside this flow.
func (f *Flow) Active(mgr Manager, userID int64) bool {
	return f.Owns(mgr.GetState(userID))
}
