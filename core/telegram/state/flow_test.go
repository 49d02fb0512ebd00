package state

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

const (
	stName  State = "wizard.name"
	stEmail State = "wizard.email"
)

func noop(tele.Context) error { return nil }

func newWizard() *Flow {
	return NewFlow("wizard", stName).
		Step(stName, noop, stEmail).
		Step(stEmail, noop)
}

func TestFlowWalk(t *testing.T) {
	mgr := NewMemoryManager()
	flow := newWizard()
	flow.Register(mgr)

	const user = int64(42)
	mgr.SetTemp(user, "stale", "x")
	flow.Begin(mgr, user)

	if got := mgr.GetState(user); got != stName {
		t.Fatalf("state after Begin = %q, want %q", got, stName)
	}
	if _, ok := mgr.GetTemp(user, "stale"); ok {
		t.Fatal("Begin must drop previous session data")
	}
	if !flow.Active(mgr, user) || !mgr.InProgress(user) {
		t.Fatal("user should be inside the flow")
	}

	if err := flow.Advance(mgr, user, stEmail); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := flow.Advance(mgr, user, stName); !errors.Is(err, ErrIllegalStep) {
		t.Fatalf("backwards step err = %v, want ErrIllegalStep", err)
	}
	if got := mgr.GetState(user); got != stEmail {
		t.Fatalf("illegal step must not move the user, state = %q", got)
	}

	flow.Finish(mgr, user)
	if mgr.InProgress(user) {
		t.Fatal("Finish must return the user to idle")
	}
}

func TestFlowAdvanceFromIdle(t *testing.T) {
	mgr := NewMemoryManager()
	flow := newWizard()
	if err := flow.Advance(mgr, 1, stEmail); !errors.Is(err, ErrIllegalStep) {
		t.Fatalf("err = %v, want ErrIllegalStep", err)
	}
}

func TestFlowStatesSorted(t *testing.T) {
	got := newWizard().States()
	if len(got) != 2 || got[0] != stEmail || got[1] != stName {
		t.Fatalf("States() = %v", got)
	}
}
