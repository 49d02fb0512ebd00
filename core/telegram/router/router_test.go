package router

import (
	"errors"
	"fmt"
	"testing"

	tg "github.com/m3rciful/coursebot/core/telegram"
	"github.com/m3rciful/coursebot/core/telegram/commands"
	"github.com/m3rciful/coursebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

type fakeCtx struct {
	tele.Context
	uid   int64
	text  string
	cb    *tele.Callback
	kv    map[string]interface{}
	resps int
}

func newCtx(uid int64, text string) *fakeCtx {
	return &fakeCtx{uid: uid, text: text, kv: map[string]interface{}{}}
}

func (f *fakeCtx) Sender() *tele.User { return &tele.User{ID: f.uid} }
func (f *fakeCtx) Chat() *tele.Chat { return &tele.Chat{ID: f.uid} }
func (f *fakeCtx) Update() tele.Update { return tele.Update{ID: 3} }
func (f *fakeCtx) Text() string { return f.text }
func (f *fakeCtx) Callback() *tele.Callback { return f.cb }
func (f *fakeCtx) Get(k string) interface{} { return f.kv[k] }
func (f *fakeCtx) Set(k string, v interface{}) { f.kv[k] = v }

func (f *fakeCtx) Respond(...*tele.CallbackResponse) error {
	f.resps++
	return nil
}

type fakeFSM struct {
	active map[int64]bool
	calls  int
}

func (m *fakeFSM) InProgress(id int64) bool { return m.active[id] }

func (m *fakeFSM) ManagerHandler(tele.Context) error {
	m.calls++
	return nil
}

type fallbacks struct{ hits []string }

func (f *fallbacks) hit(name string) tele.HandlerFunc {
	return func(tele.Context) error {
		f.hits = append(f.hits, name)
		return nil
	}
}

func (f *fallbacks) UnknownText() tele.HandlerFunc { return f.hit("text") }
func (f *fallbacks) UnknownDocument() tele.HandlerFunc { return f.hit("document") }
func (f *fallbacks) UnknownCallback() tele.HandlerFunc { return f.hit("callback") }

type fixture struct {
	opts  Options
	fsm   *fakeFSM
	fb    *fallbacks
	calls []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{fsm: &fakeFSM{active: map[int64]bool{}}, fb: &fallbacks{}}
	record := func(name string) tele.HandlerFunc {
		return func(tele.Context) error {
			f.calls = append(f.calls, name)
			return nil
		}
	}
	reg := tg.NewRegistry()
	for _, err := range []error{
		reg.RegisterCommand("/start", commands.Command{Handler: record("start"), Description: "Menu", Aliases: []string{"🏠 Menu"}}),
		reg.RegisterCommand("/admin", commands.Command{Handler: record("admin"), Description: "Admin", AdminOnly: true}),
		reg.RegisterCallback("menu", record("cb.menu")),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}
	f.opts = Options{
		Registry:  reg,
		FSM:       f.fsm,
		Guard:     middleware.AdminGuard{IsAdmin: func(id int64) bool { return id == 1 }},
		Fallbacks: f.fb,
	}
	return f
}

func routeFor(t *testing.T, routes []tg.Route, endpoint any) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("no route for %v", endpoint)
	return nil
}

func TestBuildRoutes(t *testing.T) {
	f := newFixture(t)
	routes := Build(f.opts)
	if len(routes) != 5 {
		t.Fatalf("routes = %d, want 2 commands + callback + text + document", len(routes))
	}

	_ = routeFor(t, routes, "/admin")(newCtx(2, "/admin"))
	_ = routeFor(t, routes, "/admin")(newCtx(1, "/admin"))
	if fmt.Sprint(f.calls) != "[admin]" {
		t.Fatalf("calls = %v, only the admin gets through", f.calls)
	}
	if Build(Options{}) != nil {
		t.Fatal("no registry, no routes")
	}
}

func TestTextRouting(t *testing.T) {
	f := newFixture(t)
	text := routeFor(t, Build(f.opts), tele.OnText)

	_ = text(newCtx(2, "🏠 Menu"))
	_ = text(newCtx(2, "/start now"))
	_ = text(newCtx(2, "hello"))
	f.fsm.active[2] = true
	_ = text(newCtx(2, "/start"))

	if fmt.Sprint(f.calls) != "[start start]" {
		t.Fatalf("calls = %v", f.calls)
	}
	if fmt.Sprint(f.fb.hits) != "[text]" {
		t.Fatalf("fallbacks = %v", f.fb.hits)
	}
	if f.fsm.calls != 1 {
		t.Fatalf("fsm calls = %d, want 1", f.fsm.calls)
	}
}

func TestDocumentRouting(t *testing.T) {
	f := newFixture(t)
	doc := routeFor(t, Build(f.opts), tele.OnDocument)
	_ = doc(newCtx(2, ""))
	f.fsm.active[2] = true
	_ = doc(newCtx(2, ""))
	if fmt.Sprint(f.fb.hits) != "[document]" || f.fsm.calls != 1 {
		t.Fatalf("fallbacks = %v, fsm calls = %d", f.fb.hits, f.fsm.calls)
	}
}

func TestCallbackRouting(t *testing.T) {
	f := newFixture(t)
	cb := routeFor(t, Build(f.opts), tele.OnCallback)

	c := newCtx(2, "")
	c.cb = &tele.Callback{Data: "\fmenu"}
	if err := cb(c); err != nil {
		t.Fatal(err)
	}
	stale := newCtx(2, "")
	stale.cb = &tele.Callback{Data: "\fgone|1"}
	if err := cb(stale); err != nil {
		t.Fatal(err)
	}

	if fmt.Sprint(f.calls) != "[cb.menu]" || fmt.Sprint(f.fb.hits) != "[callback]" {
		t.Fatalf("calls = %v, fallbacks = %v", f.calls, f.fb.hits)
	}
	if c.resps != 1 || stale.resps != 1 {
		t.Fatal("unanswered presses must be answered")
	}
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string { return "invalid transition" }

func TestErrCode(t *testing.T) {
	cases := map[string]error{
		"INVALID_TRANSITION": fmt.Errorf("wrap: %w", codedErr{}),
		"PANIC":              fmt.Errorf("%w: boom", middleware.ErrPanic),
		"INTERNAL":           errors.New("plain"),
	}
	for want, err := range cases {
		if got := errCode(err); got != want {
			t.Errorf("errCode(%v) = %q, want %q", err, got, want)
		}
	}
}
