package middleware

import (
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type fakeCtx struct {
	tele.Context
	user  *tele.User
	upd   tele.Update
	kv    map[string]interface{}
	sent  []interface{}
	resps []*tele.CallbackResponse
}

func newCtx(uid int64) *fakeCtx {
	return &fakeCtx{
		user: &tele.User{ID: uid},
		upd:  tele.Update{ID: 7, Message: &tele.Message{Text: "hi"}},
		kv:   map[string]interface{}{},
	}
}

func (f *fakeCtx) Sender() *tele.User { return f.user }
func (f *fakeCtx) Chat() *tele.Chat { return &tele.Chat{ID: f.user.ID, Type: tele.ChatPrivate} }
func (f *fakeCtx) Update() tele.Update { return f.upd }
func (f *fakeCtx) Callback() *tele.Callback { return f.upd.Callback }
func (f *fakeCtx) Text() string { return "hi" }
func (f *fakeCtx) Get(k string) interface{} { return f.kv[k] }
func (f *fakeCtx) Set(k string, v interface{}) { f.kv[k] = v }

func (f *fakeCtx) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, what)
	return nil
}

func (f *fakeCtx) EditOrSend(what interface{}, opts ...interface{}) error {
	if what == "fail" {
		return errors.New("edit failed")
	}
	return f.Send(what, opts...)
}

func (f *fakeCtx) Respond(r ...*tele.CallbackResponse) error {
	f.resps = append(f.resps, r...)
	return nil
}

func ok(tele.Context) error { return nil }

func TestAdminGuard(t *testing.T) {
	var rejected, reached int
	g := AdminGuard{
		IsAdmin:  func(id int64) bool { return id == 1 },
		OnReject: func(tele.Context) error { rejected++; return nil },
	}
	h := g.Wrap(func(tele.Context) error { reached++; return nil })

	if err := h(newCtx(1)); err != nil {
		t.Fatal(err)
	}
	if err := h(newCtx(2)); err != nil {
		t.Fatal(err)
	}
	if reached != 1 || rejected != 1 {
		t.Fatalf("reached=%d rejected=%d, want 1/1", reached, rejected)
	}
	if (AdminGuard{}).Allowed(newCtx(1)) {
		t.Fatal("nil IsAdmin must deny")
	}
}

func TestRecover(t *testing.T) {
	err := Recover(func(tele.Context) error { panic("boom") })(newCtx(1))
	if !errors.Is(err, ErrPanic) {
		t.Fatalf("err = %v, want ErrPanic", err)
	}
	if err := Recover(ok)(newCtx(1)); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestCount(t *testing.T) {
	c := newCtx(1)
	h := Count(func(c tele.Context) error {
		_ = c.Send("plain")
		_ = c.EditOrSend("menu", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}})
		_ = c.EditOrSend("fail")
		return nil
	})
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	got := CountersOf(c)
	if got.Messages != 2 || !got.Keyboard {
		t.Fatalf("counters = %+v, want 2 messages with keyboard", got)
	}
	if (CountersOf(newCtx(2)) != Counters{}) {
		t.Fatal("uncounted context must report zero")
	}
}

func TestRateLimit(t *testing.T) {
	now := time.Unix(1000, 0)
	var limited int
	var set *limiters
	mw := newRateLimit(RateLimitOptions{
		Every:     time.Second,
		Burst:     2,
		Exclude:   []string{"callback"},
		IdleTTL:   time.Minute,
		OnLimited: func(tele.Context) error { limited++; return nil },
		now:       func() time.Time { return now },
	}, &set)

	var reached int
	h := mw(func(tele.Context) error { reached++; return nil })
	for i := 0; i < 3; i++ {
		_ = h(newCtx(1))
	}
	if reached != 2 || limited != 1 {
		t.Fatalf("burst: reached=%d limited=%d, want 2/1", reached, limited)
	}

	_ = h(newCtx(2))
	if reached != 3 {
		t.Fatal("users are limited independently")
	}

	cb := newCtx(1)
	cb.upd = tele.Update{Callback: &tele.Callback{Data: "\fmenu"}}
	_ = h(cb)
	if reached != 4 {
		t.Fatal("excluded kinds bypass the limiter")
	}

	now = now.Add(time.Second)
	_ = h(newCtx(1))
	if reached != 5 {
		t.Fatal("a token refills after Every")
	}

	now = now.Add(2 * time.Minute)
	_ = h(newCtx(3))
	if n := set.size(); n != 1 {
		t.Fatalf("idle users kept: %d limiters, want 1", n)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	var reached int
	h := RateLimit(RateLimitOptions{})(func(tele.Context) error { reached++; return nil })
	for i := 0; i < 5; i++ {
		_ = h(newCtx(1))
	}
	if reached != 5 {
		t.Fatalf("reached = %d, want 5", reached)
	}
}

func TestUpdateKind(t *testing.T) {
	cases := map[string]tele.Update{
		"callback":     {Callback: &tele.Callback{}},
		"message":      {Message: &tele.Message{}},
		"inline_query": {Query: &tele.Query{}},
		"other":        {},
	}
	for want, u := range cases {
		if got := UpdateKind(u); got != want {
			t.Errorf("UpdateKind = %q, want %q", got, want)
		}
	}
}

func TestTraceAttachesContext(t *testing.T) {
	c := newCtx(5)
	var seen bool
	h := Trace(func(c tele.Context) error {
		_, seen = c.Get("tg.ctx").(interface{ Done() <-chan struct{} })
		return nil
	})
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Fatal("Trace must cache the update context")
	}
}
