package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/m3rciful/coursebot/core/telegram"
	"github.com/m3rciful/coursebot/core/telegram/state"
	"github.com/m3rciful/coursebot/shop/cart"
	"github.com/m3rciful/coursebot/shop/catalog"
	"github.com/m3rciful/coursebot/shop/checkout"
	"github.com/m3rciful/coursebot/shop/domain"
	"github.com/m3rciful/coursebot/shop/ledger"
	"github.com/m3rciful/coursebot/shop/payment"
	"github.com/m3rciful/coursebot/shop/stats"
	"github.com/m3rciful/coursebot/shop/store/memstore"
	"github.com/m3rciful/coursebot/shop/users"

	tele "gopkg.in/telebot.v4"
)

type sentMsg struct {
	text   string
	markup *tele.ReplyMarkup
}

// fakeCtx implements the parts of tele.Context the handlers touch.
type fakeCtx struct {
	tele.Context
	user    *tele.User
	text    string
	args    []string
	cb      *tele.Callback
	kv      map[string]interface{}
	msgs    []sentMsg
	answers []*tele.CallbackResponse
}

func (f *fakeCtx) Sender() *tele.User { return f.user }
func (f *fakeCtx) Chat() *tele.Chat { return &tele.Chat{ID: f.user.ID} }
func (f *fakeCtx) Update() tele.Update { return tele.Update{ID: 1} }
func (f *fakeCtx) Text() string { return f.text }
func (f *fakeCtx) Args() []string { return f.args }
func (f *fakeCtx) Callback() *tele.Callback { return f.cb }
func (f *fakeCtx) Get(k string) interface{} { return f.kv[k] }
func (f *fakeCtx) Set(k string, v interface{}) { f.kv[k] = v }

func (f *fakeCtx) Send(what interface{}, opts ...interface{}) error {
	return f.record(what, opts)
}

func (f *fakeCtx) EditOrSend(what interface{}, opts ...interface{}) error {
	return f.record(what, opts)
}

func (f *fakeCtx) Respond(resp ...*tele.CallbackResponse) error {
	f.answers = append(f.answers, resp...)
	return nil
}

func (f *fakeCtx) record(what interface{}, opts []interface{}) error {
	m := sentMsg{text: fmt.Sprint(what)}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok && so != nil {
			m.markup = so.ReplyMarkup
		}
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeCtx) last(t *testing.T) sentMsg {
	t.Helper()
	require.NotEmpty(t, f.msgs, "nothing was sent")
	return f.msgs[len(f.msgs)-1]
}

func (f *fakeCtx) answer(t *testing.T) *tele.CallbackResponse {
	t.Helper()
	require.NotEmpty(t, f.answers, "callback was not answered")
	return f.answers[len(f.answers)-1]
}

func buttons(m *tele.ReplyMarkup) []tele.InlineButton {
	if m == nil {
		return nil
	}
	var out []tele.InlineButton
	for _, row := range m.InlineKeyboard {
		out = append(out, row...)
	}
	return out
}

func hasButton(m *tele.ReplyMarkup, unique, data string) bool {
	for _, b := range buttons(m) {
		if b.Unique == unique && b.Data == data {
			return true
		}
	}
	return false
}

type stubGateway struct {
	status payment.RemoteStatus
	err    error
}

func (g *stubGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (payment.Intent, error) {
	if g.err != nil {
		return payment.Intent{}, g.err
	}
	id := strconv.FormatInt(req.OrderID, 10)
	return payment.Intent{ExternalID: "pay-" + id, RedirectURL: "https://pay.example/" + id}, nil
}

func (g *stubGateway) FetchStatus(_ context.Context, id string) (payment.RemoteStatus, error) {
	st := g.status
	st.ExternalID = id
	return st, g.err
}

const (
	adminID = int64(1)
	buyerID = int64(2)
)

type env struct {
	bot     *Bot
	fsm     state.Manager
	catalog *catalog.Service
	cart    *cart.Service
	ledger  *ledger.Service
	gw      *stubGateway
	goID    int64
	chanID  int64
}

func newEnv(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	cat := catalog.NewService(st.Catalog())
	goCourse, err := cat.Add(ctx, catalog.NewCourse{
		Title: "Go basics", Description: "Types & <tags>", Price: decimal.NewFromInt(1000), MaterialURL: "https://example.com/go",
	})
	require.NoError(t, err)
	chanCourse, err := cat.Add(ctx, catalog.NewCourse{
		Title: "Go channels", Price: decimal.NewFromInt(1500), MaterialURL: "https://example.com/chan",
	})
	require.NoError(t, err)

	cartSvc := cart.NewService(st.Carts())
	usr := users.NewService(st.Users())
	led := ledger.NewService(st.Ledger())
	gw := &stubGateway{}
	fsm := state.NewMemoryManager()
	b := New(Deps{
		Catalog:  cat,
		Cart:     cartSvc,
		Users:    usr,
		Checkout: checkout.New(usr, cartSvc, led, gw, nil),
		Stats:    stats.NewService(st.Stats()),
		Gateway:  gw,
		Currency: "RUB",
		IsAdmin:  func(id int64) bool { return id == adminID },
	}, fsm)
	return env{bot: b, fsm: fsm, catalog: cat, cart: cartSvc, ledger: led, gw: gw, goID: goCourse.ID, chanID: chanCourse.ID}
}

func newCtx(uid int64) *fakeCtx {
	return &fakeCtx{user: &tele.User{ID: uid, FirstName: "Ann", Username: "ann"}, kv: map[string]interface{}{}}
}

func msg(uid int64, text string, args ...string) *fakeCtx {
	c := newCtx(uid)
	c.text, c.args = text, args
	return c
}

func press(uid int64, unique string, id int64) *fakeCtx {
	c := newCtx(uid)
	data := "\f" + unique
	if id != 0 {
		data += "|" + strconv.FormatInt(id, 10)
	}
	c.cb = &tele.Callback{Data: data}
	return c
}

func TestStartShowsMenu(t *testing.T) {
	e := newEnv(t)

	c := msg(buyerID, "/start")
	require.NoError(t, e.bot.start(c))
	m := c.last(t)
	assert.Contains(t, m.text, "Hi, Ann!")
	assert.True(t, hasButton(m.markup, cbCatalog, ""))
	assert.False(t, hasButton(m.markup, cbAdmin, ""), "buyers do not see the admin entry")

	c = msg(adminID, "/start")
	require.NoError(t, e.bot.start(c))
	assert.True(t, hasButton(c.last(t).markup, cbAdmin, ""))
}

func TestBrowseAddAndCheckout(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	c := press(buyerID, cbCatalog, 0)
	require.NoError(t, e.bot.showCatalog(c))
	assert.True(t, hasButton(c.last(t).markup, cbCourse, strconv.FormatInt(e.goID, 10)))

	c = press(buyerID, cbCourse, e.goID)
	require.NoError(t, e.bot.showCourse(c))
	card := c.last(t)
	assert.Contains(t, card.text, "Types &amp; &lt;tags&gt;")
	assert.Contains(t, card.text, "1000.00 ₽")
	assert.True(t, hasButton(card.markup, cbCartAdd, strconv.FormatInt(e.goID, 10)))

	for _, id := range []int64{e.goID, e.chanID, e.goID} {
		require.NoError(t, e.bot.addToCart(press(buyerID, cbCartAdd, id)))
	}
	c = press(buyerID, cbCartAdd, e.goID)
	require.NoError(t, e.bot.addToCart(c))
	assert.Equal(t, "Already in your cart", c.answer(t).Text)
	assert.True(t, hasButton(c.last(t).markup, cbCartUnpick, strconv.FormatInt(e.goID, 10)))

	c = press(buyerID, cbCart, 0)
	require.NoError(t, e.bot.showCart(c))
	assert.Contains(t, c.last(t).text, "2500.00 ₽")
	assert.True(t, hasButton(c.last(t).markup, cbCheckout, ""))

	c = press(buyerID, cbCheckout, 0)
	require.NoError(t, e.bot.checkout(c))
	paid := c.last(t)
	assert.Contains(t, paid.text, "Order #1")
	var payURL string
	for _, b := range buttons(paid.markup) {
		if b.URL != "" {
			payURL = b.URL
		}
	}
	assert.Equal(t, "https://pay.example/1", payURL)

	ids, err := e.cart.List(ctx, buyerID)
	require.NoError(t, err)
	assert.Empty(t, ids, "cart is cleared after checkout")

	c = press(buyerID, cbMyCourses, 0)
	require.NoError(t, e.bot.myCourses(c))
	assert.Equal(t, textNoPurchases, c.last(t).text)

	_, err = e.ledger.Settle(ctx, "pay-1", domain.PaymentSucceeded)
	require.NoError(t, err)
	c = press(buyerID, cbMyCourses, 0)
	require.NoError(t, e.bot.myCourses(c))
	assert.Contains(t, c.last(t).text, "https://example.com/go")
	assert.Contains(t, c.last(t).text, "https://example.com/chan")
}

func TestCheckoutGatewayFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.gw.err = &payment.GatewayError{Op: "create payment", HTTPStatus: 503}
	require.NoError(t, e.bot.addToCart(press(buyerID, cbCartAdd, e.goID)))

	c := press(buyerID, cbCheckout, 0)
	require.NoError(t, e.bot.checkout(c))
	assert.True(t, c.answer(t).ShowAlert)
	assert.Contains(t, c.answer(t).Text, "payment service is unavailable")

	ids, err := e.cart.List(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, []int64{e.goID}, ids)
}

func TestCheckoutEmptyCart(t *testing.T) {
	e := newEnv(t)
	c := press(buyerID, cbCheckout, 0)
	require.NoError(t, e.bot.checkout(c))
	assert.Equal(t, textCartEmpty, c.answer(t).Text)
}

func TestCartDropsHiddenCourses(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.bot.addToCart(press(buyerID, cbCartAdd, e.goID)))
	require.NoError(t, e.bot.addToCart(press(buyerID, cbCartAdd, e.chanID)))
	require.NoError(t, e.catalog.SoftDelete(ctx, e.chanID))

	c := press(buyerID, cbCart, 0)
	require.NoError(t, e.bot.showCart(c))
	assert.NotContains(t, c.last(t).text, "Go channels")
	assert.Contains(t, c.last(t).text, "1000.00 ₽")

	ids, err := e.cart.List(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, []int64{e.goID}, ids)

	c = press(buyerID, cbCourse, e.chanID)
	require.NoError(t, e.bot.showCourse(c))
	assert.Equal(t, textCourseGone, c.answer(t).Text)
	assert.Contains(t, c.last(t).text, "Catalog")
}

func TestRemoveFromCart(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.bot.addToCart(press(buyerID, cbCartAdd, e.goID)))

	c := press(buyerID, cbCartRemove, e.goID)
	require.NoError(t, e.bot.removeFromCart(c))
	assert.Equal(t, textCartEmpty, c.last(t).text)
	ids, err := e.cart.List(ctx, buyerID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStaleButtonPayload(t *testing.T) {
	e := newEnv(t)
	c := press(buyerID, cbCourse, 0)
	require.NoError(t, e.bot.showCourse(c))
	assert.Equal(t, textStaleButton, c.answer(t).Text)
}

func TestCourseWizard(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	c := press(adminID, cbAdminAdd, 0)
	require.NoError(t, e.bot.adminAdd(c))
	assert.Equal(t, stTitle, e.fsm.GetState(adminID))

	steps := []struct {
		in    string
		state state.State
		reply string
	}{
		{"   ", stTitle, "Invalid title"},
		{"Rust intro", stDescription, "description"},
		{"-", stPrice, "price"},
		{"12,5x", stPrice, "Invalid price"},
		{"1 990,50", stURL, "link"},
		{"ftp://files", stURL, "Invalid material url"},
	}
	for _, s := range steps {
		c := msg(adminID, s.in)
		require.NoError(t, e.fsm.ManagerHandler(c), s.in)
		assert.Equal(t, s.state, e.fsm.GetState(adminID), s.in)
		assert.Contains(t, c.last(t).text, s.reply, s.in)
	}

	c = msg(adminID, "https://example.com/rust")
	require.NoError(t, e.fsm.ManagerHandler(c))
	assert.Contains(t, c.last(t).text, "Rust intro")
	assert.Contains(t, c.last(t).text, "1990.50 ₽")
	assert.False(t, e.fsm.InProgress(adminID))

	courses, err := e.catalog.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 3)
	added := courses[2]
	assert.Equal(t, "Rust intro", added.Title)
	assert.Empty(t, added.Description)
	assert.Equal(t, "1990.50", added.Price.StringFixed(2))
}

func TestWizardCancel(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.bot.adminAdd(press(adminID, cbAdminAdd, 0)))
	require.NoError(t, e.fsm.ManagerHandler(msg(adminID, "Draft")))

	c := msg(adminID, "/cancel")
	require.NoError(t, e.bot.cancel(c))
	assert.False(t, e.fsm.InProgress(adminID))
	assert.Equal(t, "Cancelled", c.msgs[0].text)

	c = msg(adminID, "/cancel")
	require.NoError(t, e.bot.cancel(c))
	assert.Equal(t, "Nothing to cancel.", c.last(t).text)
}

func TestAdminCallbacksAreGuarded(t *testing.T) {
	e := newEnv(t)
	reg := tg.NewRegistry()
	require.NoError(t, e.bot.Register(reg))

	h, ok := reg.Callback(cbAdminStats)
	require.True(t, ok)

	c := press(buyerID, cbAdminStats, 0)
	require.NoError(t, h(c))
	assert.Equal(t, textAdminOnly, c.answer(t).Text)
	assert.Empty(t, c.msgs)

	c = press(adminID, cbAdminStats, 0)
	require.NoError(t, h(c))
	assert.Contains(t, c.last(t).text, "Statistics")
	assert.Contains(t, c.last(t).text, "Users: 0")
}

func TestAdminHideCourse(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	c := press(adminID, cbAdminHide, e.goID)
	require.NoError(t, e.bot.adminHide(c))
	assert.Equal(t, "Course hidden", c.answer(t).Text)
	assert.False(t, hasButton(c.last(t).markup, cbAdminHide, strconv.FormatInt(e.goID, 10)))
	assert.True(t, hasButton(c.last(t).markup, cbAdminHide, strconv.FormatInt(e.chanID, 10)))

	course, err := e.catalog.Get(ctx, e.goID)
	require.NoError(t, err)
	assert.False(t, course.Active)

	c = press(adminID, cbAdminHide, 999)
	require.NoError(t, e.bot.adminHide(c))
	assert.Equal(t, "Not found.", c.answer(t).Text)
}

func TestPayStatus(t *testing.T) {
	e := newEnv(t)
	e.gw.status = payment.RemoteStatus{Raw: "succeeded", Paid: true, Amount: decimal.NewFromInt(1000), OrderID: "7"}

	c := msg(adminID, "/paystatus pay-7", "pay-7")
	require.NoError(t, e.bot.payStatus(c))
	text := c.last(t).text
	assert.Contains(t, text, "Payment pay-7")
	assert.Contains(t, text, "Status: succeeded")
	assert.Contains(t, text, "Order: 7")

	c = msg(adminID, "/paystatus")
	require.NoError(t, e.bot.payStatus(c))
	assert.True(t, strings.HasPrefix(c.last(t).text, "Usage:"))
}

func TestErrorText(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{domain.Invalid("price", "must be positive"), "Invalid price: must be positive."},
		{fmt.Errorf("ledger: %w", domain.ErrEmptyCart), textCartEmpty},
		{domain.ErrNoValidItems, "None of the courses in your cart are available anymore."},
		{fmt.Errorf("x: %w", domain.ErrNotFound), "Not found."},
		{fmt.Errorf("boom"), textGenericFailure},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ErrorText(tc.err), tc.err.Error())
	}
	assert.True(t, expected(domain.Invalid("x", "y")))
	assert.False(t, expected(fmt.Errorf("boom")))
}

func TestPaidTextEscapesMaterials(t *testing.T) {
	o := domain.Order{ID: 9, Items: []domain.OrderItem{
		{CourseTitle: "A&B", MaterialURL: "https://example.com/a?x=1&y=2"},
	}}
	text := PaidText(o)
	assert.Contains(t, text, "Order #9")
	assert.Contains(t, text, "<b>A&amp;B</b>")
	assert.Contains(t, text, "https://example.com/a?x=1&amp;y=2")
}
