// Package memstore is an in-memory implementation of every shop repository.
// It backs the service tests and local runs without PostgreSQL; nothing
// survives a restart.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/coursebot/shop/domain"
	"github.com/m3rciful/coursebot/shop/ledger"
)

type data struct {
	courses  map[int64]domain.Course
	users    map[int64]domain.User
	orders   map[int64]domain.Order
	items    map[int64][]domain.OrderItem
	payments map[int64]domain.Payment
	carts    map[int64][]int64

	nextCourse, nextUser, nextOrder, nextItem, nextPayment int64
}

func newData() *data {
	return &data{
		courses:  make(map[int64]domain.Course),
		users:    make(map[int64]domain.User),
		orders:   make(map[int64]domain.Order),
		items:    make(map[int64][]domain.OrderItem),
		payments: make(map[int64]domain.Payment),
		carts:    make(map[int64][]int64),
	}
}

func (d *data) clone() *data {
	c := *d
	c.courses = make(map[int64]domain.Course, len(d.courses))
	for k, v := range d.courses {
		c.courses[k] = v
	}
	c.users = make(map[int64]domain.User, len(d.users))
	for k, v := range d.users {
		c.users[k] = v
	}
	c.orders = make(map[int64]domain.Order, len(d.orders))
	for k, v := range d.orders {
		c.orders[k] = v
	}
	c.items = make(map[int64][]domain.OrderItem, len(d.items))
	for k, v := range d.items {
		c.items[k] = append([]domain.OrderItem(nil), v...)
	}
	c.payments = make(map[int64]domain.Payment, len(d.payments))
	for k, v := range d.payments {
		c.payments[k] = v
	}
	c.carts = make(map[int64][]int64, len(d.carts))
	for k, v := range d.carts {
		c.carts[k] = append([]int64(nil), v...)
	}
	return &c
}

// Store holds the shared state. Use the typed views to reach a repository.
type Store struct {
	mu  sync.Mutex
	d   *data
	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{d: newData(), now: time.Now}
}

// Catalog returns the catalog.Repository view.
func (s *Store) Catalog() *Catalog { return &Catalog{s: s} }

// Users returns the users.Repository view.
func (s *Store) Users() *Users { return &Users{s: s} }

// Ledger returns the ledger.Store view.
func (s *Store) Ledger() *Ledger { return &Ledger{s: s} }

// Carts returns the cart.Store view.
func (s *Store) Carts() *Carts { return &Carts{s: s} }

// Stats returns the stats.Source view.
func (s *Store) Stats() *Stats { return &Stats{s: s} }

// Catalog implements catalog.Repository.
type Catalog struct{ s *Store }

func (r *Catalog) ListActive(context.Context) ([]domain.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Course
	for _, c := range r.s.d.courses {
		if c.Active {
			out = append(out, c)
		}
	}
	sortCourses(out)
	return out, nil
}

func (r *Catalog) Get(_ context.Context, id int64) (domain.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.d.courses[id]
	if !ok {
		return domain.Course{}, domain.ErrNotFound
	}
	return c, nil
}

func (r *Catalog) Insert(_ context.Context, c domain.Course) (domain.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.nextCourse++
	c.ID = r.s.d.nextCourse
	c.CreatedAt = r.s.now()
	r.s.d.courses[c.ID] = c
	return c, nil
}

func (r *Catalog) Deactivate(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.d.courses[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Active = false
	r.s.d.courses[id] = c
	return nil
}

func (r *Catalog) Count(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.d.courses)), nil
}

// Users implements users.Repository.
type Users struct{ s *Store }

func (r *Users) ByTelegramID(_ context.Context, telegramID int64) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.d.users {
		if u.TelegramID == telegramID {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *Users) ByID(_ context.Context, id int64) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.d.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *Users) GetOrCreate(_ context.Context, u domain.User) (domain.User, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.d.users {
		if existing.TelegramID == u.TelegramID {
			return existing, false, nil
		}
	}
	r.s.d.nextUser++
	u.ID = r.s.d.nextUser
	u.CreatedAt = r.s.now()
	r.s.d.users[u.ID] = u
	return u, true, nil
}

func (r *Users) PurchasedCourses(_ context.Context, userID int64) ([]domain.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[int64]struct{})
	var out []domain.Course
	for _, o := range r.s.d.orders {
		if o.UserID != userID || o.Status != domain.OrderPaid {
			continue
		}
		for _, it := range r.s.d.items[o.ID] {
			if _, ok := seen[it.CourseID]; ok {
				continue
			}
			seen[it.CourseID] = struct{}{}
			out = append(out, r.s.d.courses[it.CourseID])
		}
	}
	sortCourses(out)
	return out, nil
}

// Carts implements cart.Store.
type Carts struct{ s *Store }

func (r *Carts) Get(_ context.Context, userID int64) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids, ok := r.s.d.carts[userID]
	if !ok {
		return nil, nil
	}
	return append([]int64(nil), ids...), nil
}

func (r *Carts) Set(_ context.Context, userID int64, ids []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(ids) == 0 {
		delete(r.s.d.carts, userID)
		return nil
	}
	r.s.d.carts[userID] = append([]int64(nil), ids...)
	return nil
}

// Stats implements stats.Source.
type Stats struct{ s *Store }

func (r *Stats) Snapshot(context.Context) (domain.Stats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := domain.Stats{
		Users:   int64(len(r.s.d.users)),
		Orders:  int64(len(r.s.d.orders)),
		Revenue: decimal.Zero,
	}
	for _, o := range r.s.d.orders {
		switch o.Status {
		case domain.OrderPaid:
			st.PaidOrders++
		case domain.OrderPending:
			st.PendingOrders++
		case domain.OrderCancelled:
			st.CancelledOrders++
		}
	}
	for _, p := range r.s.d.payments {
		if p.Status == domain.PaymentSucceeded {
			st.Revenue = st.Revenue.Add(p.Amount)
		}
	}
	return st, nil
}

// Ledger implements ledger.Store. A transaction works on a copy of the whole
// state and swaps it in on commit, so a failed transaction leaves no trace.
type Ledger struct{ s *Store }

func (r *Ledger) InTx(_ context.Context, fn func(tx ledger.Tx) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	work := r.s.d.clone()
	if err := fn(&ledgerTx{d: work}); err != nil {
		return err
	}
	r.s.d = work
	return nil
}

func (r *Ledger) Order(_ context.Context, id int64) (domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.d.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	o.Items = r.s.d.orderItems(id)
	return o, nil
}

func (r *Ledger) OrdersByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Order
	for _, o := range r.s.d.orders {
		if o.UserID == userID {
			o.Items = r.s.d.orderItems(o.ID)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Payment returns the payment of an order; it exists for assertions in tests.
func (r *Ledger) Payment(orderID int64) (domain.Payment, bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.d.payments {
		if p.OrderID == orderID {
			return p, true
		}
	}
	return domain.Payment{}, false
}

// OrderCount returns how many orders exist.
func (r *Ledger) OrderCount() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.d.orders)
}

func (d *data) orderItems(orderID int64) []domain.OrderItem {
	items := append([]domain.OrderItem(nil), d.items[orderID]...)
	for i := range items {
		c := d.courses[items[i].CourseID]
		items[i].CourseTitle = c.Title
		items[i].MaterialURL = c.MaterialURL
	}
	return items
}

type ledgerTx struct{ d *data }

func (t *ledgerTx) ActiveCourses(_ context.Context, ids []int64) ([]domain.Course, error) {
	var out []domain.Course
	for _, id := range ids {
		if c, ok := t.d.courses[id]; ok && c.Active {
			out = append(out, c)
		}
	}
	sortCourses(out)
	return out, nil
}

func (t *ledgerTx) InsertOrder(_ context.Context, o domain.Order) (domain.Order, error) {
	t.d.nextOrder++
	o.ID = t.d.nextOrder
	o.Items = nil
	t.d.orders[o.ID] = o
	return o, nil
}

func (t *ledgerTx) InsertItem(_ context.Context, it domain.OrderItem) (domain.OrderItem, error) {
	if _, ok := t.d.orders[it.OrderID]; !ok {
		return domain.OrderItem{}, domain.ErrNotFound
	}
	t.d.nextItem++
	it.ID = t.d.nextItem
	t.d.items[it.OrderID] = append(t.d.items[it.OrderID], it)
	return it, nil
}

func (t *ledgerTx) OrderForUpdate(_ context.Context, id int64) (domain.Order, error) {
	o, ok := t.d.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (t *ledgerTx) OrderItems(_ context.Context, orderID int64) ([]domain.OrderItem, error) {
	return t.d.orderItems(orderID), nil
}

func (t *ledgerTx) InsertPayment(_ context.Context, p domain.Payment) (domain.Payment, error) {
	for _, existing := range t.d.payments {
		if existing.OrderID == p.OrderID || existing.ExternalID == p.ExternalID {
			return domain.Payment{}, errUnique
		}
	}
	t.d.nextPayment++
	p.ID = t.d.nextPayment
	t.d.payments[p.ID] = p
	return p, nil
}

func (t *ledgerTx) PaymentByOrder(_ context.Context, orderID int64) (domain.Payment, error) {
	for _, p := range t.d.payments {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return domain.Payment{}, domain.ErrNotFound
}

func (t *ledgerTx) PaymentForUpdate(_ context.Context, externalID string) (domain.Payment, error) {
	for _, p := range t.d.payments {
		if p.ExternalID == externalID {
			return p, nil
		}
	}
	return domain.Payment{}, domain.ErrNotFound
}

func (t *ledgerTx) UpdatePayment(_ context.Context, p domain.Payment) error {
	if _, ok := t.d.payments[p.ID]; !ok {
		return domain.ErrNotFound
	}
	t.d.payments[p.ID] = p
	return nil
}

func (t *ledgerTx) UpdateOrderStatus(_ context.Context, id int64, status domain.OrderStatus) error {
	o, ok := t.d.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	t.d.orders[id] = o
	return nil
}

func sortCourses(cs []domain.Course) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
}
