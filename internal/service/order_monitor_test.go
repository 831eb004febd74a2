package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"alphaflex/internal/domain"
)

// ---- fakes ----

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newFakeOrderRepo(orders ...*domain.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		cp := *o
		r.orders[o.OrderID] = &cp
	}
	return r
}

func (r *fakeOrderRepo) Save(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.OrderID] = &cp
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, email, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Email != email {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) GetByUser(_ context.Context, email string) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.Email == email {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) Update(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.OrderID] = &cp
	return nil
}

func (r *fakeOrderRepo) GetUnresolved(_ context.Context) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		switch o.Status {
		case domain.StatusPending, domain.StatusPartiallyFilled, domain.StatusError:
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) get(t *testing.T, orderID string) *domain.Order {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		t.Fatalf("order %s not in repo", orderID)
	}
	cp := *o
	return &cp
}

type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	lockErr error // returned by UpdateWithLock when set
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		cp := *u
		r.users[u.Email] = &cp
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.Email] = &cp
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.Email] = &cp
	return nil
}

func (r *fakeUserRepo) UpdateWithLock(_ context.Context, email string, fn func(*domain.User) error) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lockErr != nil {
		return nil, r.lockErr
	}
	u, ok := r.users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) get(t *testing.T, email string) *domain.User {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		t.Fatalf("user %s not in repo", email)
	}
	cp := *u
	return &cp
}

type brokerReply struct {
	payload *domain.OrderStatusPayload
	err     error
}

// fakeBroker answers QueryOrder from a per-order reply queue. The last reply
// in a queue repeats once the queue drains; orders without a queue get the
// default reply.
type fakeBroker struct {
	mu          sync.Mutex
	replies     map[string][]brokerReply
	defaultTo   brokerReply
	submitFn    func(side string, spec domain.OrderSpec) (*domain.SubmitResult, error)
	submitCalls int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		replies:   make(map[string][]brokerReply),
		defaultTo: brokerReply{payload: &domain.OrderStatusPayload{State: "pending"}},
	}
}

func (b *fakeBroker) queue(orderID string, replies ...brokerReply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[orderID] = append(b.replies[orderID], replies...)
}

func (b *fakeBroker) QueryOrder(_ context.Context, orderID string) (*domain.OrderStatusPayload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.replies[orderID]
	if len(q) == 0 {
		return b.defaultTo.payload, b.defaultTo.err
	}
	reply := q[0]
	if len(q) > 1 {
		b.replies[orderID] = q[1:]
	}
	return reply.payload, reply.err
}

func (b *fakeBroker) SubmitOrder(_ context.Context, side string, spec domain.OrderSpec) (*domain.SubmitResult, error) {
	b.mu.Lock()
	fn := b.submitFn
	b.submitCalls++
	b.mu.Unlock()
	if fn == nil {
		return &domain.SubmitResult{Success: true}, nil
	}
	return fn(side, spec)
}

// fakeClock reports a settable time and hands out timers that never fire, so
// poll cycles only run when a test triggers them.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ---- helpers ----

func payload(state string, price, qty float64) *domain.OrderStatusPayload {
	return &domain.OrderStatusPayload{State: state, AveragePrice: price, FilledQuantity: qty}
}

func pendingOrder(orderID, email, side, symbol string, qty float64) *domain.Order {
	now := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	return &domain.Order{
		OrderID:   orderID,
		Email:     email,
		Side:      side,
		Symbol:    symbol,
		Quantity:  qty,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestMonitor(orders *fakeOrderRepo, users *fakeUserRepo, broker *fakeBroker, clock *fakeClock) *OrderMonitor {
	cfg := DefaultMonitorConfig()
	cfg.BrokerTimeout = time.Second
	cfg.StoreTimeout = time.Second
	return NewOrderMonitor(orders, users, broker, cfg, clock)
}

func (m *OrderMonitor) taskFor(t *testing.T, orderID string) *monitorTask {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[orderID]
	if !ok {
		t.Fatalf("no active task for order %s", orderID)
	}
	return task
}

// ---- tests ----

func TestFilledOrderUpdatesHoldingsAndStops(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{Email: "u@x.com", AvailableBalance: 1000})
	broker := newFakeBroker()
	broker.queue("order_1", brokerReply{payload: payload("filled", 50, 10)})

	m := newTestMonitor(orders, users, broker, newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)

	order := orders.get(t, "order_1")
	if order.Status != domain.StatusFilled {
		t.Errorf("status = %q, want filled", order.Status)
	}
	if order.FillPrice == nil || *order.FillPrice != 50 {
		t.Errorf("FillPrice = %v, want 50", order.FillPrice)
	}
	if order.FilledAt == nil {
		t.Error("FilledAt not set")
	}
	if !order.HoldingsApplied {
		t.Error("HoldingsApplied not set")
	}

	user := users.get(t, "u@x.com")
	if got := user.HoldingQuantity("AAPL"); got != 10 {
		t.Errorf("AAPL quantity = %v, want 10", got)
	}
	if user.TotalInvested != 500 {
		t.Errorf("TotalInvested = %v, want 500", user.TotalInvested)
	}
	if user.AvailableBalance != 500 {
		t.Errorf("AvailableBalance = %v, want 500", user.AvailableBalance)
	}

	if m.IsMonitoring("order_1") {
		t.Error("task still active after fill")
	}
}

func TestSellFillLiquidatesHoldings(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("sell_1", "u@x.com", domain.SideSell, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{
		Email:         "u@x.com",
		Holdings:      []domain.Holding{{Symbol: "AAPL", Quantity: 10}},
		TotalInvested: 500,
		IsInvested:    true,
	})
	broker := newFakeBroker()
	broker.queue("sell_1", brokerReply{payload: payload("filled", 60, 10)})

	m := newTestMonitor(orders, users, broker, newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "sell_1", domain.SideSell)

	user := users.get(t, "u@x.com")
	if len(user.Holdings) != 0 {
		t.Errorf("got %d holdings after sell, want 0", len(user.Holdings))
	}
	if user.AvailableBalance != 600 {
		t.Errorf("AvailableBalance = %v, want 600", user.AvailableBalance)
	}
	if !user.IsSoldOut {
		t.Error("IsSoldOut not set")
	}
}

func TestPartialFillKeepsMonitoringThenFillsOnce(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{Email: "u@x.com", AvailableBalance: 1000})
	broker := newFakeBroker()
	broker.queue("order_1",
		brokerReply{payload: payload("partially_filled", 50, 4)},
		brokerReply{payload: payload("filled", 50, 10)},
	)

	m := newTestMonitor(orders, users, broker, newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)

	order := orders.get(t, "order_1")
	if order.Status != domain.StatusPartiallyFilled {
		t.Fatalf("status after first poll = %q, want partially_filled", order.Status)
	}
	if order.FilledQuantity == nil || *order.FilledQuantity != 4 {
		t.Errorf("FilledQuantity = %v, want 4", order.FilledQuantity)
	}
	if !m.IsMonitoring("order_1") {
		t.Fatal("monitoring stopped on partial fill")
	}
	if users.get(t, "u@x.com").HoldingQuantity("AAPL") != 0 {
		t.Error("holdings applied on partial fill")
	}

	task := m.taskFor(t, "order_1")
	m.pollOnce(task)

	// Filled quantity is cumulative: the position gets the final 10, not 14.
	user := users.get(t, "u@x.com")
	if got := user.HoldingQuantity("AAPL"); got != 10 {
		t.Errorf("AAPL quantity = %v, want 10", got)
	}
	if user.TotalInvested != 500 {
		t.Errorf("TotalInvested = %v, want 500", user.TotalInvested)
	}
	if m.IsMonitoring("order_1") {
		t.Error("task still active after fill")
	}
}

func TestReplayedFillIsNotDoubleCounted(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{Email: "u@x.com", AvailableBalance: 1000})
	broker := newFakeBroker()
	broker.queue("order_1", brokerReply{payload: payload("filled", 50, 10)})

	m := newTestMonitor(orders, users, broker, newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)
	task := &monitorTask{
		orderID:   "order_1",
		email:     "u@x.com",
		side:      domain.SideBuy,
		startedAt: m.clock.Now(),
		ctx:       context.Background(),
	}
	m.pollOnce(task)

	user := users.get(t, "u@x.com")
	if got := user.HoldingQuantity("AAPL"); got != 10 {
		t.Errorf("AAPL quantity = %v after replay, want 10", got)
	}
	if user.TotalInvested != 500 {
		t.Errorf("TotalInvested = %v after replay, want 500", user.TotalInvested)
	}
}

func TestRejectedOrderIsRetriedUntilBudgetExhausted(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{Email: "u@x.com", Orders: []string{"order_1"}})
	broker := newFakeBroker()
	broker.defaultTo = brokerReply{payload: &domain.OrderStatusPayload{
		State:        "failed",
		RejectReason: "insufficient buying power",
	}}
	broker.submitFn = func(string, domain.OrderSpec) (*domain.SubmitResult, error) {
		return &domain.SubmitResult{Success: true, OrderID: fmt.Sprintf("retry_%d", broker.submitCalls)}, nil
	}

	m := newTestMonitor(orders, users, broker, newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)

	if broker.submitCalls != 3 {
		t.Errorf("submit calls = %d, want 3", broker.submitCalls)
	}

	original := orders.get(t, "order_1")
	if original.Status != domain.StatusRetrying {
		t.Errorf("original status = %q, want retrying", original.Status)
	}
	if original.RetryOrderID == nil || *original.RetryOrderID != "retry_1" {
		t.Errorf("original RetryOrderID = %v, want retry_1", original.RetryOrderID)
	}

	for _, id := range []string{"retry_1", "retry_2"} {
		if got := orders.get(t, id).Status; got != domain.StatusRetrying {
			t.Errorf("%s status = %q, want retrying", id, got)
		}
	}

	final := orders.get(t, "retry_3")
	if final.Status != domain.StatusFailed {
		t.Errorf("final status = %q, want failed", final.Status)
	}
	if final.RetryCount != 3 {
		t.Errorf("final RetryCount = %d, want 3", final.RetryCount)
	}
	if final.FailReason == nil || *final.FailReason != "insufficient buying power" {
		t.Errorf("final FailReason = %v, want broker reject reason", final.FailReason)
	}
	if final.ParentOrderID == nil || *final.ParentOrderID != "retry_2" {
		t.Errorf("final ParentOrderID = %v, want retry_2", final.ParentOrderID)
	}

	if m.ActiveTasks() != 0 {
		t.Errorf("active tasks = %d, want 0", m.ActiveTasks())
	}

	user := users.get(t, "u@x.com")
	want := []string{"retry_3", "retry_2", "retry_1", "order_1"}
	if len(user.Orders) != len(want) {
		t.Fatalf("user order history = %v, want %v", user.Orders, want)
	}
	for i, id := range want {
		if user.Orders[i] != id {
			t.Errorf("user.Orders[%d] = %q, want %q", i, user.Orders[i], id)
		}
	}
}

func TestFailedRetrySubmissionDoesNotConsumeBudget(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{Email: "u@x.com"})
	broker := newFakeBroker()
	broker.defaultTo = brokerReply{payload: &domain.OrderStatusPayload{State: "cancelled"}}
	broker.submitFn = func(string, domain.OrderSpec) (*domain.SubmitResult, error) {
		return nil, errors.New("gateway unavailable")
	}

	m := newTestMonitor(orders, users, broker, newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)

	order := orders.get(t, "order_1")
	if order.Status != domain.StatusError {
		t.Errorf("status = %q, want error", order.Status)
	}
	if order.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0 (budget not consumed)", order.RetryCount)
	}
	if order.LastError == nil {
		t.Error("LastError not recorded")
	}
	if !m.IsMonitoring("order_1") {
		t.Error("monitoring stopped on a per-cycle error")
	}
}

func TestPendingOrderTimesOutAfterMonitoringWindow(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{Email: "u@x.com"})
	broker := newFakeBroker() // always pending
	clock := newFakeClock()

	m := newTestMonitor(orders, users, broker, clock)
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)

	if got := orders.get(t, "order_1").Status; got != domain.StatusPending {
		t.Fatalf("status within window = %q, want pending", got)
	}

	task := m.taskFor(t, "order_1")
	clock.advance(31 * time.Minute)
	m.pollOnce(task)

	order := orders.get(t, "order_1")
	if order.Status != domain.StatusTimeout {
		t.Errorf("status = %q, want timeout", order.Status)
	}
	if order.FailReason == nil || *order.FailReason != "Exceeded maximum monitoring time" {
		t.Errorf("FailReason = %v, want timeout reason", order.FailReason)
	}
	if m.IsMonitoring("order_1") {
		t.Error("task still active after timeout")
	}
}

func TestTransientQueryErrorThenFill(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{Email: "u@x.com", AvailableBalance: 1000})
	broker := newFakeBroker()
	broker.queue("order_1",
		brokerReply{err: errors.New("connection reset")},
		brokerReply{payload: payload("filled", 50, 10)},
	)

	m := newTestMonitor(orders, users, broker, newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)

	order := orders.get(t, "order_1")
	if order.Status != domain.StatusError {
		t.Fatalf("status after failed poll = %q, want error", order.Status)
	}
	if !m.IsMonitoring("order_1") {
		t.Fatal("monitoring stopped on transient error")
	}

	task := m.taskFor(t, "order_1")
	m.pollOnce(task)

	if got := orders.get(t, "order_1").Status; got != domain.StatusFilled {
		t.Errorf("status after recovery = %q, want filled", got)
	}
	if got := users.get(t, "u@x.com").HoldingQuantity("AAPL"); got != 10 {
		t.Errorf("AAPL quantity = %v, want 10", got)
	}
}

func TestHoldingsUpdateFailureKeepsMonitoring(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{Email: "u@x.com"})
	users.lockErr = errors.New("lock timeout")
	broker := newFakeBroker()
	broker.defaultTo = brokerReply{payload: payload("filled", 50, 10)}

	m := newTestMonitor(orders, users, broker, newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)

	order := orders.get(t, "order_1")
	if order.HoldingsApplied {
		t.Error("HoldingsApplied set despite failed user update")
	}
	if !m.IsMonitoring("order_1") {
		t.Fatal("monitoring stopped while fill is unreconciled")
	}

	// Next poll retries the holdings update once the store recovers.
	users.mu.Lock()
	users.lockErr = nil
	users.mu.Unlock()

	task := m.taskFor(t, "order_1")
	m.pollOnce(task)

	if got := orders.get(t, "order_1").Status; got != domain.StatusFilled {
		t.Errorf("status = %q, want filled", got)
	}
	if got := users.get(t, "u@x.com").HoldingQuantity("AAPL"); got != 10 {
		t.Errorf("AAPL quantity = %v, want 10", got)
	}
	if m.IsMonitoring("order_1") {
		t.Error("task still active after fill")
	}
}

func TestUnhandledStateKeepsMonitoring(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{Email: "u@x.com"})
	broker := newFakeBroker()
	broker.defaultTo = brokerReply{payload: &domain.OrderStatusPayload{State: "Confirmed"}}

	m := newTestMonitor(orders, users, broker, newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)

	order := orders.get(t, "order_1")
	if order.Status != domain.StatusPending {
		t.Errorf("status = %q, want pending (unchanged)", order.Status)
	}
	if order.LastCheckedAt == nil {
		t.Error("LastCheckedAt not recorded")
	}
	if !m.IsMonitoring("order_1") {
		t.Error("monitoring stopped on unhandled state")
	}
}

func TestStopMonitoringIsIdempotent(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{Email: "u@x.com"})

	m := newTestMonitor(orders, users, newFakeBroker(), newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)
	m.StopMonitoring("order_1")
	m.StopMonitoring("order_1")
	m.StopMonitoring("never_existed")

	if m.ActiveTasks() != 0 {
		t.Errorf("active tasks = %d, want 0", m.ActiveTasks())
	}
}

func TestStartMonitoringReplacesExistingTask(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{Email: "u@x.com"})

	m := newTestMonitor(orders, users, newFakeBroker(), newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)
	first := m.taskFor(t, "order_1")

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)
	second := m.taskFor(t, "order_1")

	if m.ActiveTasks() != 1 {
		t.Errorf("active tasks = %d, want 1", m.ActiveTasks())
	}
	if first == second {
		t.Error("expected a fresh task after restart")
	}
	if first.ctx.Err() == nil {
		t.Error("previous task context not cancelled")
	}
}

func TestOverlappingPollIsSkipped(t *testing.T) {
	orders := newFakeOrderRepo(pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10))
	users := newFakeUserRepo(&domain.User{Email: "u@x.com", AvailableBalance: 1000})
	broker := newFakeBroker() // first poll sees the pending default

	m := newTestMonitor(orders, users, broker, newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)
	task := m.taskFor(t, "order_1")

	broker.queue("order_1", brokerReply{payload: payload("filled", 50, 10)})
	task.inFlight = 1
	m.pollOnce(task)

	// The guarded fire must not have touched the order.
	if got := orders.get(t, "order_1").Status; got != domain.StatusPending {
		t.Errorf("status = %q, want pending (poll skipped)", got)
	}

	task.inFlight = 0
	m.pollOnce(task)
	if got := orders.get(t, "order_1").Status; got != domain.StatusFilled {
		t.Errorf("status = %q, want filled once the guard clears", got)
	}
}
