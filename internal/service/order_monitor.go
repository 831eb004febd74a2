package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"alphaflex/internal/domain"
)

// MonitorConfig bounds the lifecycle of a single order's monitoring task.
type MonitorConfig struct {
	CheckInterval     time.Duration // delay between status polls
	MaxRetries        int           // resubmission budget per order chain
	MaxMonitoringTime time.Duration // soft deadline, enforced at pending polls
	BrokerTimeout     time.Duration // per-call timeout for gateway requests
	StoreTimeout      time.Duration // per-call timeout for persistence
}

// DefaultMonitorConfig mirrors the production settings: poll every 30
// seconds, give up on a pending order after 30 minutes, retry rejections
// up to 3 times.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		CheckInterval:     30 * time.Second,
		MaxRetries:        domain.MaxRetries,
		MaxMonitoringTime: 30 * time.Minute,
		BrokerTimeout:     15 * time.Second,
		StoreTimeout:      10 * time.Second,
	}
}

// OrderMonitor tracks open orders to completion. It owns one independent
// monitoring task per open order: each task polls the broker gateway on a
// fixed interval, classifies the response, drives side effects (holdings
// update, retry, failure recording) and terminates on a terminal state or
// the monitoring deadline.
//
// All order-tracking errors are absorbed locally: they are written to the
// order record and never propagate out of a poll cycle, so a transient
// gateway failure self-heals on the next tick.
type OrderMonitor struct {
	orders domain.OrderRepository
	users  domain.UserRepository
	broker domain.BrokerGateway
	cfg    MonitorConfig
	clock  Clock

	mu    sync.Mutex
	tasks map[string]*monitorTask
	wg    sync.WaitGroup
}

// monitorTask is the transient, in-memory state of one monitored order.
// Not persisted: an order left non-terminal across a restart is picked up
// by the recovery sweep.
type monitorTask struct {
	orderID   string
	email     string
	side      string
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	inFlight  int32 // re-entrancy guard: 1 while a poll cycle is running
}

// NewOrderMonitor creates a tracker with its own task registry. Pass a nil
// clock to use the wall clock.
func NewOrderMonitor(
	orders domain.OrderRepository,
	users domain.UserRepository,
	broker domain.BrokerGateway,
	cfg MonitorConfig,
	clock Clock,
) *OrderMonitor {
	if clock == nil {
		clock = SystemClock()
	}
	return &OrderMonitor{
		orders: orders,
		users:  users,
		broker: broker,
		cfg:    cfg,
		clock:  clock,
		tasks:  make(map[string]*monitorTask),
	}
}

// StartMonitoring registers a monitoring task for orderID, performs one
// immediate status check, then keeps polling on the configured interval
// until the order reaches a terminal state, times out, or is stopped.
// Starting an order that already has an active task replaces it, so the
// same order is never processed by two tasks at once. Returns once the
// first poll has completed.
func (m *OrderMonitor) StartMonitoring(email, orderID, side string) {
	log.Printf("Starting monitoring for order %s", orderID)

	ctx, cancel := context.WithCancel(context.Background())
	task := &monitorTask{
		orderID:   orderID,
		email:     email,
		side:      side,
		startedAt: m.clock.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	m.mu.Lock()
	if prev, ok := m.tasks[orderID]; ok {
		prev.cancel()
	}
	m.tasks[orderID] = task
	m.mu.Unlock()

	// Initial check with no delay.
	m.pollOnce(task)

	m.wg.Add(1)
	go m.run(task)
}

func (m *OrderMonitor) run(task *monitorTask) {
	defer m.wg.Done()
	for {
		select {
		case <-task.ctx.Done():
			return
		case <-m.clock.After(m.cfg.CheckInterval):
			if task.ctx.Err() != nil {
				return
			}
			m.pollOnce(task)
		}
	}
}

// StopMonitoring cancels the monitoring task for orderID and removes it from
// the active set. Idempotent: a second call (or a call for an unknown id) is
// a no-op. Safe to call from inside a poll cycle and from outside.
func (m *OrderMonitor) StopMonitoring(orderID string) {
	m.mu.Lock()
	task, ok := m.tasks[orderID]
	if ok {
		delete(m.tasks, orderID)
	}
	m.mu.Unlock()

	if ok {
		task.cancel()
		log.Printf("Stopped monitoring order %s", orderID)
	}
}

// StopAll cancels every active task and waits for their loops to exit.
// Called on process shutdown; non-terminal orders are recovered by the
// reconciliation sweep at next startup.
func (m *OrderMonitor) StopAll() {
	m.mu.Lock()
	for id, task := range m.tasks {
		task.cancel()
		delete(m.tasks, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// IsMonitoring reports whether orderID has an active monitoring task.
func (m *OrderMonitor) IsMonitoring(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[orderID]
	return ok
}

// ActiveTasks returns the number of orders currently being monitored.
func (m *OrderMonitor) ActiveTasks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// pollOnce runs a single poll-and-persist cycle for a task. A fire is
// skipped if the previous one for the same order is still in flight.
func (m *OrderMonitor) pollOnce(task *monitorTask) {
	if !atomic.CompareAndSwapInt32(&task.inFlight, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&task.inFlight, 0)

	brokerCtx, cancel := context.WithTimeout(task.ctx, m.cfg.BrokerTimeout)
	payload, err := m.broker.QueryOrder(brokerCtx, task.orderID)
	cancel()
	if err != nil {
		m.recordPollError(task, fmt.Errorf("query order status: %w", err))
		return
	}
	if payload == nil {
		m.recordPollError(task, errors.New("broker returned empty status payload"))
		return
	}

	// Persistence runs on its own context so a self-cancellation on a
	// terminal state cannot abort the final write.
	ctx, cancel := m.storeCtx()
	defer cancel()

	order, err := m.orders.GetByID(ctx, task.email, task.orderID)
	if err != nil {
		log.Printf("ERROR: order %s not found during poll: %v", task.orderID, err)
		return
	}

	now := m.clock.Now()
	order.LastCheckedAt = &now
	if raw, err := json.Marshal(payload); err == nil {
		order.Details = raw
	}

	state := domain.NormalizeStatus(payload.State)
	log.Printf("Order %s status: %s", task.orderID, state)

	switch state {
	case domain.StatusFilled:
		m.handleFilled(ctx, task, order, payload)

	case domain.StatusCancelled, domain.StatusFailed:
		if order.RetryCount < m.cfg.MaxRetries {
			m.retryOrder(ctx, task, order)
		} else {
			m.handleFailed(ctx, task, order, payload)
		}

	case domain.StatusPending:
		if m.clock.Now().Sub(task.startedAt) > m.cfg.MaxMonitoringTime {
			m.handleTimeout(ctx, task, order)
		} else {
			order.Status = domain.StatusPending
			m.persist(ctx, order)
		}

	case domain.StatusPartiallyFilled:
		m.handlePartialFill(ctx, order, payload)

	default:
		// Unknown intermediate broker state: record the poll, take no
		// action, keep monitoring.
		log.Printf("[WARN] Order %s reported unhandled state %q", task.orderID, payload.State)
		m.persist(ctx, order)
	}
}

// handleFilled records completion details, reconciles the user's holdings
// exactly once, and stops monitoring.
func (m *OrderMonitor) handleFilled(ctx context.Context, task *monitorTask, order *domain.Order, payload *domain.OrderStatusPayload) {
	now := m.clock.Now()
	order.Status = domain.StatusFilled
	order.FillPrice = &payload.AveragePrice
	order.FilledQuantity = &payload.FilledQuantity
	order.FilledAt = &now

	if !order.HoldingsApplied {
		_, err := m.users.UpdateWithLock(ctx, order.Email, func(u *domain.User) error {
			ApplyFill(u, order)
			return nil
		})
		if err != nil {
			// Keep monitoring: the next poll sees filled again and
			// retries the holdings update.
			m.recordPollError(task, fmt.Errorf("apply fill to holdings: %w", err))
			return
		}
		order.HoldingsApplied = true
	}

	m.persist(ctx, order)
	log.Printf("[OK] Order %s filled: %.4f %s @ %.2f", order.OrderID, payload.FilledQuantity, order.Symbol, payload.AveragePrice)
	m.StopMonitoring(task.orderID)
}

// handlePartialFill records partial-fill details but keeps polling until a
// later poll reports filled or a terminal failure.
func (m *OrderMonitor) handlePartialFill(ctx context.Context, order *domain.Order, payload *domain.OrderStatusPayload) {
	order.Status = domain.StatusPartiallyFilled
	order.FillPrice = &payload.AveragePrice
	order.FilledQuantity = &payload.FilledQuantity
	m.persist(ctx, order)
}

// handleFailed records the rejection once the retry budget is exhausted and
// stops monitoring.
func (m *OrderMonitor) handleFailed(ctx context.Context, task *monitorTask, order *domain.Order, payload *domain.OrderStatusPayload) {
	reason := payload.RejectReason
	if reason == "" {
		reason = "Unknown"
	}
	order.Status = domain.StatusFailed
	order.FailReason = &reason
	m.persist(ctx, order)
	log.Printf("[WARN] Order %s failed after %d retries: %s", order.OrderID, order.RetryCount, reason)
	m.StopMonitoring(task.orderID)
}

// handleTimeout records that the order outlived the monitoring window and
// stops monitoring. Distinct from failed so callers can message "still
// pending at the broker, check later" instead of "rejected".
func (m *OrderMonitor) handleTimeout(ctx context.Context, task *monitorTask, order *domain.Order) {
	reason := "Exceeded maximum monitoring time"
	order.Status = domain.StatusTimeout
	order.FailReason = &reason
	m.persist(ctx, order)
	log.Printf("[WARN] Order %s timed out after %s", order.OrderID, m.cfg.MaxMonitoringTime)
	m.StopMonitoring(task.orderID)
}

// retryOrder resubmits an equivalent order. On success, tracking switches to
// the new order id: the original record is closed out as "retrying" with a
// link to its successor, which inherits the incremented retry counter. A
// failed resubmission is a per-cycle polling error and does not consume the
// retry budget.
func (m *OrderMonitor) retryOrder(ctx context.Context, task *monitorTask, order *domain.Order) {
	brokerCtx, cancel := context.WithTimeout(task.ctx, m.cfg.BrokerTimeout)
	res, err := m.broker.SubmitOrder(brokerCtx, order.Side, order.Spec())
	cancel()
	if err != nil {
		m.recordPollError(task, fmt.Errorf("retry submission: %w", err))
		return
	}
	if res == nil || !res.Success {
		reason := "retry submission rejected"
		if res != nil && res.Error != "" {
			reason = res.Error
		}
		m.recordPollError(task, errors.New(reason))
		return
	}

	newID := res.OrderID
	if newID == "" {
		newID = domain.NewOrderID(order.Side)
	}

	now := m.clock.Now()
	replacement := &domain.Order{
		OrderID:       newID,
		Email:         order.Email,
		Side:          order.Side,
		Symbol:        order.Symbol,
		Quantity:      order.Quantity,
		Amount:        order.Amount,
		Status:        domain.StatusPending,
		RetryCount:    order.RetryCount + 1,
		ParentOrderID: &order.OrderID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.orders.Save(ctx, replacement); err != nil {
		m.recordPollError(task, fmt.Errorf("save retry order: %w", err))
		return
	}

	order.Status = domain.StatusRetrying
	order.RetryOrderID = &newID
	m.persist(ctx, order)

	if _, err := m.users.UpdateWithLock(ctx, order.Email, func(u *domain.User) error {
		u.AddOrderID(newID)
		return nil
	}); err != nil {
		log.Printf("[WARN] Failed to record retry order %s on user %s: %v", newID, order.Email, err)
	}

	log.Printf("Order %s resubmitted as %s (retry %d/%d)", order.OrderID, newID, replacement.RetryCount, m.cfg.MaxRetries)

	m.StopMonitoring(order.OrderID)
	m.StartMonitoring(order.Email, newID, order.Side)
}

// recordPollError absorbs a poll-cycle failure into the order record.
// Monitoring continues; only an explicit terminal status or the monitoring
// deadline stops a task.
func (m *OrderMonitor) recordPollError(task *monitorTask, pollErr error) {
	log.Printf("ERROR: monitoring order %s: %v", task.orderID, pollErr)

	ctx, cancel := m.storeCtx()
	defer cancel()

	order, err := m.orders.GetByID(ctx, task.email, task.orderID)
	if err != nil {
		log.Printf("ERROR: failed to load order %s to record error: %v", task.orderID, err)
		return
	}

	now := m.clock.Now()
	msg := pollErr.Error()
	order.Status = domain.StatusError
	order.LastError = &msg
	order.LastCheckedAt = &now
	m.persist(ctx, order)
}

func (m *OrderMonitor) persist(ctx context.Context, order *domain.Order) {
	if err := m.orders.Update(ctx, order); err != nil {
		log.Printf("ERROR: failed to persist order %s: %v", order.OrderID, err)
	}
}

func (m *OrderMonitor) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.cfg.StoreTimeout)
}
