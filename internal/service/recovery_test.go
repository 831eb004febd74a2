package service

import (
	"context"
	"testing"

	"alphaflex/internal/domain"
)

func TestResumeStartsMonitoringForUnresolvedOrders(t *testing.T) {
	stranded := pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10)
	errored := pendingOrder("order_2", "u@x.com", domain.SideBuy, "TSLA", 2)
	errored.Status = domain.StatusError
	done := pendingOrder("order_3", "u@x.com", domain.SideBuy, "MSFT", 1)
	done.Status = domain.StatusFilled

	orders := newFakeOrderRepo(stranded, errored, done)
	users := newFakeUserRepo(&domain.User{Email: "u@x.com"})

	m := newTestMonitor(orders, users, newFakeBroker(), newFakeClock())
	defer m.StopAll()

	recovery := NewRecoveryService(orders, m)
	if err := recovery.Resume(context.Background()); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}

	if !m.IsMonitoring("order_1") {
		t.Error("pending order not resumed")
	}
	if !m.IsMonitoring("order_2") {
		t.Error("errored order not resumed")
	}
	if m.IsMonitoring("order_3") {
		t.Error("filled order resumed")
	}
}

func TestResumeLeavesLiveTasksAlone(t *testing.T) {
	stranded := pendingOrder("order_1", "u@x.com", domain.SideBuy, "AAPL", 10)
	orders := newFakeOrderRepo(stranded)
	users := newFakeUserRepo(&domain.User{Email: "u@x.com"})

	m := newTestMonitor(orders, users, newFakeBroker(), newFakeClock())
	defer m.StopAll()

	m.StartMonitoring("u@x.com", "order_1", domain.SideBuy)
	live := m.taskFor(t, "order_1")

	recovery := NewRecoveryService(orders, m)
	if err := recovery.Resume(context.Background()); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}

	if after := m.taskFor(t, "order_1"); after != live {
		t.Error("recovery sweep replaced a live monitoring task")
	}
	if m.ActiveTasks() != 1 {
		t.Errorf("active tasks = %d, want 1", m.ActiveTasks())
	}
}
