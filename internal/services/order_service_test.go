package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/detalia/storefront-api/internal/domain"
)

var orderNow = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

// The store runs on Lima time (UTC-5, no DST).
var limaZone = time.FixedZone("-05", -5*3600)

func newOrderFixture(t *testing.T, repo *fakeOrderRepo, publisher *fakeEventPublisher) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:    repo,
		Publisher: publisher,
		Location:  limaZone,
		Clock:     fixedClock(orderNow),
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	return svc
}

func pendingOrder(id string, age time.Duration) domain.Order {
	createdAt := orderNow.Add(-age)
	return domain.Order{
		ID:          id,
		OrderNumber: "DT-2025-000001",
		UserRef:     "usr_ana",
		Status:      domain.OrderStatusPending,
		Currency:    "PEN",
		Totals:      domain.OrderTotals{Subtotal: 10000, Total: 10000},
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestTransitionStatusForwardSkipAllowed(t *testing.T) {
	repo := newFakeOrderRepo(pendingOrder("ord_1", time.Hour))
	publisher := &fakeEventPublisher{}
	svc := newOrderFixture(t, repo, publisher)

	order, err := svc.TransitionStatus(context.Background(), OrderStatusCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusTransit,
		ActorID:      "adm_rosa",
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if order.Status != domain.OrderStatusTransit {
		t.Fatalf("expected transit, got %s", order.Status)
	}
	if !order.UpdatedAt.Equal(orderNow) {
		t.Fatalf("expected updated timestamp, got %s", order.UpdatedAt)
	}
	if len(publisher.events) != 1 || publisher.events[0].Message.Event != "order.status_changed" {
		t.Fatalf("expected status event, got %+v", publisher.events)
	}
}

func TestTransitionStatusBackwardRejected(t *testing.T) {
	order := pendingOrder("ord_1", time.Hour)
	order.Status = domain.OrderStatusTransit
	svc := newOrderFixture(t, newFakeOrderRepo(order), &fakeEventPublisher{})

	_, err := svc.TransitionStatus(context.Background(), OrderStatusCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusProcessing,
	})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestTransitionStatusTerminalFrozen(t *testing.T) {
	delivered := pendingOrder("ord_done", time.Hour)
	delivered.Status = domain.OrderStatusDelivered
	cancelled := pendingOrder("ord_gone", time.Hour)
	cancelled.Status = domain.OrderStatusCancelled
	svc := newOrderFixture(t, newFakeOrderRepo(delivered, cancelled), &fakeEventPublisher{})

	_, err := svc.TransitionStatus(context.Background(), OrderStatusCommand{
		OrderID:      "ord_done",
		TargetStatus: domain.OrderStatusCancelled,
	})
	if !errors.Is(err, ErrOrderTerminal) {
		t.Fatalf("expected terminal rejection for delivered, got %v", err)
	}

	_, err = svc.TransitionStatus(context.Background(), OrderStatusCommand{
		OrderID:      "ord_gone",
		TargetStatus: domain.OrderStatusPending,
	})
	if !errors.Is(err, ErrOrderTerminal) {
		t.Fatalf("expected terminal rejection for cancelled, got %v", err)
	}
}

func TestTransitionStatusDeliveredSetsTimestamp(t *testing.T) {
	repo := newFakeOrderRepo(pendingOrder("ord_1", time.Hour))
	svc := newOrderFixture(t, repo, &fakeEventPublisher{})

	order, err := svc.TransitionStatus(context.Background(), OrderStatusCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusDelivered,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if order.DeliveredAt == nil || !order.DeliveredAt.Equal(orderNow) {
		t.Fatalf("expected delivered timestamp, got %v", order.DeliveredAt)
	}
}

func TestCancelFromAnyOpenState(t *testing.T) {
	order := pendingOrder("ord_1", time.Hour)
	order.Status = domain.OrderStatusTransit
	repo := newFakeOrderRepo(order)
	publisher := &fakeEventPublisher{}
	svc := newOrderFixture(t, repo, publisher)

	cancelled, err := svc.Cancel(context.Background(), CancelOrderCommand{
		OrderID: "ord_1",
		ActorID: "usr_ana",
		Reason:  "ya no lo necesito",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil || cancelled.CancelReason == nil || *cancelled.CancelReason != "ya no lo necesito" {
		t.Fatalf("expected cancellation details, got %+v", cancelled)
	}
	if len(publisher.events) != 1 || publisher.events[0].Message.Event != "order.cancelled" {
		t.Fatalf("expected cancel event, got %+v", publisher.events)
	}
}

func TestEditWindowBoundary(t *testing.T) {
	fresh := pendingOrder("ord_young", 29*24*time.Hour)
	stale := pendingOrder("ord_old", 31*24*time.Hour)
	svc := newOrderFixture(t, newFakeOrderRepo(fresh, stale), &fakeEventPublisher{})

	if _, err := svc.TransitionStatus(context.Background(), OrderStatusCommand{
		OrderID:      "ord_young",
		TargetStatus: domain.OrderStatusProcessing,
	}); err != nil {
		t.Fatalf("29-day-old order should be editable: %v", err)
	}

	_, err := svc.TransitionStatus(context.Background(), OrderStatusCommand{
		OrderID:      "ord_old",
		TargetStatus: domain.OrderStatusProcessing,
	})
	if !errors.Is(err, ErrOrderEditWindowClosed) {
		t.Fatalf("expected closed edit window, got %v", err)
	}
}

func TestSoftDeleteRequiresReason(t *testing.T) {
	repo := newFakeOrderRepo(pendingOrder("ord_1", time.Hour))
	svc := newOrderFixture(t, repo, &fakeEventPublisher{})

	err := svc.SoftDelete(context.Background(), DeleteOrderCommand{OrderID: "ord_1", ActorID: "adm_rosa"})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected reason requirement, got %v", err)
	}

	err = svc.SoftDelete(context.Background(), DeleteOrderCommand{
		OrderID: "ord_1",
		ActorID: "adm_rosa",
		Reason:  "pedido duplicado",
	})
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	stored := repo.orders["ord_1"]
	if !stored.Audit.IsDeleted() || stored.Audit.DeletedBy != "adm_rosa" || stored.Audit.DeletionReason != "pedido duplicado" {
		t.Fatalf("unexpected audit overlay: %+v", stored.Audit)
	}

	err = svc.SoftDelete(context.Background(), DeleteOrderCommand{OrderID: "ord_1", ActorID: "adm_rosa", Reason: "otra vez"})
	if !errors.Is(err, ErrOrderDeleted) {
		t.Fatalf("expected already-deleted rejection, got %v", err)
	}
}

func TestSoftDeleteBySystemSkipsReason(t *testing.T) {
	repo := newFakeOrderRepo(pendingOrder("ord_1", time.Hour))
	svc := newOrderFixture(t, repo, &fakeEventPublisher{})

	err := svc.SoftDelete(context.Background(), DeleteOrderCommand{OrderID: "ord_1", System: true})
	if err != nil {
		t.Fatalf("system delete: %v", err)
	}
	stored := repo.orders["ord_1"]
	if stored.Audit.DeletedBy != domain.DeletedBySystem {
		t.Fatalf("expected system marker, got %q", stored.Audit.DeletedBy)
	}
}

func TestSoftDeletedOrderCannotTransition(t *testing.T) {
	order := pendingOrder("ord_1", time.Hour)
	order.Audit.MarkDeleted(orderNow.Add(-time.Minute), "adm_rosa", "duplicado")
	svc := newOrderFixture(t, newFakeOrderRepo(order), &fakeEventPublisher{})

	_, err := svc.TransitionStatus(context.Background(), OrderStatusCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusProcessing,
	})
	if !errors.Is(err, ErrOrderDeleted) {
		t.Fatalf("expected deleted rejection, got %v", err)
	}
}

func TestIsDelayed(t *testing.T) {
	svc := newOrderFixture(t, newFakeOrderRepo(), &fakeEventPublisher{})

	fresh := pendingOrder("ord_fresh", 23*time.Hour)
	if svc.IsDelayed(fresh, orderNow) {
		t.Fatalf("23-hour-old order must not be delayed")
	}

	late := pendingOrder("ord_late", 25*time.Hour)
	if !svc.IsDelayed(late, orderNow) {
		t.Fatalf("25-hour-old open order must be delayed")
	}

	// Terminal orders are never delayed, however old.
	done := pendingOrder("ord_done", 25*time.Hour)
	done.Status = domain.OrderStatusDelivered
	if svc.IsDelayed(done, orderNow) {
		t.Fatalf("delivered order must not be delayed")
	}
	gone := pendingOrder("ord_gone", 25*time.Hour)
	gone.Status = domain.OrderStatusCancelled
	if svc.IsDelayed(gone, orderNow) {
		t.Fatalf("cancelled order must not be delayed")
	}

	// Soft-deleted orders drop out of the delayed set too.
	removed := pendingOrder("ord_removed", 25*time.Hour)
	removed.Audit.MarkDeleted(orderNow.Add(-time.Hour), "adm_rosa", "test order")
	if svc.IsDelayed(removed, orderNow) {
		t.Fatalf("soft-deleted order must not be delayed")
	}
}

func TestGetOrderDerivesViewFlags(t *testing.T) {
	late := pendingOrder("ord_late", 25*time.Hour)
	svc := newOrderFixture(t, newFakeOrderRepo(late), &fakeEventPublisher{})

	view, err := svc.GetOrder(context.Background(), "ord_late")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if !view.IsDelayed || !view.CanEdit {
		t.Fatalf("unexpected flags: %+v", view)
	}

	_, err = svc.GetOrder(context.Background(), "ord_missing")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
