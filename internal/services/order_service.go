package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/detalia/storefront-api/internal/domain"
	"github.com/detalia/storefront-api/internal/repositories"
)

var (
	// ErrOrderRepositoryMissing indicates the order repository dependency is absent.
	ErrOrderRepositoryMissing = errors.New("order service: repository is not configured")
	// ErrOrderInvalidInput signals a malformed order command.
	ErrOrderInvalidInput = errors.New("order service: invalid input")
	// ErrOrderNotFound indicates no order exists for the provided id.
	ErrOrderNotFound = errors.New("order service: order not found")
	// ErrOrderTerminal indicates the order reached a final state and cannot change.
	ErrOrderTerminal = errors.New("order service: order is in a terminal state")
	// ErrOrderInvalidTransition marks a status change the lifecycle does not allow.
	ErrOrderInvalidTransition = errors.New("order service: invalid status transition")
	// ErrOrderEditWindowClosed indicates the order is too old to modify.
	ErrOrderEditWindowClosed = errors.New("order service: edit window has closed")
	// ErrOrderDeleted indicates the order was soft-deleted.
	ErrOrderDeleted = errors.New("order service: order is deleted")
)

// DefaultOrderEditWindow bounds how long after creation an order accepts
// status changes.
const DefaultOrderEditWindow = 30 * 24 * time.Hour

// DefaultOrderDelayedAfter is the age past which a non-terminal order is
// reported as delayed.
const DefaultOrderDelayedAfter = 24 * time.Hour

// statusRank orders the forward lifecycle. Cancellation sits outside the
// ranking and is reachable from any non-terminal state.
var statusRank = map[domain.OrderStatus]int{
	domain.OrderStatusPending:    0,
	domain.OrderStatusProcessing: 1,
	domain.OrderStatusTransit:    2,
	domain.OrderStatusDelivered:  3,
}

// OrderServiceDeps bundles collaborators required to construct an OrderService.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	Publisher    OrderEventPublisher
	EditWindow   time.Duration
	DelayedAfter time.Duration
	Location     *time.Location
	Clock        func() time.Time
	Logger       func(context.Context, string, map[string]any)
}

type orderService struct {
	orders       repositories.OrderRepository
	publisher    OrderEventPublisher
	editWindow   time.Duration
	delayedAfter time.Duration
	location     *time.Location
	clock        func() time.Time
	logger       func(context.Context, string, map[string]any)
}

// NewOrderService wires an OrderService backed by the provided repository.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, ErrOrderRepositoryMissing
	}
	editWindow := deps.EditWindow
	if editWindow <= 0 {
		editWindow = DefaultOrderEditWindow
	}
	delayedAfter := deps.DelayedAfter
	if delayedAfter <= 0 {
		delayedAfter = DefaultOrderDelayedAfter
	}
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{
		orders:       deps.Orders,
		publisher:    deps.Publisher,
		editWindow:   editWindow,
		delayedAfter: delayedAfter,
		location:     location,
		clock:        func() time.Time { return clock().UTC() },
		logger:       logger,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (OrderView, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	return s.view(order), nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[OrderView], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[OrderView]{}, err
	}
	views := make([]OrderView, 0, len(page.Items))
	for _, order := range page.Items {
		views = append(views, s.view(order))
	}
	return domain.CursorPage[OrderView]{Items: views, NextPageToken: page.NextPageToken}, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusCommand) (Order, error) {
	if !cmd.TargetStatus.IsValid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}

	order, err := s.find(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	now := s.clock()
	if err := s.ensureEditable(order, now); err != nil {
		return Order{}, err
	}
	if err := canTransition(order.Status, cmd.TargetStatus); err != nil {
		return Order{}, err
	}

	order.Status = cmd.TargetStatus
	order.UpdatedAt = now
	switch cmd.TargetStatus {
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		order.CancelledAt = &now
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, translateOrderError(err)
	}

	s.logger(ctx, "order_status_changed", map[string]any{
		"orderId": order.ID,
		"status":  string(order.Status),
		"actor":   cmd.ActorID,
	})
	s.publish(ctx, "order.status_changed", order)
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	order, err := s.find(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	now := s.clock()
	if err := s.ensureEditable(order, now); err != nil {
		return Order{}, err
	}
	if order.Status.IsTerminal() {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderTerminal, order.Status)
	}

	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = now
	order.CancelledAt = &now
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		order.CancelReason = &reason
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, translateOrderError(err)
	}

	s.logger(ctx, "order_cancelled", map[string]any{
		"orderId": order.ID,
		"actor":   cmd.ActorID,
	})
	s.publish(ctx, "order.cancelled", order)
	return order, nil
}

func (s *orderService) SoftDelete(ctx context.Context, cmd DeleteOrderCommand) error {
	order, err := s.find(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if order.Audit.IsDeleted() {
		return ErrOrderDeleted
	}

	actor := strings.TrimSpace(cmd.ActorID)
	reason := strings.TrimSpace(cmd.Reason)
	if cmd.System {
		actor = domain.DeletedBySystem
	} else {
		if actor == "" {
			return fmt.Errorf("%w: actor is required", ErrOrderInvalidInput)
		}
		// Manual deletes always record why.
		if reason == "" {
			return fmt.Errorf("%w: a deletion reason is required", ErrOrderInvalidInput)
		}
	}

	var audit domain.Auditable
	audit.MarkDeleted(s.clock(), actor, reason)
	if err := s.orders.SoftDelete(ctx, cmd.OrderID, audit); err != nil {
		return translateOrderError(err)
	}

	s.logger(ctx, "order_deleted", map[string]any{
		"orderId": order.ID,
		"actor":   actor,
	})
	return nil
}

// CanEdit reports whether status changes are still allowed: the order must
// not be deleted and must be younger than the edit window.
func (s *orderService) CanEdit(order Order, now time.Time) bool {
	if order.Audit.IsDeleted() {
		return false
	}
	return now.Sub(order.CreatedAt) < s.editWindow
}

// IsDelayed reports whether a non-terminal order has been open for longer
// than the delay threshold, evaluated on the store's clock. The flag is
// derived at read time and never persisted.
func (s *orderService) IsDelayed(order Order, now time.Time) bool {
	if order.Status.IsTerminal() || order.Audit.IsDeleted() {
		return false
	}
	return now.In(s.location).Sub(order.CreatedAt.In(s.location)) > s.delayedAfter
}

func (s *orderService) find(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, translateOrderError(err)
	}
	return order, nil
}

func (s *orderService) view(order Order) OrderView {
	now := s.clock()
	return OrderView{
		Order:     order,
		IsDelayed: s.IsDelayed(order, now),
		CanEdit:   s.CanEdit(order, now),
	}
}

func (s *orderService) ensureEditable(order Order, now time.Time) error {
	if order.Audit.IsDeleted() {
		return ErrOrderDeleted
	}
	if !s.CanEdit(order, now) {
		return fmt.Errorf("%w: order %s is older than %s", ErrOrderEditWindowClosed, order.ID, s.editWindow)
	}
	return nil
}

// canTransition enforces the lifecycle: terminal states freeze, cancellation
// is reachable from any open state, and forward moves may skip intermediate
// states. Backward moves are rejected.
func canTransition(from, to domain.OrderStatus) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrOrderTerminal, from)
	}
	if to == domain.OrderStatusCancelled {
		return nil
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, from)
	}
	toRank, ok := statusRank[to]
	if !ok {
		return fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, to)
	}
	if toRank <= fromRank {
		return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, from, to)
	}
	return nil
}

func (s *orderService) publish(ctx context.Context, event string, order Order) {
	if s.publisher == nil {
		return
	}
	message := OrderEventMessage{
		Event:       event,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		OccurredAt:  s.clock(),
	}
	if _, err := s.publisher.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order_event_publish_failed", map[string]any{
			"orderId": order.ID,
			"event":   event,
			"error":   err.Error(),
		})
	}
}

func translateOrderError(err error) error {
	if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
		return ErrOrderNotFound
	}
	return err
}
