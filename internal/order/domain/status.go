package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("order status transition not allowed")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending, StatusConfirmed, StatusProcessing,
	StatusShipped, StatusDelivered, StatusCancelled,
}

// ParseStatus accepts any case ("SHIPPED", "shipped").
func ParseStatus(s string) (Status, error) {
	v := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range allStatuses {
		if v == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// forward lists the statuses reachable from each non-terminal status.
var forward = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusDelivered, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// TransitionPolicy decides whether an order may move between two statuses.
type TransitionPolicy interface {
	Allow(from, to Status) error
}

// ForwardOnly lets status only move forward; terminal statuses are sticky.
// Re-applying the current status is accepted as a no-op.
type ForwardOnly struct{}

func (ForwardOnly) Allow(from, to Status) error {
	if from == to {
		return nil
	}
	for _, next := range forward[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Unrestricted accepts any transition.
type Unrestricted struct{}

func (Unrestricted) Allow(Status, Status) error { return nil }
