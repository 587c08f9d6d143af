package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/marketplace-core/internal/auth"
	"github.com/dwikikusuma/marketplace-core/internal/order/app"
	"github.com/dwikikusuma/marketplace-core/internal/order/domain"
)

type Server struct {
	svc *app.Service
}

func NewServer(svc *app.Service) *Server {
	return &Server{svc: svc}
}

func callerFrom(ctx context.Context) (auth.Caller, error) {
	c, ok := auth.CallerFrom(ctx)
	if !ok {
		return auth.Caller{}, status.Error(codes.Unauthenticated, "unauthorized")
	}
	return c, nil
}

func (s *Server) GetOrder(ctx context.Context, req *GetOrderRequest) (*domain.Order, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	o, err := s.svc.GetOrder(ctx, caller, req.OrderID)
	if err != nil {
		return nil, MapError(err)
	}
	return &o, nil
}

func (s *Server) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}

	filter, err := app.ParseStatusFilter(req.Status)
	if err != nil {
		return nil, MapError(err)
	}

	orders, err := s.svc.ListAllOrders(ctx, caller, filter)
	if err != nil {
		return nil, MapError(err)
	}
	return &ListOrdersResponse{Orders: orders}, nil
}

func (s *Server) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*domain.Order, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}

	o, err := s.svc.UpdateStatus(ctx, caller, req.OrderID, req.Status)
	if err != nil {
		return nil, MapError(err)
	}
	return &o, nil
}

// MapError converts order service errors into gRPC statuses. The HTTP
// handlers go through it as well.
func MapError(err error) error {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return status.Error(codes.NotFound, "order not found")
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, domain.ErrInvalidStatus):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}
	if st, ok := auth.StatusError(err); ok {
		return st
	}
	return status.Error(codes.Internal, "internal error")
}
