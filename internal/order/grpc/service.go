package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/dwikikusuma/marketplace-core/internal/order/domain"
	"github.com/dwikikusuma/marketplace-core/pkg/grpcjson"
)

// The service is described by hand and carried over the JSON codec, so
// messages are plain structs.
const ServiceName = "orders.v1.OrderService"

type GetOrderRequest struct {
	OrderID string `json:"order_id"`
}

type ListOrdersRequest struct {
	Status string `json:"status,omitempty"`
}

type ListOrdersResponse struct {
	Orders []domain.OrderWithUser `json:"orders"`
}

type UpdateOrderStatusRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type OrderServiceServer interface {
	GetOrder(context.Context, *GetOrderRequest) (*domain.Order, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*domain.Order, error)
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetOrder",
			Handler: unary("GetOrder", func(srv OrderServiceServer, ctx context.Context, in *GetOrderRequest) (any, error) {
				return srv.GetOrder(ctx, in)
			}),
		},
		{
			MethodName: "ListOrders",
			Handler: unary("ListOrders", func(srv OrderServiceServer, ctx context.Context, in *ListOrdersRequest) (any, error) {
				return srv.ListOrders(ctx, in)
			}),
		},
		{
			MethodName: "UpdateOrderStatus",
			Handler: unary("UpdateOrderStatus", func(srv OrderServiceServer, ctx context.Context, in *UpdateOrderStatusRequest) (any, error) {
				return srv.UpdateOrderStatus(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orders/v1/orders.json",
}

// methodHandler matches grpc.MethodDesc.Handler.
type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unary[Req any](method string, call func(OrderServiceServer, context.Context, *Req) (any, error)) methodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls OrderService over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(grpcjson.Name)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *Client) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*domain.Order, error) {
	out := new(domain.Order)
	if err := c.invoke(ctx, "GetOrder", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.invoke(ctx, "ListOrders", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*domain.Order, error) {
	out := new(domain.Order)
	if err := c.invoke(ctx, "UpdateOrderStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
