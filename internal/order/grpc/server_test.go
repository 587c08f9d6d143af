package grpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dwikikusuma/marketplace-core/internal/auth"
	"github.com/dwikikusuma/marketplace-core/internal/order/app"
	"github.com/dwikikusuma/marketplace-core/internal/order/domain"
)

type repo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func (r *repo) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, app.ErrNotFound
	}
	return o, nil
}

func (r *repo) ListByUser(context.Context, string, int) ([]domain.Order, error) {
	return nil, nil
}

func (r *repo) ListAll(_ context.Context, st *domain.Status, _ int) ([]domain.OrderWithUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OrderWithUser
	for _, o := range r.orders {
		if st == nil || o.Status == *st {
			out = append(out, domain.OrderWithUser{Order: o})
		}
	}
	return out, nil
}

func (r *repo) UpdateStatus(_ context.Context, id string, to domain.Status, allow func(domain.Status) error) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, app.ErrNotFound
	}
	if err := allow(o.Status); err != nil {
		return domain.Order{}, err
	}
	o.Status = to
	r.orders[id] = o
	return o, nil
}

var secret = []byte("grpc-test-secret")

func startServer(t *testing.T) *grpc.ClientConn {
	t.Helper()

	r := &repo{orders: map[string]domain.Order{
		"o-1": {
			ID:     "o-1",
			UserID: "u-1",
			Status: domain.StatusPending,
			Items:  []domain.OrderItem{{ProductID: "p1", Quantity: 2, Price: decimal.NewFromInt(10), Name: "Widget"}},
			Total:  decimal.NewFromInt(20),
		},
	}}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(auth.UnaryInterceptor(auth.NewVerifier(secret), "/grpc.health.v1.Health/")))
	RegisterOrderServiceServer(srv, NewServer(app.NewService(r, app.Options{})))
	healthpb.RegisterHealthServer(srv, health.NewServer())

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func as(t *testing.T, c auth.Caller) context.Context {
	t.Helper()
	tok, err := auth.NewVerifier(secret).Issue(c, time.Minute)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
}

func TestOrderService(t *testing.T) {
	conn := startServer(t)
	client := NewClient(conn)

	owner := auth.Caller{ID: "u-1", Role: auth.RoleUser}
	stranger := auth.Caller{ID: "u-2", Role: auth.RoleUser}
	admin := auth.Caller{ID: "a-1", Role: auth.RoleAdmin}

	t.Run("no token", func(t *testing.T) {
		_, err := client.GetOrder(context.Background(), &GetOrderRequest{OrderID: "o-1"})
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("owner reads order", func(t *testing.T) {
		o, err := client.GetOrder(as(t, owner), &GetOrderRequest{OrderID: "o-1"})
		require.NoError(t, err)
		assert.Equal(t, "u-1", o.UserID)
		assert.True(t, o.Total.Equal(decimal.NewFromInt(20)))
		require.Len(t, o.Items, 1)
	})

	t.Run("stranger is denied", func(t *testing.T) {
		_, err := client.GetOrder(as(t, stranger), &GetOrderRequest{OrderID: "o-1"})
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := client.GetOrder(as(t, admin), &GetOrderRequest{OrderID: "nope"})
		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("list requires admin", func(t *testing.T) {
		_, err := client.ListOrders(as(t, owner), &ListOrdersRequest{})
		assert.Equal(t, codes.PermissionDenied, status.Code(err))

		res, err := client.ListOrders(as(t, admin), &ListOrdersRequest{Status: "pending"})
		require.NoError(t, err)
		assert.Len(t, res.Orders, 1)

		_, err = client.ListOrders(as(t, admin), &ListOrdersRequest{Status: "lost"})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("status update", func(t *testing.T) {
		o, err := client.UpdateOrderStatus(as(t, admin), &UpdateOrderStatusRequest{OrderID: "o-1", Status: "delivered"})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDelivered, o.Status)

		_, err = client.UpdateOrderStatus(as(t, admin), &UpdateOrderStatusRequest{OrderID: "o-1", Status: "pending"})
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	})

	t.Run("health is public", func(t *testing.T) {
		res, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())
	})
}

func TestServiceDescHandlers(t *testing.T) {
	names := map[string]bool{}
	for _, m := range serviceDesc.Methods {
		require.NotNil(t, m.Handler, m.MethodName)
		names[m.MethodName] = true
	}
	assert.Equal(t, map[string]bool{"GetOrder": true, "ListOrders": true, "UpdateOrderStatus": true}, names)
	assert.Equal(t, ServiceName, serviceDesc.ServiceName)

	// A nil interceptor calls straight through to the server.
	h := unary("GetOrder", func(_ OrderServiceServer, _ context.Context, in *GetOrderRequest) (any, error) {
		return in.OrderID, nil
	})
	out, err := h(NewServer(nil), context.Background(), func(v any) error {
		v.(*GetOrderRequest).OrderID = "o-7"
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "o-7", out)
}
