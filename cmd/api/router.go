package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/marketplace-core/internal/auth"
	carthttp "github.com/dwikikusuma/marketplace-core/internal/cart/httpapi"
	checkouthttp "github.com/dwikikusuma/marketplace-core/internal/checkout/httpapi"
	orderhttp "github.com/dwikikusuma/marketplace-core/internal/order/httpapi"
	paymenthttp "github.com/dwikikusuma/marketplace-core/internal/payment/httpapi"
	"github.com/dwikikusuma/marketplace-core/pkg/httpx"
)

type routes struct {
	cart     *carthttp.Handler
	checkout *checkouthttp.Handler
	orders   *orderhttp.Handler
	payments *paymenthttp.Handler

	verifier *auth.Verifier
	ready    func(ctx context.Context) error
	log      *slog.Logger
}

func newRouter(rt routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpx.AccessLog(rt.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			rt.log.WarnContext(ctx, "readiness check failed", slog.Any("err", err))
			httpx.WriteError(w, status.Error(codes.Unavailable, "not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	authn := auth.Middleware(rt.verifier)

	r.Route("/api", func(api chi.Router) {
		api.Route("/payments", func(r chi.Router) { rt.payments.Routes(r, authn) })

		api.Group(func(r chi.Router) {
			r.Use(authn)
			r.Route("/cart", rt.cart.Routes)
			r.Get("/checkout/quote", rt.checkout.Quote)
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", rt.checkout.CreateOrder)
				rt.orders.Routes(r)
			})
		})
	})

	return r
}
