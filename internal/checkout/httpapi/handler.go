package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/marketplace-core/internal/auth"
	"github.com/dwikikusuma/marketplace-core/internal/checkout/app"
	"github.com/dwikikusuma/marketplace-core/internal/checkout/domain"
	orderdomain "github.com/dwikikusuma/marketplace-core/internal/order/domain"
	"github.com/dwikikusuma/marketplace-core/pkg/httpx"
	"github.com/dwikikusuma/marketplace-core/pkg/logger"
)

type Handler struct {
	svc *app.Service
	log *slog.Logger
}

func NewHandler(svc *app.Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: logger.OrDiscard(log)}
}

type createOrderRequest struct {
	Shipping      orderdomain.ShippingAddress `json:"shipping"`
	PaymentMethod string                      `json:"payment_method"`
	Notes         *string                     `json:"notes"`
}

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustCaller(r)

	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	in := app.CreateOrderInput{Shipping: req.Shipping, PaymentMethod: req.PaymentMethod}
	if req.Notes != nil {
		in.Notes = *req.Notes
	}

	order, err := h.svc.CreateOrder(r.Context(), caller, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

type quoteLineDTO struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type quoteDTO struct {
	Lines    []quoteLineDTO  `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Skipped  []string        `json:"skipped,omitempty"`
}

func toDTO(q domain.Quote) quoteDTO {
	lines := make([]quoteLineDTO, 0, len(q.Lines))
	for _, ln := range q.Lines {
		lines = append(lines, quoteLineDTO{
			ProductID: ln.ProductID,
			Name:      ln.Name,
			Quantity:  ln.Quantity,
			UnitPrice: ln.UnitPrice,
			LineTotal: ln.LineTotal,
		})
	}
	return quoteDTO{Lines: lines, Subtotal: q.Subtotal, Skipped: q.Skipped}
}

// Quote handles GET /api/checkout/quote: the cart priced at current prices,
// without placing an order.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustCaller(r)

	q, err := h.svc.Quote(r.Context(), caller.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(q))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	st := mapErr(err)
	switch status.Code(st) {
	case codes.Internal:
		h.log.ErrorContext(r.Context(), "checkout failed", slog.Any("err", err))
	default:
		h.log.InfoContext(r.Context(), "checkout rejected", slog.Any("err", err))
	}
	httpx.WriteError(w, st)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, app.ErrEmptyCart),
		errors.Is(err, app.ErrNoValidItems),
		errors.Is(err, app.ErrProductUnavailable),
		errors.Is(err, app.ErrInvalidShipping),
		errors.Is(err, app.ErrInvalidQuantity):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, app.ErrCartChanged), errors.Is(err, app.ErrCheckoutInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}
	if st, ok := auth.StatusError(err); ok {
		return st
	}
	return status.Error(codes.Internal, "internal error")
}
