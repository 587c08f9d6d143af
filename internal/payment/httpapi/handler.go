package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/marketplace-core/internal/auth"
	"github.com/dwikikusuma/marketplace-core/internal/payment/app"
	"github.com/dwikikusuma/marketplace-core/internal/payment/domain"
	"github.com/dwikikusuma/marketplace-core/pkg/httpx"
	"github.com/dwikikusuma/marketplace-core/pkg/logger"
)

const (
	SignatureHeader = "X-Signature"

	maxCallbackBytes = 64 << 10
)

type Handler struct {
	svc *app.Service
	log *slog.Logger
}

func NewHandler(svc *app.Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: logger.OrDiscard(log)}
}

// Routes registers the payment endpoints. The provider callback carries no
// user token, so authn guards only the user-facing routes.
func (h *Handler) Routes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Post("/callback", h.Callback)
	r.With(authn).Post("/create", h.create)
	r.With(authn).Get("/{paymentID}", h.get)
}

type createPaymentRequest struct {
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CallbackURL *string         `json:"callback_url"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	in := app.CreatePaymentInput{OrderID: req.OrderID, Amount: req.Amount, Description: req.Description}
	if req.CallbackURL != nil {
		in.CallbackURL = *req.CallbackURL
	}

	res, err := h.svc.CreatePayment(r.Context(), auth.MustCaller(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPayment(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// Callback handles the provider notification. The answer is always 200 with
// {"status":"ok"} or {"status":"error"}.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		h.log.WarnContext(r.Context(), "read payment callback", slog.Any("err", err))
		httpx.WriteJSON(w, http.StatusOK, app.CallbackAck{Status: app.AckError})
		return
	}

	ack := h.svc.HandleCallback(context.WithoutCancel(r.Context()), body, r.Header.Get(SignatureHeader))
	httpx.WriteJSON(w, http.StatusOK, ack)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	st := mapErr(err)
	if c := status.Code(st); c == codes.Internal || c == codes.Unavailable {
		h.log.ErrorContext(r.Context(), "payment request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	httpx.WriteError(w, st)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, domain.ErrInvalidAmount):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, app.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, app.ErrNotConfigured):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, app.ErrGateway):
		return httpx.UpstreamError(app.ErrGateway.Error())
	}
	if st, ok := auth.StatusError(err); ok {
		return st
	}
	return status.Error(codes.Internal, "internal error")
}
