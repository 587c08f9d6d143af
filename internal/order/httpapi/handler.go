package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/marketplace-core/internal/auth"
	"github.com/dwikikusuma/marketplace-core/internal/order/app"
	ordergrpc "github.com/dwikikusuma/marketplace-core/internal/order/grpc"
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

// Routes expects to be mounted on /api/orders behind auth.Middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.listAll)
	r.Get("/my", h.listMine)
	r.Get("/{orderID}", h.get)
	r.Put("/{orderID}/status", h.updateStatus)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.GetOwnOrders(r.Context(), auth.MustCaller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrder(r.Context(), auth.MustCaller(r), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	filter, err := app.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	orders, err := h.svc.ListAllOrders(r.Context(), auth.MustCaller(r), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

// updateStatus takes the new status from ?status= or from a JSON body
// {"status": "..."}.
func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	newStatus := r.URL.Query().Get("status")
	if newStatus == "" && r.ContentLength != 0 {
		var body struct {
			Status string `json:"status"`
		}
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.WriteError(w, err)
			return
		}
		newStatus = body.Status
	}
	if strings.TrimSpace(newStatus) == "" {
		httpx.WriteError(w, status.Error(codes.InvalidArgument, "status is required"))
		return
	}

	if _, err := h.svc.UpdateStatus(r.Context(), auth.MustCaller(r), chi.URLParam(r, "orderID"), newStatus); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Status updated"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	st := ordergrpc.MapError(err)
	if status.Code(st) == codes.Internal {
		h.log.ErrorContext(r.Context(), "order request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	httpx.WriteError(w, st)
}
