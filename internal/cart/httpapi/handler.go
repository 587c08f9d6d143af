package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/marketplace-core/internal/auth"
	"github.com/dwikikusuma/marketplace-core/internal/cart/app"
	"github.com/dwikikusuma/marketplace-core/internal/cart/domain"
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

// Routes expects to be mounted behind auth.Middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.getCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{productID}", h.setQuantity)
	r.Delete("/items/{productID}", h.removeItem)
}

type itemDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type cartDTO struct {
	UserID    string     `json:"user_id"`
	Items     []itemDTO  `json:"items"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func toDTO(c domain.Cart) cartDTO {
	out := cartDTO{UserID: c.UserID, Items: make([]itemDTO, 0, len(c.Items))}
	for _, it := range c.Items {
		out.Items = append(out.Items, itemDTO{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustCaller(r)
	cart, err := h.svc.GetOrEmpty(r.Context(), caller.ID)
	h.respond(w, r, cart, err)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustCaller(r)

	var req itemDTO
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	cart, err := h.svc.AddItemToCart(r.Context(), caller.ID, domain.CartItem{ProductID: req.ProductID, Quantity: req.Quantity})
	h.respond(w, r, cart, err)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustCaller(r)

	var req struct {
		Quantity int32 `json:"quantity"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	item := domain.CartItem{ProductID: chi.URLParam(r, "productID"), Quantity: req.Quantity}
	cart, err := h.svc.SetItemQuantity(r.Context(), caller.ID, item)
	h.respond(w, r, cart, err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustCaller(r)
	cart, err := h.svc.RemoveItemFromCart(r.Context(), caller.ID, chi.URLParam(r, "productID"))
	h.respond(w, r, cart, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, cart domain.Cart, err error) {
	if err != nil {
		st := mapErr(err)
		if status.Code(st) == codes.Internal {
			h.log.ErrorContext(r.Context(), "cart request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
		}
		httpx.WriteError(w, st)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(cart))
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrQuantityTooLarge):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, app.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	}
	if st, ok := auth.StatusError(err); ok {
		return st
	}
	return status.Error(codes.Internal, "internal error")
}
