package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/marketplace-core/internal/auth"
	"github.com/dwikikusuma/marketplace-core/internal/payment/domain"
	"github.com/dwikikusuma/marketplace-core/pkg/events"
	"github.com/dwikikusuma/marketplace-core/pkg/logger"
)

var (
	ErrNotConfigured = errors.New("payment service not configured")
	ErrInvalidInput  = errors.New("invalid input")
	ErrGateway       = errors.New("payment service error")
	ErrNotFound      = errors.New("payment not found")
)

const (
	AckOK    = "ok"
	AckError = "error"
)

// CallbackAck is the body returned to the provider. It is sent with HTTP 200
// whatever the outcome.
type CallbackAck struct {
	Status string `json:"status"`
}

type Config struct {
	Currency string
	// PublicBaseURL is used to build the default callback URL.
	PublicBaseURL string
	// Configured is false when gateway credentials are missing.
	Configured bool
}

type Service struct {
	gateway  Gateway
	repo     PaymentRepo
	verifier *SignatureVerifier
	events   events.Publisher
	log      *slog.Logger
	cfg      Config

	now   func() time.Time
	newID func() string
}

func NewService(gateway Gateway, repo PaymentRepo, verifier *SignatureVerifier, cfg Config, pub events.Publisher, log *slog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "UAH"
	}
	return &Service{
		gateway:  gateway,
		repo:     repo,
		verifier: verifier,
		events:   pub,
		log:      logger.OrDiscard(log),
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *Service) DefaultCallbackURL() string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/api/payments/callback"
}

type CreatePaymentInput struct {
	OrderID     string
	Amount      decimal.Decimal
	Description string
	CallbackURL string
}

type CreatePaymentResult struct {
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
}

// CreatePayment opens a provider checkout session for an order and records
// it locally as pending.
func (s *Service) CreatePayment(ctx context.Context, caller auth.Caller, in CreatePaymentInput) (CreatePaymentResult, error) {
	if caller.ID == "" {
		return CreatePaymentResult{}, auth.ErrUnauthenticated
	}
	if !s.cfg.Configured {
		return CreatePaymentResult{}, ErrNotConfigured
	}
	if strings.TrimSpace(in.OrderID) == "" {
		return CreatePaymentResult{}, fmt.Errorf("%w: order_id is required", ErrInvalidInput)
	}
	minor, err := domain.ToMinorUnits(in.Amount)
	if err != nil {
		return CreatePaymentResult{}, err
	}

	callbackURL := strings.TrimSpace(in.CallbackURL)
	if callbackURL == "" {
		callbackURL = s.DefaultCallbackURL()
	}

	paymentID := s.newID()
	session, err := s.gateway.CreateSession(ctx, SessionRequest{
		AmountMinor: minor,
		Currency:    s.cfg.Currency,
		ExternalID:  paymentID,
		Description: in.Description,
		CallbackURL: callbackURL,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "create payment session",
			slog.String("payment_id", paymentID),
			slog.String("order_id", in.OrderID),
			slog.Any("err", err))
		if errors.Is(err, ErrGateway) {
			return CreatePaymentResult{}, err
		}
		return CreatePaymentResult{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if session.CheckoutURL == "" {
		s.log.ErrorContext(ctx, "payment session without checkout url",
			slog.String("payment_id", paymentID), slog.String("provider_id", session.ProviderID))
		return CreatePaymentResult{}, fmt.Errorf("%w: provider returned no checkout url", ErrGateway)
	}

	p := domain.Payment{
		ID:        paymentID,
		OrderID:   in.OrderID,
		Amount:    in.Amount,
		Status:    domain.StatusPending,
		CreatedAt: s.now().UTC(),
	}
	if session.ProviderID != "" {
		p.ProviderID = &session.ProviderID
	}

	// The provider session exists now; the record is written even if the
	// caller has gone away.
	if err := s.repo.Create(context.WithoutCancel(ctx), p); err != nil {
		return CreatePaymentResult{}, fmt.Errorf("save payment %s: %w", paymentID, err)
	}

	s.log.InfoContext(ctx, "payment created",
		slog.String("payment_id", paymentID),
		slog.String("order_id", in.OrderID),
		slog.Int64("amount_minor", minor))

	return CreatePaymentResult{
		PaymentID:   paymentID,
		CheckoutURL: session.CheckoutURL,
		Status:      domain.StatusPending,
	}, nil
}

func (s *Service) GetPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return domain.Payment{}, ErrInvalidInput
	}
	return s.repo.Get(ctx, paymentID)
}

type callbackPayload struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

// HandleCallback applies a provider status notification. It never fails
// towards the provider; problems are logged and reported in the ack.
func (s *Service) HandleCallback(ctx context.Context, body []byte, signature string) CallbackAck {
	if s.verifier != nil {
		if err := s.verifier.Verify(body, signature); err != nil {
			if s.verifier.Mode() != VerifyPermissive {
				s.log.WarnContext(ctx, "payment callback rejected", slog.Any("err", err))
				return CallbackAck{Status: AckError}
			}
			s.log.WarnContext(ctx, "payment callback signature not verified, accepting", slog.Any("err", err))
		}
	}

	var payload callbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.log.WarnContext(ctx, "payment callback malformed", slog.Any("err", err))
		return CallbackAck{Status: AckError}
	}
	if payload.ExternalID == "" {
		s.log.WarnContext(ctx, "payment callback without external_id")
		return CallbackAck{Status: AckError}
	}
	if payload.Status == "" {
		s.log.WarnContext(ctx, "payment callback without status", slog.String("payment_id", payload.ExternalID))
		return CallbackAck{Status: AckError}
	}

	res, err := s.repo.ApplyCallbackTx(ctx, CallbackUpdate{
		PaymentID:  payload.ExternalID,
		Status:     payload.Status,
		Payload:    json.RawMessage(body),
		ReceivedAt: s.now().UTC(),
	})
	if errors.Is(err, ErrNotFound) {
		s.log.WarnContext(ctx, "payment callback for unknown payment", slog.String("payment_id", payload.ExternalID))
		return CallbackAck{Status: AckError}
	}
	if err != nil {
		s.log.ErrorContext(ctx, "apply payment callback",
			slog.String("payment_id", payload.ExternalID), slog.Any("err", err))
		return CallbackAck{Status: AckError}
	}
	if res.Duplicate {
		s.log.InfoContext(ctx, "duplicate payment callback ignored",
			slog.String("payment_id", payload.ExternalID), slog.String("status", payload.Status))
		return CallbackAck{Status: AckOK}
	}

	s.log.InfoContext(ctx, "payment status updated",
		slog.String("payment_id", payload.ExternalID),
		slog.String("status", payload.Status),
		slog.String("order_id", res.OrderID),
		slog.Bool("order_paid", res.MarkedPaid))

	if res.MarkedPaid {
		ev := events.Event{
			Type:       events.PaymentSucceeded,
			Key:        payload.ExternalID,
			OccurredAt: s.now().UTC(),
			Payload: map[string]any{
				"payment_id": payload.ExternalID,
				"order_id":   res.OrderID,
			},
		}
		if err := s.events.Publish(ctx, ev); err != nil {
			s.log.WarnContext(ctx, "publish payment event", slog.String("payment_id", payload.ExternalID), slog.Any("err", err))
		}
	}
	return CallbackAck{Status: AckOK}
}
