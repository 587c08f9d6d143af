package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dwikikusuma/marketplace-core/internal/auth"
	cartapp "github.com/dwikikusuma/marketplace-core/internal/cart/app"
	carthttp "github.com/dwikikusuma/marketplace-core/internal/cart/httpapi"
	cartpg "github.com/dwikikusuma/marketplace-core/internal/cart/infra/postgres"
	catalogapp "github.com/dwikikusuma/marketplace-core/internal/catalog/app"
	catalogpg "github.com/dwikikusuma/marketplace-core/internal/catalog/infra/postgres"
	checkoutapp "github.com/dwikikusuma/marketplace-core/internal/checkout/app"
	checkoutdomain "github.com/dwikikusuma/marketplace-core/internal/checkout/domain"
	checkouthttp "github.com/dwikikusuma/marketplace-core/internal/checkout/httpapi"
	checkoutadapter "github.com/dwikikusuma/marketplace-core/internal/checkout/infra/adapter"
	orderapp "github.com/dwikikusuma/marketplace-core/internal/order/app"
	orderdomain "github.com/dwikikusuma/marketplace-core/internal/order/domain"
	ordergrpc "github.com/dwikikusuma/marketplace-core/internal/order/grpc"
	orderhttp "github.com/dwikikusuma/marketplace-core/internal/order/httpapi"
	orderpg "github.com/dwikikusuma/marketplace-core/internal/order/infra/postgres"
	paymentapp "github.com/dwikikusuma/marketplace-core/internal/payment/app"
	paymenthttp "github.com/dwikikusuma/marketplace-core/internal/payment/httpapi"
	paymentpg "github.com/dwikikusuma/marketplace-core/internal/payment/infra/postgres"
	"github.com/dwikikusuma/marketplace-core/internal/payment/infra/rozetkapay"
	"github.com/dwikikusuma/marketplace-core/pkg/config"
	"github.com/dwikikusuma/marketplace-core/pkg/events"
	"github.com/dwikikusuma/marketplace-core/pkg/logger"
	"github.com/dwikikusuma/marketplace-core/pkg/postgres"
	"github.com/dwikikusuma/marketplace-core/pkg/redislock"
	"github.com/dwikikusuma/marketplace-core/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "api", Env: cfg.AppEnv, Level: cfg.LogLevel, AddSource: true})

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	// Prices go out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	if len(cfg.Auth.JWTSecret) == 0 {
		return errors.New("JWT_SECRET is required")
	}

	var hooks shutdown.Hooks
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := hooks.Run(stopCtx); err != nil {
			log.Error("shutdown hooks", slog.Any("err", err))
		}
	}()

	db, err := postgres.Open(ctx, postgres.Config{URL: cfg.Postgres.URL, MaxOpenConns: cfg.Postgres.MaxOpenConns})
	if err != nil {
		return err
	}
	hooks.AddCloser("postgres", db.Close)

	if cfg.Postgres.MigrateOnStart {
		if err := postgres.ApplyMigrations(ctx, db); err != nil {
			return err
		}
	}

	publisher := events.Publisher(events.Nop{})
	if cfg.AMQP.URL != "" {
		conn, ch, err := events.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
		if err != nil {
			return err
		}
		hooks.AddCloser("amqp connection", conn.Close)
		hooks.AddCloser("amqp channel", ch.Close)
		publisher = events.NewAMQPPublisher(ch, cfg.AMQP.Exchange)
		log.Info("publishing events", slog.String("exchange", cfg.AMQP.Exchange))
	}

	var locker checkoutapp.Locker
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		hooks.AddCloser("redis", rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, checkout lock disabled", slog.Any("err", err))
		} else {
			locker = redislock.New(rdb, "checkout:", cfg.Checkout.LockTTL)
		}
	}

	// Catalog and cart
	catalogSvc := catalogapp.NewService(catalogpg.NewProductRepo(db))
	cartSvc := cartapp.NewService(cartpg.NewCartRepo(db))

	// Orders
	transitions := orderdomain.TransitionPolicy(orderdomain.ForwardOnly{})
	if !cfg.StrictOrderTransitions {
		transitions = orderdomain.Unrestricted{}
	}
	orderRepo := orderpg.NewOrderRepo(db)
	orderSvc := orderapp.NewService(orderRepo, orderapp.Options{Transitions: transitions, Events: publisher, Logger: log})

	// Checkout (adapters)
	policy, err := checkoutdomain.ParsePolicy(cfg.Checkout.MissingProductPolicy)
	if err != nil {
		return err
	}
	checkoutSvc := checkoutapp.NewService(
		checkoutadapter.NewCartServiceReader(cartSvc),
		checkoutadapter.NewCatalogServiceReader(catalogSvc),
		orderRepo,
		checkoutapp.Options{
			Policy:        policy,
			MaxConcurrent: cfg.Checkout.MaxConcurrent,
			Locker:        locker,
			Events:        publisher,
			Logger:        log,
		},
	)

	// Payments
	verifyMode, err := paymentapp.ParseVerifyMode(cfg.Payment.WebhookVerify)
	if err != nil {
		return err
	}
	if cfg.Payment.WebhookSecret == "" && verifyMode == paymentapp.VerifyStrict {
		log.Warn("PAYMENT_WEBHOOK_SECRET is empty, every payment callback will be rejected")
	}
	if !cfg.Payment.Configured() {
		log.Warn("payment gateway credentials missing, payment creation disabled")
	}
	retry := rozetkapay.DefaultRetryConfig()
	if cfg.Payment.MaxRetries > 0 {
		retry.MaxAttempts = cfg.Payment.MaxRetries
	}
	gateway := rozetkapay.NewClient(rozetkapay.Options{
		BaseURL:  cfg.Payment.APIURL,
		Login:    cfg.Payment.Login,
		Password: cfg.Payment.Password,
		Timeout:  cfg.Payment.Timeout,
		Retry:    retry,
		Logger:   log,
	})
	paymentSvc := paymentapp.NewService(
		gateway,
		paymentpg.NewPaymentRepo(db),
		paymentapp.NewSignatureVerifier(cfg.Payment.WebhookSecret, verifyMode),
		paymentapp.Config{
			Currency:      cfg.Payment.Currency,
			PublicBaseURL: cfg.Payment.PublicBaseURL,
			Configured:    cfg.Payment.Configured(),
		},
		publisher,
		log,
	)

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr: httpAddr,
		Handler: newRouter(routes{
			cart:     carthttp.NewHandler(cartSvc, log),
			checkout: checkouthttp.NewHandler(checkoutSvc, log),
			orders:   orderhttp.NewHandler(orderSvc, log),
			payments: paymenthttp.NewHandler(paymentSvc, log),
			verifier: verifier,
			ready:    db.PingContext,
			log:      log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcAddr := fmt.Sprintf(":%d", cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", grpcAddr, err)
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(auth.UnaryInterceptor(verifier, "/grpc.health.v1.Health/")))
	ordergrpc.RegisterOrderServiceServer(grpcServer, ordergrpc.NewServer(orderSvc))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		log.Info("http server starting", slog.String("addr", httpAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", slog.Any("err", err))
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		log.Info("grpc starting", slog.String("addr", grpcAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("grpc serve error", slog.Any("err", err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")
	healthSrv.Shutdown()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := server.Shutdown(stopCtx); err != nil {
		log.Error("http shutdown error", slog.Any("err", err))
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopCtx.Done():
		log.Warn("graceful stop timeout, forcing stop")
		grpcServer.Stop()
	case <-stopped:
	}

	wg.Wait()
	log.Info("bye")
	return nil
}
