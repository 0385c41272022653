// Package app wires the storefront API process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/notify"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/review"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/idempotency"
	"github.com/xenking/storefront/internal/mailer"
	"github.com/xenking/storefront/internal/repository"
	"github.com/xenking/storefront/internal/stripepay"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	engine, err := cfg.Checkout.Pricing()
	if err != nil {
		return errors.Wrap(err, "pricing policy")
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PostgresCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Repositories.
	db := repository.NewDB(pool)
	productRepo := repository.NewProductRepository(db)
	cartRepo := repository.NewCartRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// Domain services.
	orderOpts := []order.Option{
		order.WithPricing(engine),
		order.WithNotifyTimeout(cfg.Checkout.NotifyTimeout),
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.RedisCheck(rdb))
		orderOpts = append(orderOpts, order.WithIdempotency(idempotency.NewStore(rdb, cfg.Checkout.IdempotencyTTL)))
	} else {
		lg.Info("Redis is not configured, checkout idempotency keys are disabled")
	}

	var notifier notify.Sender = notify.LogSender{}
	if cfg.SMTP.Host != "" {
		notifier = mailer.New(mailer.Config{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.Username,
			Password:    cfg.SMTP.Password,
			From:        cfg.SMTP.From,
			FrontendURL: cfg.FrontendURL,
		})
	}

	couponValidator := coupon.NewRepoValidator(couponRepo)
	cartService := cart.NewService(cartRepo, productRepo, engine)
	orderService, err := order.NewService(order.Deps{
		Tx:        db,
		Orders:    orderRepo,
		Carts:     cartService,
		Products:  productRepo,
		Addresses: repository.NewAddressRepository(db),
		Coupons:   couponValidator,
		Inventory: repository.NewInventoryRepository(db),
		Users:     repository.NewUserRepository(db),
		Notifier:  notifier,
	}, orderOpts...)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	gateway := stripepay.New(stripepay.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Timeout:       cfg.Stripe.Timeout,
	})
	paymentService := payment.NewService(gateway, orderService, cfg.Stripe.Currency, cfg.Stripe.Timeout)
	reviewService := review.NewService(repository.NewReviewRepository(db), productRepo, orderRepo)

	// HTTP handlers.
	api := handler.New(handler.Deps{
		Products: productRepo,
		Carts:    cartService,
		Orders:   orderService,
		Coupons:  couponValidator,
		Payments: paymentService,
		Reviews:  reviewService,
		Verifier: auth.NewJWTVerifier([]byte(cfg.JWTSecret)),
	}).Routes(
		httpmiddleware.Labeler(),
		httpmiddleware.LogRequests(),
	)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Router: health endpoints + API routes on one server.
	root := chi.NewRouter()
	root.Get("/livez", healthSvc.LiveEndpoint)
	root.Get("/readyz", healthSvc.ReadyEndpoint)
	root.Mount("/api", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(root,
			httpmiddleware.Instrument("storefront-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.IdempotencyKeyHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, handler.ReplayedHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
