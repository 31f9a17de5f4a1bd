package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/stylino/fulfillment-core/internal/domain/commission"
	"github.com/stylino/fulfillment-core/internal/domain/order"
	"github.com/stylino/fulfillment-core/internal/domain/payment"
	"github.com/stylino/fulfillment-core/internal/domain/pricing"
	"github.com/stylino/fulfillment-core/internal/gateway/zarinpal"
	"github.com/stylino/fulfillment-core/internal/handler"
	"github.com/stylino/fulfillment-core/internal/notify"
	"github.com/stylino/fulfillment-core/internal/postgres"
	"github.com/stylino/fulfillment-core/pkg/health"
	"github.com/stylino/fulfillment-core/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health probes.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.DatabasePing(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCount(10000))
	healthSvc.SetReady(true)

	// Repositories and transactional stores.
	orderRepo := postgres.NewOrderRepository(pool)
	commissionRepo := postgres.NewCommissionRepository(pool)
	orderStore := postgres.NewOrderStore(pool)
	paymentStore := postgres.NewPaymentStore(pool)

	// Payment gateway.
	gateway := zarinpal.New(zarinpal.Config{
		MerchantID:  cfg.Zarinpal.MerchantID,
		CallbackURL: cfg.Zarinpal.CallbackURL,
		Sandbox:     cfg.Zarinpal.Sandbox,
		Timeout:     cfg.Zarinpal.Timeout,
	})

	// Domain services.
	orderService := order.NewService(orderStore, pricing.NewEngine())
	paymentService := payment.NewService(
		paymentStore,
		orderRepo,
		gateway,
		commission.NewEngine(),
		notify.LogNotifier{},
	)

	// HTTP surface: health endpoints + API routes on one mux.
	h := handler.NewHandler(
		handler.Config{PaymentResultURL: cfg.Payment.ResultURL},
		orderService,
		paymentService,
		orderRepo,
		commissionRepo,
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-User-Id", "X-User-Role"},
				AllowCredentials: cfg.CORS.AllowCredentials,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("fulfillment-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Metrics(m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: flip readiness, drain, then stop.
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
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
