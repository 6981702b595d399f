package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/catalog"
	"github.com/noah-isme/pos-terminal/internal/config"
	"github.com/noah-isme/pos-terminal/internal/customer"
	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/health"
	"github.com/noah-isme/pos-terminal/internal/obs"
	"github.com/noah-isme/pos-terminal/internal/session"
	"github.com/noah-isme/pos-terminal/internal/transaction"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "pos-terminal",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	catalogStore := catalog.NewStore(catalog.SeedItems(), cfg.StoreLatency)
	customerStore := customer.NewStore(customer.SeedCustomers())

	registry := session.NewRegistry(decimal.NewFromFloat(cfg.DefaultTaxPercent))

	bus := &events.Bus{
		Notifiers: []events.Notifier{
			catalog.InventoryNotifier{Store: catalogStore},
			customer.LoyaltyNotifier{Store: customerStore},
			session.CashDrawerNotifier{Registry: registry},
		},
	}

	txStore := transaction.NewStore()
	txSvc := &transaction.Service{
		Stock:  catalogStore,
		Store:  txStore,
		Events: bus,
	}

	validate := validator.New()

	catalogHandler := &catalog.Handler{Store: catalogStore}
	customerHandler := &customer.Handler{Store: customerStore}
	txHandler := &transaction.Handler{Store: txStore, Svc: txSvc}
	sessionHandler := &session.Handler{
		Registry:  registry,
		Catalog:   catalogStore,
		Customers: customerStore,
		Tx:        txSvc,
		Events:    bus,
		Validate:  validate,

		Currency:   cfg.CurrencyCode,
		TipPresets: cfg.TipPresets,
	}

	buckets := obs.ParseBucketsCSV(cfg.LatencyBucketsCSV)
	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, buckets, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{
		Checker:      readinessChecker{catalog: catalogStore, customers: customerStore},
		ProbeTimeout: 500 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/catalog/items", catalogHandler.List)
		v.Get("/catalog/items/{id}", catalogHandler.Get)

		v.Get("/customers", customerHandler.List)
		v.Get("/customers/{id}", customerHandler.Get)

		v.Post("/sessions", sessionHandler.Open)
		v.Route("/sessions/{sid}", func(s chi.Router) {
			s.Delete("/", sessionHandler.CloseSession)

			s.Get("/cart", sessionHandler.GetCart)
			s.Post("/cart/items", sessionHandler.AddItem)
			s.Patch("/cart/items/{lineId}", sessionHandler.UpdateLine)
			s.Delete("/cart/items/{lineId}", sessionHandler.RemoveLine)
			s.Post("/cart/clear", sessionHandler.ClearCart)
			s.Post("/cart/discount", sessionHandler.SetDiscount)
			s.Post("/cart/tax", sessionHandler.SetTax)
			s.Post("/cart/tip", sessionHandler.SetTip)
			s.Post("/cart/customer", sessionHandler.AttachCustomer)
			s.Post("/cart/notes", sessionHandler.SetNotes)

			s.Post("/split", sessionHandler.BeginSplit)
			s.Post("/split/payments", sessionHandler.AddSplitPayment)
			s.Delete("/split/payments/{paymentId}", sessionHandler.RemoveSplitPayment)
			s.Post("/split/equal", sessionHandler.EqualSplit)

			s.Post("/checkout", sessionHandler.Checkout)

			s.Post("/shift", sessionHandler.StartShift)
			s.Get("/shift", sessionHandler.ShiftStatus)
			s.Post("/shift/movements", sessionHandler.RecordMovement)
			s.Post("/shift/close", sessionHandler.CloseShift)
		})

		v.Get("/transactions", txHandler.List)
		v.Get("/transactions/{id}", txHandler.Get)
		v.Post("/transactions/{id}/refund", txHandler.Refund)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Str("currency", cfg.CurrencyCode).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	catalog   *catalog.Store
	customers *customer.Store
}

func (c readinessChecker) PingCatalog(ctx context.Context, timeout time.Duration) error {
	if c.catalog == nil {
		return errors.New("catalog not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := c.catalog.List(ctx)
	return err
}

func (c readinessChecker) PingCustomers(_ context.Context, _ time.Duration) error {
	if c.customers == nil {
		return errors.New("customers not configured")
	}
	c.customers.List()
	return nil
}
