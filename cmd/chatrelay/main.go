package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/chatrelay/internal/adapter/generation"
	cfhttp "github.com/Strob0t/chatrelay/internal/adapter/http"
	"github.com/Strob0t/chatrelay/internal/adapter/memstore"
	"github.com/Strob0t/chatrelay/internal/adapter/minio"
	cfnats "github.com/Strob0t/chatrelay/internal/adapter/nats"
	"github.com/Strob0t/chatrelay/internal/adapter/natskv"
	cfotel "github.com/Strob0t/chatrelay/internal/adapter/otel"
	"github.com/Strob0t/chatrelay/internal/adapter/ristretto"
	"github.com/Strob0t/chatrelay/internal/adapter/tiered"
	"github.com/Strob0t/chatrelay/internal/adapter/ws"
	"github.com/Strob0t/chatrelay/internal/config"
	"github.com/Strob0t/chatrelay/internal/logger"
	"github.com/Strob0t/chatrelay/internal/middleware"
	"github.com/Strob0t/chatrelay/internal/port/cache"
	"github.com/Strob0t/chatrelay/internal/port/objectstore"
	"github.com/Strob0t/chatrelay/internal/resilience"
	"github.com/Strob0t/chatrelay/internal/service"
)

const (
	// l1Expire caps how long a history stays in the process-local cache
	// when NATS KV holds the shared copy.
	l1Expire       = 5 * time.Minute
	idempotencyTTL = 10 * time.Minute
	shutdownGrace  = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"generation_url", cfg.Generation.URL,
		"object_store", cfg.ObjectStore.Backend,
		"nats", cfg.NATS.URL != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOtel, err := cfotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	store, storeHealth, err := newObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	gen := generation.NewClient(cfg.Generation.URL, cfg.Generation.Timeout)
	breaker := resilience.NewBreaker("generation", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	gen.SetBreaker(breaker)

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()

	hub := ws.NewHub(cfg.Server.CORSOrigin)
	defer hub.Close()

	checks := []cfhttp.HealthCheck{
		{Name: "object_store", Check: storeHealth},
		{Name: "generation", Check: gen.Health},
	}

	var historyCache cache.Cache = l1
	events := service.NewEventPublisher(nil, hub)

	if cfg.NATS.URL != "" {
		queue, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := queue.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()

		kv, err := queue.KeyValue(ctx, cfg.NATS.HistoryBucket, cfg.Cache.HistoryTTL)
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		historyCache = tiered.New(l1, natskv.New(kv), l1Expire)

		stopRelay, err := service.RelayToHub(ctx, queue, hub)
		if err != nil {
			return fmt.Errorf("event relay: %w", err)
		}
		defer stopRelay()

		events = service.NewEventPublisher(queue, hub)
		checks = append(checks, cfhttp.HealthCheck{Name: "nats", Check: func(context.Context) error {
			if !queue.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}})
	}

	// --- Services ---

	history := service.NewHistoryStore(historyCache, cfg.Cache.HistoryTTL)
	handlers := &cfhttp.Handlers{
		Chat:          service.NewChatService(gen, store, history, events, metrics, cfg.Generation.Delimiter),
		Feedback:      service.NewFeedbackService(store, history, events, metrics),
		History:       history,
		Review:        service.NewReviewService(store),
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		CookieMaxAge:  cfg.Cache.HistoryTTL,
		SecureCookies: cfg.Server.SecureCookies,
	}

	// --- HTTP ---

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfotel.HTTPMiddleware(cfg.Logging.Service))

	// Reviewer feed, kept outside the request timeout.
	r.Get("/ws/review", hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
		cfhttp.MountRoutes(r, handlers, cfhttp.RouteOptions{
			Conversation: middleware.Conversation(cfg.Cache.HistoryTTL, cfg.Server.SecureCookies),
			RateLimit:    limiter.Handler,
			Idempotency:  middleware.Idempotency(historyCache, idempotencyTTL),
			Health: &cfhttp.Health{
				Checks:      checks,
				Breaker:     breaker,
				Connections: hub.ConnectionCount,
			},
		})
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		limiter.RunCleanup(gctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

// newObjectStore returns the configured conversation log store and its
// health check.
func newObjectStore(ctx context.Context, cfg config.ObjectStore) (objectstore.Store, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		s := memstore.New()
		slog.Warn("using in-memory object store; conversation logs are not persisted")
		return s, s.Health, nil
	case config.BackendMinIO, "":
		s, err := minio.NewStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Health, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
