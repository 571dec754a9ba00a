package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"waitlistd/internal/events"
	"waitlistd/internal/platform/config"
	"waitlistd/internal/platform/httpserver"
	"waitlistd/internal/platform/logger"
	"waitlistd/internal/platform/metrics"
	"waitlistd/internal/platform/middleware"
	platformredis "waitlistd/internal/platform/redis"
	"waitlistd/internal/ratelimit"
	"waitlistd/internal/waitlist/crypto"
	"waitlistd/internal/waitlist/handler"
	"waitlistd/internal/waitlist/service"
	"waitlistd/internal/waitlist/store"
	"waitlistd/internal/waitlist/store/memory"
	"waitlistd/internal/waitlist/store/postgres"
)

// main wires dependencies and owns process lifecycle. Sign-up semantics live
// in internal/waitlist.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cipher, err := crypto.NewCipher(cfg.EncKey)
	if err != nil {
		return err
	}

	m := metrics.New()

	st, cleanup, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, emitter, err := buildEvents(cfg, log)
	if err != nil {
		return err
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
	}
	if emitter != nil {
		opts = append(opts, service.WithEvents(emitter))
	}
	svc := service.New(st, cipher, opts...)

	handlerOpts := []handler.Option{
		handler.WithHealthCheck("store", st.Health),
	}
	if redisClient != nil {
		handlerOpts = append(handlerOpts, handler.WithHealthCheck("redis", redisClient.Health))
	}
	if !cfg.RateLimit.Disabled {
		var limiterStore ratelimit.Store = ratelimit.NewMemoryStore()
		if redisClient != nil {
			limiterStore = ratelimit.NewRedisStore(redisClient.Client)
		}
		limiter := ratelimit.NewMiddleware(limiterStore, cfg.RateLimit.Limit, cfg.RateLimit.Window, log, m)
		handlerOpts = append(handlerOpts, handler.WithRateLimiter(limiter))
	}
	if cfg.AdminSigningKey != "" {
		handlerOpts = append(handlerOpts, handler.WithAdmin(middleware.NewAdminValidator(cfg.AdminSigningKey)))
	} else {
		log.Warn("admin surface disabled, no signing key configured")
	}

	h := handler.New(svc, log, m, handlerOpts...)

	router := chi.NewRouter()
	h.Register(router)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	if emitter != nil {
		group.Go(func() error {
			if err := emitter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		log.Info("starting waitlistd", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if publisher != nil {
			defer publisher.Close()
		}
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// buildStore selects the persistence backend. Without a database URL the
// process runs on the in-memory store, which is fine for local development
// but loses everything on restart.
func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no database configured, using in-memory store")
		return memory.New(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	st := postgres.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return st, pool.Close, nil
}

func buildEvents(cfg config.Config, log *slog.Logger) (*events.KafkaPublisher, *events.Emitter, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil, nil
	}
	publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	return publisher, events.NewEmitter(publisher, 256, log), nil
}
