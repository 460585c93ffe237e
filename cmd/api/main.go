package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/carhop-rentals/booking-verify-api/internal/adapters/amqpaudit"
	"github.com/carhop-rentals/booking-verify-api/internal/adapters/filestore"
	"github.com/carhop-rentals/booking-verify-api/internal/adapters/httpapi"
	membookingrepo "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/bookingrepo"
	memidempotency "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/idempotency"
	memidentityrepo "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/identityrepo"
	memridecompletionrepo "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/ridecompletionrepo"
	memsessioncache "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/sessioncache"
	"github.com/carhop-rentals/booking-verify-api/internal/adapters/mp4probe"
	"github.com/carhop-rentals/booking-verify-api/internal/adapters/natsaudit"
	postgres "github.com/carhop-rentals/booking-verify-api/internal/adapters/postgres"
	pgauditlog "github.com/carhop-rentals/booking-verify-api/internal/adapters/postgres/auditlog"
	pgbookingrepo "github.com/carhop-rentals/booking-verify-api/internal/adapters/postgres/bookingrepo"
	pgidempotency "github.com/carhop-rentals/booking-verify-api/internal/adapters/postgres/idempotency"
	pgidentityrepo "github.com/carhop-rentals/booking-verify-api/internal/adapters/postgres/identityrepo"
	pgridecompletionrepo "github.com/carhop-rentals/booking-verify-api/internal/adapters/postgres/ridecompletionrepo"
	redissessioncache "github.com/carhop-rentals/booking-verify-api/internal/adapters/redis/sessioncache"
	"github.com/carhop-rentals/booking-verify-api/internal/adapters/wati"
	"github.com/carhop-rentals/booking-verify-api/internal/app/audit"
	"github.com/carhop-rentals/booking-verify-api/internal/app/lifecycle"
	"github.com/carhop-rentals/booking-verify-api/internal/app/media"
	"github.com/carhop-rentals/booking-verify-api/internal/app/notify"
	"github.com/carhop-rentals/booking-verify-api/internal/app/reconcile"
	"github.com/carhop-rentals/booking-verify-api/internal/platform/auth/jwtverifier"
	platformclock "github.com/carhop-rentals/booking-verify-api/internal/platform/clock"
	"github.com/carhop-rentals/booking-verify-api/internal/platform/config"
	"github.com/carhop-rentals/booking-verify-api/internal/platform/logging"
	auditlogport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/auditlog"
	bookingrepoport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/bookingrepo"
	clockport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/clock"
	idempotencyport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/idempotency"
	identityrepoport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/identityrepo"
	ridecompletionrepoport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/ridecompletionrepo"
	sessioncacheport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/sessioncache"
)

const (
	sessionMaxAge   = 24 * time.Hour
	sessionSweepInt = 15 * time.Minute
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadAppConfigFromEnv()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger, err := logging.New(logging.Options{Name: "booking-verify-api", Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("invalid logging config: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Auth configuration:
	// - Production: require JWT_* env vars and enforce bearer auth
	// - Local dev: set AUTH_MODE=dev to bypass JWT verification and use X-Debug-Email
	var authMW func(http.Handler) http.Handler
	switch cfg.AuthMode {
	case config.AuthModeDevHeader:
		logger.Warn("dev auth enabled; identities are taken from X-Debug-Email")
		authMW = httpapi.NewDevAuthMiddleware(envOr("DEV_EMAIL", ""))
	default:
		jwtCfg, err := config.LoadJWTConfigFromEnv()
		if err != nil {
			logger.Fatal("invalid auth config", zap.Error(err))
		}
		authMW = httpapi.NewAuthMiddleware(jwtverifier.New(jwtCfg))
	}

	clk := platformclock.NewSystemClock()

	var (
		identities identityrepoport.Repository
		bookings   bookingrepoport.Repository
		rides      ridecompletionrepoport.Repository
		idemStore  idempotencyport.Store
		sink       auditlogport.Sink = audit.NewLogSink(logger)
		cleanups   []func()
	)
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	switch cfg.StorageBackend {
	case config.StoragePostgres:
		if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			logger.Fatal("invalid postgres config", zap.Error(err))
		}
		cleanups = append(cleanups, pool.Close)

		identities = pgidentityrepo.NewRepo(pool)
		bookings = pgbookingrepo.NewRepo(pool)
		rides = pgridecompletionrepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool)
		if cfg.AuditSink == config.AuditSinkPostgres {
			sink = pgauditlog.NewSink(pool)
		}
	default:
		identities = memidentityrepo.NewRepo()
		bookings = membookingrepo.NewRepo()
		rides = memridecompletionrepo.NewRepo()
		idemStore = memidempotency.NewStore()
	}

	switch cfg.AuditSink {
	case config.AuditSinkNATS:
		nc, err := natsaudit.Connect(cfg.NATSURL)
		if err != nil {
			logger.Fatal("nats connect", zap.Error(err))
		}
		cleanups = append(cleanups, func() { _ = nc.Drain() })
		sink = natsaudit.New(nc, cfg.NATSSubject)
	case config.AuditSinkAMQP:
		conn, ch, err := amqpaudit.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatal("amqp dial", zap.Error(err))
		}
		cleanups = append(cleanups, func() { _ = conn.Close() })
		sink = amqpaudit.New(ch, cfg.AMQPExchange)
	}

	var cache sessioncacheport.Cache = memsessioncache.NewCache(clk)
	if cfg.RedisAddr != "" {
		rdb, err := redissessioncache.Open(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		cleanups = append(cleanups, func() { _ = rdb.Close() })
		cache = redissessioncache.New(rdb)
	}

	files, err := filestore.New(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		logger.Fatal("media store", zap.Error(err))
	}

	msgCfg := config.LoadMessagingConfigFromEnv()
	if !msgCfg.Configured() {
		// Bookings still confirm; every send reports a configuration error.
		logger.Warn("whatsapp messaging is not configured")
	}
	sender := wati.NewClient(msgCfg, &http.Client{Timeout: msgCfg.HTTPTimeout}, logger.Named("wati"))

	tracker := audit.NewTracker(sink, clk, logger.Named("audit"))
	reconciler := reconcile.NewReconciler(identities, bookings, cache, tracker, clk, logger.Named("reconcile"))
	reconciler.Timeout = cfg.ReconcileTimeout
	reconciler.QueryTimeout = cfg.QueryTimeout

	ctl := lifecycle.NewController(lifecycle.Deps{
		Identities: identities,
		Bookings:   bookings,
		Reconciler: reconciler,
		Notifier:   notify.NewDispatcher(sender, logger.Named("notify")),
		Media:      media.NewPipeline(files, mp4probe.New(), rides, bookings, tracker, clk, logger.Named("media")),
		Tracker:    tracker,
		Clock:      clk,
		Log:        logger.Named("lifecycle"),
	})

	api := httpapi.NewServer(ctl, idemStore, clk, logger.Named("http"))
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		AuthMiddleware: authMW,
		Log:            logger.Named("http"),
		MediaDir:       cfg.MediaDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go sweepSessions(ctx, ctl, idemStore, clk, logger)

	go func() {
		logger.Info("api listening",
			zap.String("port", cfg.Port),
			zap.String("auth", string(cfg.AuthMode)),
			zap.String("storage", string(cfg.StorageBackend)),
			zap.String("audit", string(cfg.AuditSink)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	// Let in-flight notifications and audit writes finish before closing their backends.
	ctl.Wait()
	tracker.Wait()
}

// sweepSessions drops idle sessions and the idempotency records that could
// only have been replayed by them.
func sweepSessions(ctx context.Context, ctl *lifecycle.Controller, idem idempotencyport.Store, clk clockport.Clock, logger *zap.Logger) {
	t := time.NewTicker(sessionSweepInt)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := ctl.SweepSessions(sessionMaxAge); n > 0 {
				logger.Info("swept idle sessions", zap.Int("count", n))
			}
			n, err := idem.Purge(ctx, clk.Now().Add(-sessionMaxAge))
			if err != nil {
				logger.Warn("purge idempotency records", zap.Error(err))
			} else if n > 0 {
				logger.Info("purged idempotency records", zap.Int64("count", n))
			}
		}
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
