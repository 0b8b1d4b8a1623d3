package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fresh-schedules/apiframework/pkg/audit"
	"github.com/fresh-schedules/apiframework/pkg/auth"
	"github.com/fresh-schedules/apiframework/pkg/config"
	"github.com/fresh-schedules/apiframework/pkg/csrf"
	"github.com/fresh-schedules/apiframework/pkg/endpoint"
	"github.com/fresh-schedules/apiframework/pkg/httputil"
	"github.com/fresh-schedules/apiframework/pkg/idempotency"
	"github.com/fresh-schedules/apiframework/pkg/observability"
	"github.com/fresh-schedules/apiframework/pkg/orgs"
	"github.com/fresh-schedules/apiframework/pkg/ratelimit"
	"github.com/fresh-schedules/apiframework/pkg/webhooks"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracing, err := observability.InitTracing(ctx, cfg.Observability.Tracing(), logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	var db *sql.DB
	if cfg.Store.PostgresURL != "" {
		db, err = sql.Open("postgres", cfg.Store.PostgresURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		logger.Info("Connected to PostgreSQL")
	}

	var redisClient *redis.Client
	if cfg.Store.Backend == config.BackendRedis {
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("Connected to Redis")
	}

	provider, err := identityProvider(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	var members orgs.MembershipStore
	if db != nil {
		members = orgs.NewPostgresStore(db)
	} else {
		mem := orgs.NewMemoryStore()
		seedMembers(mem)
		members = mem
		logger.Warn("No database configured, using in-memory memberships")
	}

	limiter, store := sharedState(ctx, cfg, redisClient)

	auditLog, auditDB, err := auditSink(ctx, cfg, db, metrics)
	if err != nil {
		return err
	}

	scheduler := cron.New()
	if auditDB != nil && cfg.Observability.AuditPurgeSchedule != "" {
		retention := cfg.Observability.AuditRetention
		if _, err := scheduler.AddFunc(cfg.Observability.AuditPurgeSchedule, func() {
			purgeAudit(ctx, auditDB, retention, logger)
		}); err != nil {
			return fmt.Errorf("schedule audit purge: %w", err)
		}
		logger.Infof("Audit purge schedule: %s (retention %s)", cfg.Observability.AuditPurgeSchedule, retention)
	}
	scheduler.Start()

	guard := idempotency.NewGuard(store)
	if cfg.Pipeline.IdempotencyWait > 0 {
		guard.WaitTimeout = cfg.Pipeline.IdempotencyWait
	}

	csrfGuard := csrf.NewGuard(cfg.Pipeline.CSRFSecureCookie)

	factory := &endpoint.Factory{
		Auth: auth.NewResolver(provider,
			auth.WithVerifyTimeout(cfg.Auth.VerifyTimeout),
			auth.WithSessionCookie(cfg.Auth.SessionCookie),
		),
		Orgs:             orgs.NewResolver(members, cfg.Store.MembershipTimeout),
		Limiter:          limiter,
		CSRF:             csrfGuard,
		Idempotency:      guard,
		Audit:            auditLog,
		Metrics:          metrics,
		Logger:           logger,
		MaxBodyBytes:     cfg.Pipeline.MaxBodyBytes,
		RateLimitTimeout: cfg.Pipeline.RateLimitTimeout,
		IdempotencyTTL:   cfg.Pipeline.IdempotencyTTL,
	}

	verifier := webhooks.NewVerifier(cfg.Webhooks.Secret)
	verifier.AllowedEvents = cfg.Webhooks.AllowedEvents
	verifier.MaxAge = cfg.Webhooks.MaxAge

	health := observability.NewHealthChecker(db, redisClient)
	health.SetVersion(version)

	router := mux.NewRouter()
	router.HandleFunc("/healthz", health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", health.Readiness).Methods(http.MethodGet)
	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", metrics.Handler(registry)).Methods(http.MethodGet)
	}
	router.Handle("/api/csrf", csrfGuard.IssueHandler()).Methods(http.MethodGet)

	api := newShiftAPI(factory)
	api.register(router.PathPrefix("/api").Subrouter())
	if cfg.Webhooks.Secret != "" {
		router.Handle("/webhooks/billing", webhooks.Handler(verifier, "billing", metrics, api.onBillingEvent))
	}

	handler := httputil.Chain(
		withLogger(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.CORSMiddleware(cfg.Server.CORSOrigins),
	)(otelhttp.NewHandler(router, "fsapi"))

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.Register(func(context.Context) error {
		<-scheduler.Stop().Done()
		cancel()
		return nil
	})
	if queue, ok := auditLog.(*audit.AsyncLogger); ok {
		shutdown.Register(func(context.Context) error {
			queue.Close()
			return nil
		})
	}
	shutdown.Register(tracing.Shutdown)
	if redisClient != nil {
		shutdown.Register(func(context.Context) error { return redisClient.Close() })
	}
	if db != nil {
		shutdown.Register(func(context.Context) error { return db.Close() })
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting fsapi %s on %s", version, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := shutdown.WaitForSignal(); err != nil {
			logger.WithError(err).Error("Graceful shutdown incomplete")
		}
	}()

	if err := <-errCh; err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	<-stopped
	logger.Info("Server stopped")
	return nil
}

func identityProvider(ctx context.Context, cfg config.AuthConfig) (auth.IdentityProvider, error) {
	switch cfg.Provider {
	case config.ProviderOIDC:
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return nil, fmt.Errorf("init oidc verifier: %w", err)
		}
		return v, nil
	default:
		opts := []auth.JWTOption{auth.WithIssuer(cfg.JWTIssuer)}
		if cfg.JWTAudience != "" {
			opts = append(opts, auth.WithAudience(cfg.JWTAudience))
		}
		v, err := auth.NewJWTVerifier([]byte(cfg.JWTSecret), opts...)
		if err != nil {
			return nil, fmt.Errorf("init jwt verifier: %w", err)
		}
		return v, nil
	}
}

// sharedState returns the rate limiter and idempotency store for the
// configured backend.
func sharedState(ctx context.Context, cfg *config.Config, client *redis.Client) (ratelimit.Limiter, idempotency.Store) {
	if client != nil {
		prefix := cfg.Store.RedisPrefix
		return ratelimit.NewRedisLimiter(client, prefix+":ratelimit"),
			idempotency.NewRedisStore(client, prefix+":idempotency")
	}

	limiter := ratelimit.NewMemoryLimiter()
	limiter.StartCleanup(ctx, time.Minute)
	return limiter, idempotency.NewMemoryStore(idempotency.DefaultMemorySize, cfg.Pipeline.IdempotencyTTL)
}

// auditSink returns the request audit logger and, for the db sink, the
// underlying table writer so it can be purged.
func auditSink(ctx context.Context, cfg *config.Config, db *sql.DB, metrics *observability.Metrics) (audit.Logger, *audit.DBLogger, error) {
	var (
		sink  audit.Logger
		dbLog *audit.DBLogger
	)
	switch cfg.Observability.AuditSink {
	case config.AuditSinkNone:
		return audit.NoOp{}, nil, nil
	case config.AuditSinkDB:
		if db == nil {
			return nil, nil, errors.New("audit sink db needs a postgres url")
		}
		var err error
		dbLog, err = audit.NewDBLogger(db)
		if err != nil {
			return nil, nil, fmt.Errorf("init audit db logger: %w", err)
		}
		if err := dbLog.EnsureTable(ctx); err != nil {
			return nil, nil, fmt.Errorf("create audit table: %w", err)
		}
		sink = dbLog
	default:
		sink = audit.NewLogrusLogger(os.Stdout)
	}
	return audit.NewAsyncLogger(sink, 5*time.Second, metrics), dbLog, nil
}

func purgeAudit(ctx context.Context, l *audit.DBLogger, retention time.Duration, logger *observability.Logger) {
	pctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := l.Purge(pctx, time.Now().Add(-retention))
	if err != nil {
		logger.WithError(err).Error("Audit purge failed")
		return
	}
	logger.WithField("deleted", n).Info("Audit purge completed")
}

// withLogger places the base logger in every request context so handlers
// outside the endpoint pipeline log with the same output.
func withLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(observability.WithLogger(r.Context(), logger)))
		})
	}
}
