// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing and health checks for the API pipeline.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("route", "shifts.create").Info("endpoint registered")
//
// Request-scoped loggers travel in the context:
//
//	ctx = observability.WithLogger(ctx, logger.WithRequestID(reqID))
//	observability.FromContext(ctx).WithError(err).Error("membership lookup failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveRequest("shifts.create", "POST", 201, 12*time.Millisecond)
//	router.Handle("/metrics", metrics.Handler(registry))
//
// A nil *Metrics is valid and records nothing, which keeps tests free of
// registry setup.
//
// # Tracing
//
//	providers, err := observability.InitTracing(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
//
// When tracing is disabled the global no-op tracer is used.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	router.HandleFunc("/healthz", checker.Liveness)
//	router.HandleFunc("/readyz", checker.Readiness)
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/endpoint: records one metric sample and span per request
package observability
