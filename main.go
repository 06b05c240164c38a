package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"livecharge-api/internal/audit"
	"livecharge-api/internal/auth"
	"livecharge-api/internal/config"
	"livecharge-api/internal/maintenance"
	"livecharge-api/internal/observability/metrics"
	"livecharge-api/internal/platform/database"
	"livecharge-api/internal/platform/logger"
	"livecharge-api/internal/stations/application"
	stationrepo "livecharge-api/internal/stations/infrastructure/postgres"
	stationhttp "livecharge-api/internal/stations/interfaces/http"
	"livecharge-api/internal/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database.URL, database.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("db open error", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.ApplySchema(ctx, db); err != nil {
			log.Fatal("schema apply error", zap.Error(err))
		}
		log.Info("schema applied")
	}

	metrics.Init(db, log)

	repos := application.Repositories{
		Stations: stationrepo.NewStationRepository(db),
		Sources:  stationrepo.NewSourceRepository(db),
		Chargers: stationrepo.NewChargerRepository(db),
		Events:   stationrepo.NewEventRepository(db),
		Comments: stationrepo.NewCommentRepository(db),
	}
	reconciler, err := application.NewReconciler(repos, application.WithReconcilerLogger(log))
	if err != nil {
		log.Fatal("reconciler error", zap.Error(err))
	}
	queries, err := application.NewQueryService(repos)
	if err != nil {
		log.Fatal("query service error", zap.Error(err))
	}

	tokenRepo := tokens.NewRepository(db)
	for _, key := range cfg.Auth.APIKeys {
		if err := tokenRepo.Create(ctx, key, "config"); err != nil {
			log.Fatal("api key seed error", zap.Error(err))
		}
	}
	tokenService, err := tokens.NewService(tokenRepo)
	if err != nil {
		log.Fatal("token service error", zap.Error(err))
	}
	apiKeyAuth, err := auth.NewAPIKeyMiddleware(tokenService, log)
	if err != nil {
		log.Fatal("api key middleware error", zap.Error(err))
	}

	auditRepo := audit.NewRepository(db)
	stationHandler, err := stationhttp.NewHandler(reconciler, queries,
		stationhttp.WithAuditLogger(auditRepo),
		stationhttp.WithLogger(log),
		stationhttp.WithMaxAreaLimit(cfg.Area.MaxLimit),
	)
	if err != nil {
		log.Fatal("station handler error", zap.Error(err))
	}

	maintenanceService, err := maintenance.NewService(maintenance.NewRepository(db), log)
	if err != nil {
		log.Fatal("maintenance service error", zap.Error(err))
	}
	maintenanceHandler, err := maintenance.NewHandler(maintenanceService, log)
	if err != nil {
		log.Fatal("maintenance handler error", zap.Error(err))
	}
	if cfg.Maintenance.DailyAt != "" {
		scheduler := maintenance.NewScheduler(maintenanceService, cfg.Maintenance.DailyAt, log)
		go scheduler.Start(ctx)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	jwtAuth := auth.NewMiddleware([]byte(cfg.Auth.JWTSecret), policy, log)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", apiKeyAuth.Wrap(stationHandler))
	mux.Handle("/inner/api/stations", stationHandler)
	mux.Handle("/inner/api/sources", stationHandler)
	mux.Handle("/inner/api/maintenance/chargers", maintenanceHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(jwtAuth.Wrap(mux), log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown error", zap.Error(err))
		}
	}()

	log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("http server error", zap.Error(err))
	}
}

const requestIDHeader = "X-Request-ID"

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
