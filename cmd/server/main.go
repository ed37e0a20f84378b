// server runs the taskvault HTTP API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskvault/backend/internal/audit"
	audithandler "taskvault/backend/internal/audit/handler"
	auditrepo "taskvault/backend/internal/audit/repository"
	authhandler "taskvault/backend/internal/auth/handler"
	authservice "taskvault/backend/internal/auth/service"
	"taskvault/backend/internal/config"
	"taskvault/backend/internal/db"
	"taskvault/backend/internal/event"
	eventotel "taskvault/backend/internal/event/otel"
	"taskvault/backend/internal/event/producer"
	"taskvault/backend/internal/security"
	"taskvault/backend/internal/server"
	"taskvault/backend/internal/server/middleware"
	sessionrepo "taskvault/backend/internal/session/repository"
	taskhandler "taskvault/backend/internal/task/handler"
	taskrepo "taskvault/backend/internal/task/repository"
	taskservice "taskvault/backend/internal/task/service"
	userrepo "taskvault/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	tokens, err := security.NewTokenProvider([]byte(cfg.JWTAccessSecret), []byte(cfg.JWTRefreshSecret))
	if err != nil {
		log.Error("token provider", "error", err)
		os.Exit(1)
	}
	hasher := security.NewHasher(cfg.BcryptCost)

	users := userrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	tasks := taskrepo.NewPostgresRepository(conn)
	auditStore := auditrepo.NewPostgresRepository(conn)

	auditLogger := audit.NewLogger(auditStore, middleware.ClientIPFromContext, log)

	// Auth events go to Kafka when brokers are configured; otherwise to the
	// OTLP collector when one is set. Both empty means events are dropped.
	var emitter event.Emitter
	kafkaProducer := producer.NewKafkaProducer(cfg.AuditKafkaBrokersList(), cfg.AuditKafkaTopic)
	providers, err := eventotel.NewProviders(context.Background(), cfg.OTLPEndpoint, "taskvault-api", cfg.OTLPInsecure)
	if err != nil {
		log.Error("otel", "error", err)
		os.Exit(1)
	}
	providers.SetGlobal()
	if kafkaProducer != nil {
		emitter = kafkaProducer
	} else if cfg.OTLPEndpoint != "" {
		emitter = eventotel.NewEventEmitter(providers.LoggerProvider)
	}

	authSvc := authservice.NewAuthService(users, sessions, hasher, tokens,
		cfg.AccessTTL(), cfg.RefreshTTL(), auditLogger, emitter)
	taskSvc := taskservice.NewTaskService(tasks)

	router := server.NewRouter(server.Deps{
		Auth:   authhandler.NewAuthHandler(authSvc, users, cfg.RefreshTTL(), cfg.Env == "production"),
		Tasks:  taskhandler.NewTaskHandler(taskSvc),
		Audit:  audithandler.NewAuditHandler(auditStore),
		Tokens: tokens,
		DB:     conn,
		Log:    log,
		Env:    cfg.Env,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("serve", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}

	// Give in-flight async event emits time to land before tearing down the
	// producer and the OTel pipeline.
	time.Sleep(event.ShutdownDrainDuration)
	if err := kafkaProducer.Close(); err != nil {
		log.Warn("kafka close", "error", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("otel shutdown", "error", err)
	}
	log.Info("stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
