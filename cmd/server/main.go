package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"garrison/internal/cooldown"
	"garrison/internal/otp"
	otpmetrics "garrison/internal/otp/metrics"
	"garrison/internal/platform/config"
	"garrison/internal/platform/httpserver"
	"garrison/internal/platform/logger"
	platformmetrics "garrison/internal/platform/metrics"
	platformredis "garrison/internal/platform/redis"
	"garrison/internal/registration/handler"
	regmetrics "garrison/internal/registration/metrics"
	"garrison/internal/registration/service"
	regstore "garrison/internal/registration/store"
	"garrison/internal/sweeper"
	"garrison/internal/token"
	httptransport "garrison/internal/transport/http"
	"garrison/pkg/email"
	"garrison/pkg/platform/audit"
	"garrison/pkg/platform/audit/publisher"
	auditkafka "garrison/pkg/platform/audit/sink/kafka"
	auditmemory "garrison/pkg/platform/audit/store/memory"
	"garrison/pkg/platform/circuit"
	authmw "garrison/pkg/platform/middleware/auth"
)

// main wires the dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages. Stores are
// selected by configuration: Redis and Postgres when configured, in-memory
// fallbacks for development.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSigningKey == "" {
		log.Warn("JWT_SIGNING_KEY unset, signing with the built-in debug key")
		cfg.JWTSigningKey = config.DevJWTSigningKey
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]httptransport.HealthCheck{}

	// Redis backs the code and cooldown stores when configured.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
	}

	var codes otp.CodeStore
	var cooldowns cooldown.Store
	switch {
	case redisClient != nil:
		codes = otp.NewRedisCodeStore(redisClient.Client)
		cooldowns = cooldown.NewRedisStore(redisClient.Client, 0)
	case cfg.Postgres.DSN != "":
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Error("postgres setup failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pgCodes := otp.NewPostgresCodeStore(db)
		if err := pgCodes.EnsureSchema(ctx); err != nil {
			log.Error("code schema setup failed", "error", err)
			os.Exit(1)
		}
		codes = pgCodes
		cooldowns = cooldown.NewInMemoryStore()
		checks["postgres_codes"] = db.PingContext
	default:
		codes = otp.NewInMemoryCodeStore()
		cooldowns = cooldown.NewInMemoryStore()
	}

	// Registration records live in Postgres when configured.
	var records regstore.Store
	if cfg.Postgres.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Error("registration database setup failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pgRecords := regstore.NewPostgresStore(pool)
		if err := pgRecords.EnsureSchema(ctx); err != nil {
			log.Error("registration schema setup failed", "error", err)
			os.Exit(1)
		}
		records = pgRecords
		checks["postgres"] = pool.Ping
	} else {
		records = regstore.NewInMemoryStore()
	}

	// Audit trail: in-memory primary, Kafka sink when brokers are set.
	auditStore := auditmemory.NewInMemoryStore()
	var auditTarget audit.Store = auditStore
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := auditkafka.Dial(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka audit sink setup failed", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		if err := sink.EnsureTopic(ctx, 3, 1); err != nil {
			log.Error("kafka audit topic setup failed", "error", err)
			os.Exit(1)
		}
		auditTarget = audit.NewTee(auditStore, sink)
	}
	auditor := publisher.NewPublisher(auditTarget, publisher.WithAsyncBuffer(256))
	defer auditor.Close()

	// Verification channels share the cooldown controller and metrics.
	cd := cooldown.New(cooldowns)
	om := otpmetrics.New()
	mailer := otp.NewBreakerSender(
		email.NewCodeMailer(log, nil),
		otp.NewLogSender(otp.ChannelEmail, log),
		circuit.New("email-delivery"),
		log,
	)
	sms := otp.NewLogSender(otp.ChannelPhone, log)
	emailChannel := otp.NewAdapter(otp.ChannelEmail, codes, mailer, cd, om, log, otp.WithDebugEcho(cfg.DebugOTP))
	phoneChannel := otp.NewAdapter(otp.ChannelPhone, codes, sms, cd, om, log, otp.WithDebugEcho(cfg.DebugOTP))

	jwtService := token.NewJWTService(cfg.JWTSigningKey, "garrison", "garrison-clients")
	issuer := token.NewIssuer(jwtService, token.NewInMemoryRefreshStore())

	flow := service.New(records, emailChannel, phoneChannel, issuer, auditor, log, regmetrics.New())

	flowHandler := handler.New(flow, log, authmw.RequireSession(jwtService, log))
	router := httptransport.NewRouter(log, platformmetrics.NewHTTP(), checks, flowHandler)
	srv := httpserver.New(cfg.Addr, router)

	sweep := sweeper.New(codes, staleSweepTarget(records), config.PendingRegistrationTTL, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting garrison", "addr", cfg.Addr, "debug_otp", cfg.DebugOTP)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := sweep.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// staleSweepTarget narrows a store to the sweeper interface. Both store
// implementations reclaim stale pending registrations.
func staleSweepTarget(s regstore.Store) sweeper.RegistrationStore {
	if t, ok := s.(sweeper.RegistrationStore); ok {
		return t
	}
	return noStaleSweep{}
}

type noStaleSweep struct{}

func (noStaleSweep) DeleteStalePending(context.Context, time.Time) (int, error) { return 0, nil }
