package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"zenid/internal/admin"
	auditsvc "zenid/internal/audit"
	audithandler "zenid/internal/audit/handler"
	"zenid/internal/coordinator"
	jwttoken "zenid/internal/jwt_token"
	"zenid/internal/platform/config"
	"zenid/internal/platform/httpserver"
	"zenid/internal/platform/logger"
	platformmetrics "zenid/internal/platform/metrics"
	redisplatform "zenid/internal/platform/redis"
	"zenid/internal/policy"
	"zenid/internal/provider"
	"zenid/internal/ratelimit"
	"zenid/internal/session"
	sessionhandler "zenid/internal/session/handler"
	sessionmetrics "zenid/internal/session/metrics"
	httptransport "zenid/internal/transport/http"
	audit "zenid/pkg/platform/audit"
	auditpublisher "zenid/pkg/platform/audit/publisher"
	auditmemory "zenid/pkg/platform/audit/store/memory"
	auditpg "zenid/pkg/platform/audit/store/postgres"
	auditworker "zenid/pkg/platform/audit/worker"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. Postgres when configured, in-memory otherwise; the in-memory
	// stores lose everything on restart and exist for development only.
	var (
		sessionStore session.Store
		auditStore   audit.Store
	)
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		sessionStore = session.NewPostgresStore(db)
		auditStore = auditpg.New(db)
		log.Info("storage configured", "backend", "postgres")
	} else {
		sessionStore = session.NewInMemoryStore()
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("no postgres DSN configured, using in-memory storage")
	}

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis connected")
	}

	group, gctx := errgroup.WithContext(ctx)

	// Audit recorder; the ledger store is the source of truth, the Kafka
	// stream (when configured) is drained off the write path by a worker.
	recorderOpts := []audit.Option{audit.WithLogger(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := auditpublisher.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return fmt.Errorf("create kafka publisher: %w", err)
		}
		defer pub.Close()

		outbox := make(chan audit.Event, 1024)
		recorderOpts = append(recorderOpts, audit.WithOutbox(outbox))
		w := auditworker.NewWorker(pub, outbox)
		group.Go(func() error {
			if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("audit publish worker: %w", err)
			}
			return nil
		})
		log.Info("audit stream enabled", "topic", cfg.Kafka.Topic)
	}
	recorder := audit.NewRecorder(auditStore, recorderOpts...)

	// Policies: the seed policy is always available; a policy file can add
	// or replace entries.
	policies := policy.NewRegistry()
	if err := policies.Put(policy.Default()); err != nil {
		return fmt.Errorf("register default policy: %w", err)
	}
	if cfg.Session.PolicyFile != "" {
		if err := policies.LoadFile(cfg.Session.PolicyFile); err != nil {
			return fmt.Errorf("load policy file: %w", err)
		}
		log.Info("policy file loaded", "path", cfg.Session.PolicyFile)
	}

	providers := provider.NewRegistry()
	if err := registerProviders(providers); err != nil {
		return fmt.Errorf("register providers: %w", err)
	}

	coord := coordinator.New(
		coordinator.WithLogger(log),
		coordinator.WithAttemptSink(session.NewAuditAttemptSink(recorder, log)),
	)

	var tokenStore coordinator.TokenStore
	if redisClient != nil {
		tokenStore = coordinator.NewRedisTokenStore(redisClient.Client)
	} else {
		tokenStore = coordinator.NewInMemoryTokenStore()
	}
	delivery := coordinator.NewDelivery(tokenStore, 5*time.Minute, log)

	manager := session.NewManager(sessionStore, recorder, policies, providers, coord, delivery,
		session.WithLogger(log),
		session.WithMetrics(sessionmetrics.New()),
		session.WithBaseContext(gctx),
	)
	defer manager.Close()

	if err := manager.Resume(ctx); err != nil {
		return fmt.Errorf("resume unsettled sessions: %w", err)
	}

	var limiterStore ratelimit.Store
	if redisClient != nil {
		limiterStore = ratelimit.NewRedisStore(redisClient.Client)
	} else {
		limiterStore = ratelimit.NewInMemoryStore()
	}

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)

	router := httptransport.NewRouter(httptransport.Deps{
		Sessions:   sessionhandler.New(manager, log),
		Audit:      audithandler.New(auditsvc.NewService(auditStore, log), log),
		Admin:      admin.New(policies, log),
		Validator:  jwttoken.NewJWTServiceAdapter(jwtService),
		Limiter:    ratelimit.NewMiddleware(limiterStore, log),
		Metrics:    platformmetrics.New(),
		Logger:     log,
		AdminToken: cfg.Server.AdminToken,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	group.Go(func() error {
		log.Info("starting zenid", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// registerProviders installs the development adapters under the IDs the seed
// policy's fallback chains reference. Production deployments swap these for
// real vendor integrations.
func registerProviders(r *provider.Registry) error {
	registrations := []error{
		r.RegisterDocument(provider.MockDocumentVerifier{Name: "ocr-primary", Latency: 150 * time.Millisecond}),
		r.RegisterDocument(provider.MockDocumentVerifier{Name: "ocr-fallback", Latency: 300 * time.Millisecond, Confidence: 88}),
		r.RegisterRegistry(provider.MockRegistryValidator{Name: "gov-registry", Latency: 200 * time.Millisecond}),
		r.RegisterBiometric(provider.MockBiometricMatcher{Name: "facial-primary", Latency: 250 * time.Millisecond}),
		r.RegisterBiometric(provider.MockBiometricMatcher{Name: "facial-fallback", Latency: 400 * time.Millisecond, Liveness: 0.85}),
		r.RegisterBehavioral(provider.MockBehavioralScorer{Name: "behavioral", Latency: 100 * time.Millisecond}),
	}
	return errors.Join(registrations...)
}
