// Command server runs the daftar API: phone-OTP login, merchant debt ledgers,
// subscription billing, and debtor reminders.
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

	"golang.org/x/sync/errgroup"

	"daftar/internal/admin"
	"daftar/internal/audit"
	"daftar/internal/billing"
	"daftar/internal/billing/smartpay"
	"daftar/internal/identity"
	"daftar/internal/ledger"
	"daftar/internal/messaging/osonsms"
	"daftar/internal/otp"
	"daftar/internal/platform/config"
	"daftar/internal/platform/httpserver"
	"daftar/internal/platform/kafka"
	"daftar/internal/platform/logger"
	"daftar/internal/platform/metrics"
	"daftar/internal/platform/postgres"
	"daftar/internal/platform/redis"
	"daftar/internal/reminder"
	"daftar/internal/tenant"
	transport "daftar/internal/transport/http"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}
	runner := postgres.NewTxRunner(db)

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	var challenges otp.ChallengeStore
	if redisClient != nil {
		defer redisClient.Close()
		challenges = otp.NewRedisChallenges(redisClient)
	} else {
		// Single-node fallback for local development without Redis.
		log.Warn("redis not configured, OTP challenges held in memory")
		challenges = otp.NewMemoryChallenges()
	}

	kafkaClient, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	if kafkaClient != nil {
		defer kafkaClient.Close()
	}

	m := metrics.New()

	// Stores.
	identities := identity.NewPostgresStore(db)
	stores := tenant.NewPostgresStores(db)
	grants := tenant.NewPostgresGrants(db)
	requests := tenant.NewPostgresRequests(db)
	debtors := ledger.NewPostgresDebtors(db)
	transactions := ledger.NewPostgresTransactions(db)
	invoices := billing.NewPostgresInvoices(db)
	notifications := billing.NewPostgresNotifications(db)
	dispatches := reminder.NewPostgresDispatches(db)
	otpLog := otp.NewPostgresRequestLog(db)
	attempts := admin.NewPostgresAttempts(db)
	auditStore := audit.NewPostgresStore(db)

	auditPub := audit.NewRecorder(auditStore, log)
	resolver := tenant.NewAccessResolver(stores, grants)
	sms := osonsms.New(cfg.SMS)

	merger := identity.NewMerger(runner, identities,
		[]identity.ReferenceRewriter{stores, grants, requests, debtors},
		identity.WithMergerLogger(log),
		identity.WithMergerAuditPublisher(auditPub),
		identity.WithMergerMetrics(m))

	issuer := otp.NewTokenIssuer(cfg.Auth.JWTSigningKey, cfg.Auth.SessionTTL)
	otpSvc := otp.NewService(challenges, otpLog, sms, identities, merger, issuer,
		cfg.Limits, cfg.Auth.ReviewPhone,
		otp.WithLogger(log),
		otp.WithMetrics(m))

	tenantSvc := tenant.NewService(runner, stores, grants, requests, resolver,
		tenant.WithLogger(log),
		tenant.WithAuditPublisher(auditPub))

	engine := ledger.NewEngine(runner, debtors, transactions, resolver,
		ledger.WithLogger(log),
		ledger.WithAuditPublisher(auditPub),
		ledger.WithMetrics(m))

	gate := reminder.NewGate(runner, dispatches, stores, debtors, resolver, sms,
		cfg.Limits.ReminderCooldown,
		reminder.WithLogger(log),
		reminder.WithAuditPublisher(auditPub),
		reminder.WithMetrics(m))

	billingSvc := billing.NewService(runner, invoices, notifications, stores,
		identities, resolver, smartpay.New(cfg.Billing), cfg.Billing.WebhookSecret,
		billing.WithLogger(log),
		billing.WithAuditPublisher(auditPub),
		billing.WithMetrics(m))

	adminSvc := admin.NewService(cfg.Admin, cfg.Auth.JWTSigningKey, cfg.Limits, attempts,
		admin.WithLogger(log),
		admin.WithAuditPublisher(auditPub))

	router := transport.NewRouter(transport.Deps{
		Logger:     log,
		Metrics:    m,
		Issuer:     issuer,
		OTP:        otpSvc,
		OTPLog:     otpLog,
		Identities: identities,
		Tenants:    tenantSvc,
		Ledger:     engine,
		Reminders:  gate,
		Billing:    billingSvc,
		Admin:      adminSvc,
	})
	server := httpserver.New(cfg.Server.Addr, router)

	notifier := billing.NewNotifier(notifications, stores, identities, sms,
		log, cfg.Limits.NotifierPollInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return notifier.Run(ctx)
	})
	if kafkaClient != nil {
		worker := audit.NewWorker(auditStore, kafkaClient, log, cfg.Limits.OutboxPollInterval)
		g.Go(func() error {
			return worker.Run(ctx)
		})
	} else {
		log.Warn("kafka not configured, audit events stay in the outbox")
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("server stopped", "uptime_end", time.Now().UTC())
	return err
}
