package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-account-service/internal/config"
	"go-account-service/internal/database"
	"go-account-service/internal/event"
	"go-account-service/internal/handler"
	"go-account-service/internal/metrics"
	"go-account-service/internal/middleware"
	"go-account-service/internal/notify"
	"go-account-service/internal/repository"
	"go-account-service/internal/router"
	"go-account-service/internal/security"
	"go-account-service/internal/service"
	"go-account-service/internal/token"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

type stores struct {
	accounts service.AccountStore
	audit    service.AuditStore
	health   interface{ Health(ctx context.Context) error }
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	st, err := a.openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hasher, err := security.NewHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	tokens, err := token.NewManager(token.Config{
		Secret:          cfg.JWTSecret,
		Issuer:          cfg.JWTIssuer,
		SessionTTL:      cfg.SessionTokenTTL,
		VerificationTTL: cfg.VerificationTokenTTL,
		ResetTTL:        cfg.ResetTokenTTL,
	})
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize token manager: %w", err)
	}

	m := metrics.New()
	bus := event.NewBus()

	sender, err := newSender(cfg)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize mail sender: %w", err)
	}
	dispatcher := notify.NewDispatcher(sender, notify.DispatcherConfig{
		QueueSize: cfg.MailQueueSize,
		Workers:   2,
		Timeout:   cfg.MailSendTimeout * time.Duration(cfg.MailMaxRetries+1),
		OnResult:  dispatchObserver(m, bus),
	})

	accountService, err := service.NewAccountService(st.accounts, hasher, tokens, dispatcher, bus, m, service.AccountServiceConfig{
		Templates: notify.Templates{PublicURL: cfg.PublicURL, AppName: cfg.AppName},
	})
	if err != nil {
		dispatcher.Close()
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize account service: %w", err)
	}
	auditService := service.NewAuditService(st.audit)

	workerCtx, workerCancel := context.WithCancel(context.WithoutCancel(ctx))
	auditDone := auditService.Consume(workerCtx, bus)
	sweeperDone := accountService.StartResetSweeper(workerCtx, cfg.ResetSweepInterval)
	// Drain queued mail first so its outcome events still reach the audit
	// consumer, then stop the workers, then release the pool.
	a.cleanupFuncs = append([]func(){
		dispatcher.Close,
		func() {
			workerCancel()
			<-auditDone
			<-sweeperDone
		},
	}, a.cleanupFuncs...)

	authMiddleware := middleware.NewAuthMiddleware(tokens)
	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Account: handler.NewAccountHandler(accountService),
		Audit:   handler.NewAuditHandler(auditService),
		Docs:    handler.NewDocsHandler(),
		Health:  handler.NewHealthHandler(st.health),
	}, m)

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

// openStores connects to PostgreSQL and applies migrations, or falls back to
// the in-memory repositories when no DATABASE_URL is configured.
func (a *App) openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		slog.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		return stores{
			accounts: repository.NewMemoryAccountRepository(),
			audit:    repository.NewMemoryAuditRepository(),
		}, nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return stores{}, fmt.Errorf("failed to apply migrations: %w", err)
	}

	a.db = db
	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)
	slog.Info("database ready")

	return stores{
		accounts: repository.NewAccountRepository(db.Pool),
		audit:    repository.NewAuditRepository(db.Pool),
		health:   db,
	}, nil
}

func newSender(cfg *config.Config) (notify.Notifier, error) {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		slog.Warn("SMTP_HOST not set, notifications are logged instead of sent")
		return notify.NewLogSender(slog.Default()), nil
	}

	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.MailFrom,
		Timeout:    cfg.MailSendTimeout,
		MaxRetries: cfg.MailMaxRetries,
	})
	if err != nil {
		return nil, err
	}
	return sender, nil
}

// dispatchObserver reports queued deliveries to metrics and the event bus.
func dispatchObserver(m *metrics.Metrics, bus event.Bus) notify.ResultFunc {
	return func(ctx context.Context, msg notify.Message, err error) {
		m.ObserveDispatch(string(msg.Kind), err)

		e := event.Event{Type: event.TypeNotificationDelivered, Email: msg.To, Detail: string(msg.Kind)}
		if err != nil {
			slog.WarnContext(ctx, "notification delivery failed", "kind", msg.Kind, "error", err)
			e.Type = event.TypeNotificationFailed
		}
		bus.Publish(e)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			a.cleanup()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(shutdownCtx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
	a.cleanupFuncs = nil
}

// Migrate applies the embedded migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required to run migrations")
	}

	db, err := database.New(ctx, database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,

		ApplicationName: database.DefaultApplicationName + "-migrate",
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("migrations applied")
	return nil
}
