package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/config"
	"github.com/upb/tracking-bridge/credential"
	"github.com/upb/tracking-bridge/identity"
	"github.com/upb/tracking-bridge/internal/observability"
	"github.com/upb/tracking-bridge/middleware"
	"github.com/upb/tracking-bridge/repositories"
	"github.com/upb/tracking-bridge/repositories/postgres"
	"github.com/upb/tracking-bridge/services/audit"
	"github.com/upb/tracking-bridge/services/bridge"
	"github.com/upb/tracking-bridge/services/proxy"
	"github.com/upb/tracking-bridge/services/ratelimit"
	"github.com/upb/tracking-bridge/services/session"
	"github.com/upb/tracking-bridge/services/upstream"
)

const auditDrainTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users       repositories.UserRepository
	LoginAudits repositories.LoginAuditRepository
	TxManager   repositories.TransactionManager

	// Vendor bridge
	Sessions  session.Store
	Issuer    *credential.Issuer
	Vendor    *upstream.Client
	Recorder  *audit.Recorder
	Throttle  *ratelimit.LoginLimiter
	Bridge    *bridge.Service
	Forwarder *proxy.Forwarder

	// Auth
	AuthMiddleware *middleware.AuthMiddleware

	stopCleanup    chan struct{}
	sessionsClosed bool
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithFactory(ctx, cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithFactory wires everything above an already open
// repository factory.
func NewDependenciesWithFactory(ctx context.Context, cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		Metrics:     observability.NewMetrics(),
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	deps.initRepositories()

	if err := deps.initSessions(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	if err := deps.initBridge(); err != nil {
		_ = deps.closeSessions()
		return nil, fmt.Errorf("failed to initialize login bridge: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.LoginAudits = repos.LoginAudits
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initSessions builds the configured vendor session store
func (d *Dependencies) initSessions(ctx context.Context) error {
	cfg := d.Config.Session

	switch cfg.Backend {
	case "redis":
		store, err := session.NewRedisStore(ctx, session.RedisOptions{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			KeyPrefix:  cfg.Redis.KeyPrefix,
			Timeout:    cfg.Redis.Timeout,
			DefaultTTL: cfg.TTL,
		})
		if err != nil {
			return err
		}
		d.Sessions = store
	default:
		store := session.NewMemoryStore(cfg.TTL)
		if cfg.CleanupInterval > 0 {
			d.stopCleanup = make(chan struct{})
			store.StartCleanupWorker(cfg.CleanupInterval, d.stopCleanup)
		}
		d.Sessions = store
	}

	d.Logger.Info("session store initialized",
		zap.String("backend", cfg.Backend),
		zap.Duration("ttl", cfg.TTL))
	return nil
}

// initBridge wires the credential issuer, vendor client, audit recorder,
// login bridge, proxy forwarder and authentication middleware.
func (d *Dependencies) initBridge() error {
	cfg := d.Config
	admins := identity.NewAdminList(cfg.Auth.AdminUsers)

	issuer, err := credential.NewIssuer(credential.Config{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		Validity:   cfg.Auth.TokenTTL,
	})
	if err != nil {
		return err
	}
	d.Issuer = issuer

	vendor, err := upstream.NewClient(cfg.Vendor, d.Metrics, d.Logger.Named("vendor"))
	if err != nil {
		return err
	}
	d.Vendor = vendor

	d.Recorder = audit.NewRecorder(d.LoginAudits, d.Logger.Named("audit"), audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
	}, d.Metrics)
	if err := d.Recorder.Start(); err != nil {
		return err
	}

	d.Throttle = ratelimit.NewLoginLimiter(d.DB.DB, ratelimit.Config{
		MaxFailuresPerUser: cfg.Throttle.MaxFailuresPerUser,
		MaxFailuresPerIP:   cfg.Throttle.MaxFailuresPerIP,
		Window:             cfg.Throttle.Window,
		CountedReason:      bridge.OutcomeUpstreamRejected,
	}, d.Logger.Named("throttle"))

	deps := bridge.Deps{
		Vendor:      vendor,
		TokenPaths:  cfg.Vendor.TokenPaths,
		Users:       d.Users,
		LoginAudits: d.LoginAudits,
		TxManager:   d.TxManager,
		Issuer:      issuer,
		Sessions:    d.Sessions,
		SessionTTL:  cfg.Session.TTL,
		Admins:      admins,
		Recorder:    d.Recorder,
		Observer:    d.Metrics,
		Logger:      d.Logger.Named("bridge"),
	}
	if d.Throttle.Enabled() {
		deps.Throttle = d.Throttle
	}
	d.Bridge = bridge.NewService(deps)
	d.Forwarder = proxy.NewForwarder(vendor, d.Sessions, d.Metrics, d.Logger.Named("proxy"))
	d.AuthMiddleware = middleware.NewAuthMiddleware(issuer, cfg.Auth.TrustedHeader, admins, d.Metrics, d.Logger)

	d.Logger.Info("login bridge initialized",
		zap.String("vendor", cfg.Vendor.BaseURL),
		zap.Int("admins", admins.Len()),
		zap.Bool("throttle", d.Throttle.Enabled()))
	return nil
}

func (d *Dependencies) closeSessions() error {
	if d.stopCleanup != nil {
		close(d.stopCleanup)
		d.stopCleanup = nil
	}
	if d.sessionsClosed {
		return nil
	}
	d.sessionsClosed = true
	if closer, ok := d.Sessions.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain queued audit rows before the pool goes away
	if d.Recorder != nil {
		if err := d.Recorder.Stop(auditDrainTimeout); err != nil && !errors.Is(err, audit.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("failed to stop audit recorder: %w", err))
		}
	}

	if err := d.closeSessions(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close session store: %w", err))
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
