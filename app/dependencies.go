package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tracelens/tracelens/config"
	"github.com/tracelens/tracelens/middleware"
	"github.com/tracelens/tracelens/repositories"
	"github.com/tracelens/tracelens/repositories/postgres"
	"github.com/tracelens/tracelens/services/analysis"
	"github.com/tracelens/tracelens/services/audit"
	"github.com/tracelens/tracelens/services/issues"
	"github.com/tracelens/tracelens/services/notify"
	"github.com/tracelens/tracelens/services/pipeline"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Traces        repositories.TraceRepository
	TracePayloads repositories.TracePayloadStore
	Issues        repositories.IssueRepository
	Notifications repositories.NotificationRepository
	AuditEntries  repositories.AuditRepository
	TxManager     repositories.TransactionManager

	// Services
	Recorder     *audit.Recorder
	Dispatcher   *notify.Dispatcher
	Engine       *analysis.Engine
	IssueService *issues.Service
	Coordinator  *pipeline.Coordinator

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()
	deps.initServices(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection(s) and the schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := factory.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Traces = repos.Traces
	d.TracePayloads = repos.TracePayloads
	d.Issues = repos.Issues
	d.Notifications = repos.Notifications
	d.AuditEntries = repos.AuditEntries
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initServices wires the pipeline services together
func (d *Dependencies) initServices(cfg *config.Config) {
	d.Recorder = audit.NewRecorder(d.AuditEntries, d.Logger)

	d.Dispatcher = notify.NewDispatcher(d.Notifications, d.Logger, notify.Config{
		BufferSize:  cfg.Pipeline.NotifyBufferSize,
		WorkerCount: cfg.Pipeline.NotifyWorkerCount,
	})

	d.Engine = analysis.NewEngine(d.Logger, analysis.DefaultRules(cfg.Pipeline)...)

	d.IssueService = issues.NewService(
		d.Issues, d.TxManager, d.Recorder, d.Dispatcher,
		cfg.Pipeline.RefreshSeverity, d.Logger)

	d.Coordinator = pipeline.NewCoordinator(
		d.Traces, d.TracePayloads, d.TxManager,
		d.Engine, d.IssueService, d.Recorder, d.Dispatcher,
		cfg.Pipeline, d.Logger)

	d.Logger.Info("pipeline services initialized",
		zap.Bool("refresh_severity", cfg.Pipeline.RefreshSeverity),
		zap.Duration("analysis_timeout", cfg.Pipeline.AnalysisTimeout))
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("jwt secret not configured, all protected routes will reject")
		d.AuthMiddleware = middleware.NewAuthMiddleware(&rejectAllValidator{}, d.Logger)
		return
	}
	validator := middleware.NewJWTValidator(cfg.Auth)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("auth middleware initialized", zap.String("issuer", cfg.Auth.Issuer))
}

// rejectAllValidator rejects all tokens (used when no JWT secret is configured)
type rejectAllValidator struct{}

func (*rejectAllValidator) ValidateToken(context.Context, string) (*middleware.Claims, error) {
	return nil, fmt.Errorf("authentication not configured")
}

// Start launches the background workers.
func (d *Dependencies) Start() error {
	return d.Dispatcher.Start()
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain queued notifications before closing the database they write to.
	if d.Dispatcher != nil {
		if err := d.Dispatcher.Stop(10 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop notification dispatcher: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
