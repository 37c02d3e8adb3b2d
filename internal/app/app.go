package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/taskfiles/internal/config"
	"github.com/templui/taskfiles/internal/db"
	"github.com/templui/taskfiles/internal/middleware"
	"github.com/templui/taskfiles/internal/repository"
	"github.com/templui/taskfiles/internal/service"
	"github.com/templui/taskfiles/internal/storage"
)

// Blob purge batch size per tick
const purgeBatch = 100

type App struct {
	Cfg               *config.Config
	DB                *sqlx.DB
	Storage           storage.Storage
	AuthService       *service.AuthService
	TenantService     *service.TenantService
	TaskService       *service.TaskService
	AttachmentService *service.AttachmentService
	UploadLimiter     *middleware.RateLimiter

	bgCtx  context.Context
	cancel context.CancelFunc
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(ctx, cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Repositories
	tenantRepository := repository.NewTenantRepository(database)
	projectRepository := repository.NewProjectRepository(database)
	taskRepository := repository.NewTaskRepository(database)
	attachmentRepository := repository.NewAttachmentRepository(database)

	// Storage
	blobStorage, err := storage.New(cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Background work lives until Close
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	return &App{
		Cfg:               cfg,
		DB:                database,
		Storage:           blobStorage,
		AuthService:       service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry),
		TenantService:     service.NewTenantService(tenantRepository),
		TaskService:       service.NewTaskService(tenantRepository, projectRepository, taskRepository),
		AttachmentService: service.NewAttachmentService(attachmentRepository, taskRepository, blobStorage, cfg.UploadMaxBytes),
		UploadLimiter:     middleware.NewRateLimiter(bgCtx, cfg.UploadRateLimit, cfg.UploadRateWindow),
		bgCtx:             bgCtx,
		cancel:            cancel,
	}, nil
}

// StartPurger retries failed blob deletes every PurgeInterval until the app closes.
func (a *App) StartPurger() {
	if a.Cfg.PurgeInterval <= 0 {
		return
	}
	go a.AttachmentService.RunPurger(a.bgCtx, a.Cfg.PurgeInterval, purgeBatch)
}

func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.DB != nil {
		return db.Close(a.DB)
	}
	return nil
}
