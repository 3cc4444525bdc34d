package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/repocerti-api/api/swagger"
	"github.com/noah-isme/repocerti-api/internal/handler"
	internalmiddleware "github.com/noah-isme/repocerti-api/internal/middleware"
	"github.com/noah-isme/repocerti-api/internal/models"
	"github.com/noah-isme/repocerti-api/internal/repository"
	"github.com/noah-isme/repocerti-api/internal/service"
	"github.com/noah-isme/repocerti-api/pkg/ai"
	"github.com/noah-isme/repocerti-api/pkg/cache"
	"github.com/noah-isme/repocerti-api/pkg/config"
	"github.com/noah-isme/repocerti-api/pkg/database"
	"github.com/noah-isme/repocerti-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/repocerti-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/repocerti-api/pkg/middleware/requestid"
	"github.com/noah-isme/repocerti-api/pkg/storage"
)

// @title RepoCerti API
// @version 1.0.0
// @description Report and certificate repository with hierarchical visibility and AI assistance
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// recordStore is satisfied by both KVStore and SQLStore.
type recordStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	FindAccountByID(ctx context.Context, id string) (*models.Account, error)
	UpdateAccountDesignation(ctx context.Context, id string, designation models.Designation) (*models.Account, error)
	SaveRecord(ctx context.Context, record *models.StoredRecord) (*models.StoredRecord, error)
	ListRecordsForAccount(ctx context.Context, accountID string) ([]models.StoredRecord, error)
	ListRecords(ctx context.Context) ([]models.StoredRecord, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	validate := validator.New()

	records, checks, closers, err := openStore(ctx, cfg, logr, metrics)
	if err != nil {
		logr.Fatal("failed to open record store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	authSvc := service.NewAuthService(records, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	recordSvc := service.NewRecordService(records, validate, logr, metrics)

	assistantSvc := service.NewAssistantService(newGenerator(ctx, cfg, logr), validate, logr, metrics, service.AssistantConfig{
		ReportModel:     cfg.AI.ReportModel,
		ExtractionModel: cfg.AI.ExtractionModel,
		MaxConcurrency:  cfg.AI.MaxConcurrency,
		AllowedMIME:     cfg.Exports.AllowedImageMIME,
	})

	fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.String("dir", cfg.Exports.StorageDir), zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(fileStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, nil, nil)
	go runCleanup(ctx, exportSvc, cfg.Exports.CleanupInterval, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr,
		logger.WithSkipPaths(cfg.Log.SkipPaths...),
		logger.WithFields(internalmiddleware.AccessLogFields),
	))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics"))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), authSvc, routeHandlers{
		auth:      handler.NewAuthHandler(authSvc),
		records:   handler.NewRecordHandler(recordSvc, exportSvc),
		assistant: handler.NewAssistantHandler(assistantSvc, exportSvc, cfg.Exports.MaxUploadBytes),
		exports:   handler.NewExportHandler(exportSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routeHandlers struct {
	auth      *handler.AuthHandler
	records   *handler.RecordHandler
	assistant *handler.AssistantHandler
	exports   *handler.ExportHandler
}

func registerRoutes(api *gin.RouterGroup, authSvc *service.AuthService, h routeHandlers) {
	api.POST("/auth/register", h.auth.Register)
	api.POST("/auth/login", h.auth.Login)

	// The signed token is the credential for downloads.
	api.GET("/exports/:token", h.exports.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc), internalmiddleware.Viewer(authSvc))

	secured.GET("/auth/me", h.auth.Me)

	secured.POST("/records", h.records.Save)
	secured.GET("/records", h.records.ListVisible)
	secured.GET("/records/mine", h.records.ListMine)
	secured.GET("/records/:id", h.records.Get)
	secured.GET("/records/:id/pdf", h.records.DownloadPDF)

	secured.PATCH("/accounts/:id/designation",
		internalmiddleware.RequireDesignations(models.DesignationPrincipal),
		h.auth.UpdateDesignation,
	)

	assistant := secured.Group("/assistant")
	assistant.POST("/report/generate", h.assistant.GenerateSection)
	assistant.POST("/report/improve", h.assistant.ImproveText)
	assistant.POST("/certificates/extract", h.assistant.ExtractCertificate)
	assistant.POST("/certificates/verify", internalmiddleware.RequireRoles(models.RoleStaff), h.assistant.VerifyCertificates)
}

// openStore selects the record store named by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService) (recordStore, map[string]handler.ReadinessCheck, []io.Closer, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory, "":
		logr.Warn("using in-memory record store; data is lost on restart")
		kv := repository.NewKVStore(repository.NewMemoryBackend(), cfg.Store.Namespace, logr, metrics)
		return kv, map[string]handler.ReadinessCheck{}, nil, nil
	case config.StoreDriverRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		kv := repository.NewKVStore(repository.NewRedisBackend(client), cfg.Store.Namespace, logr, metrics)
		checks := map[string]handler.ReadinessCheck{
			"redis": func(ctx context.Context) error { return cache.Ping(ctx, client) },
		}
		return kv, checks, []io.Closer{client}, nil
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := repository.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		checks := map[string]handler.ReadinessCheck{
			"postgres": db.PingContext,
		}
		return repository.NewSQLStore(db), checks, []io.Closer{db}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// newGenerator returns nil when no API key is configured so assistant calls fail with an upstream error.
func newGenerator(ctx context.Context, cfg *config.Config, logr *zap.Logger) service.Generator {
	client, err := ai.New(ctx, cfg.AI)
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			logr.Warn("GEMINI_API_KEY not set; assistant endpoints are disabled")
		} else {
			logr.Error("failed to create AI client", zap.Error(err))
		}
		return nil
	}
	return client
}

func runCleanup(ctx context.Context, exports *service.ExportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("export cleanup", zap.Int("removed", len(removed)))
			}
		}
	}
}
