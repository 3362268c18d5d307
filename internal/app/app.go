package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio_backend/internal/config"
	"portfolio_backend/internal/controller"
	"portfolio_backend/internal/repository"
	"portfolio_backend/internal/service"
	"portfolio_backend/pkg/database"
	"portfolio_backend/pkg/events"
	"portfolio_backend/pkg/logger"
	"portfolio_backend/pkg/monitoring"
	"portfolio_backend/pkg/security"
	"portfolio_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config    *config.Config
	Router    *gin.Engine
	DB        *gorm.DB
	Redis     *redis.Client
	Publisher events.Publisher

	services        *services
	tracer          *sdktrace.TracerProvider
	stop            context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user     service.UserStore
	evidence service.EvidenceRepository
}

type services struct {
	catalog  *service.CatalogService
	storage  service.StorageProvider
	auth     *service.AuthService
	evidence *service.EvidenceService
	progress *service.ProgressService
}

type controllers struct {
	auth      *controller.AuthController
	portfolio *controller.PortfolioController
	evidence  *controller.EvidenceController
	file      *controller.FileController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig hands a reloaded config to the parts that can change at runtime.
func (a *App) ApplyConfig(cfg *config.Config) {
	logger.ApplyConfig(cfg)
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	if db == nil {
		return &repositories{
			user:     repository.NewMemoryUserRepository(),
			evidence: repository.NewMemoryEvidenceRepository(),
		}
	}
	return &repositories{
		user:     repository.NewUserRepository(db),
		evidence: repository.NewEvidenceRepository(db),
	}
}

func (a *App) initServices(ctx context.Context, repos *repositories, cfg *config.Config, publisher events.Publisher) (*services, error) {
	catalog, err := service.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	storage, err := service.NewStorageProvider(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	s := &services{
		catalog: catalog,
		storage: storage,
	}
	s.auth = service.NewAuthService(repos.user, cfg)
	s.evidence = service.NewEvidenceService(repos.evidence, storage, catalog, publisher, cfg)
	s.progress = service.NewProgressService(catalog, repos.evidence)
	return s, nil
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		portfolio: controller.NewPortfolioController(s.catalog, s.progress),
		evidence:  controller.NewEvidenceController(s.evidence),
		file:      controller.NewFileController(s.storage, &a.Config.Download),
		health:    controller.NewHealthController(a.DB, a.Redis),
	}
}

// newPublisher picks the event sink named by events.driver.
func newPublisher(cfg *config.EventsConfig, rdb *redis.Client) (events.Publisher, error) {
	switch cfg.Driver {
	case config.EventsRedis:
		if rdb == nil {
			return nil, fmt.Errorf("events driver %q requires redis", cfg.Driver)
		}
		return events.NewRedisPublisher(rdb, cfg.Topic), nil
	case config.EventsKafka:
		return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic), nil
	case config.EventsRabbitMQ:
		return events.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.Topic)
	default:
		return events.NewLogPublisher(logger.Log), nil
	}
}

func (a *App) setupMiddlewares(ctx context.Context, router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(ctx, cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{Config: cfg, stop: cancel}

	if cfg.Database.Driver == config.DatabaseMySQL {
		db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("init database: %w", err)
		}
		app.DB = db

		if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
			if err := database.Migrate(db); err != nil {
				cancel()
				return nil, fmt.Errorf("migrate database: %w", err)
			}
		}
		if cfg.MigrateOnly {
			return app, nil
		}
	} else {
		logger.Log.Warn("Using in-memory metadata store; data is lost on restart")
	}

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		app.Redis = rdb
	}

	publisher, err := newPublisher(&cfg.Events, app.Redis)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("init events: %w", err)
	}
	app.Publisher = publisher

	repos := app.initRepositories(app.DB)
	services, err := app.initServices(ctx, repos, cfg, publisher)
	if err != nil {
		cancel()
		return nil, err
	}
	app.services = services

	if err := services.auth.EnsureAdmin(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	controllers := app.initControllers(services)

	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		app.tracer = tp
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.Default()
	router.MaxMultipartMemory = 8 << 20
	app.Router = router

	app.setupMiddlewares(ctx, router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == config.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app, nil
}

// Close releases broker, cache and tracer resources.
func (a *App) Close() {
	a.stop()

	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			logger.Log.Error("Failed to close event publisher", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	logger.Log.Sync()
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close()
	log.Println("Server exiting")
}
