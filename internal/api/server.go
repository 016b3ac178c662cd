package api

import (
	"context"
	"time"

	"github.com/ShixuDing/32933-project-match/config"
	"github.com/ShixuDing/32933-project-match/infra/queue"
	"github.com/ShixuDing/32933-project-match/internal/api/rest/handlers"
	"github.com/ShixuDing/32933-project-match/internal/api/rest/middleware"
	"github.com/ShixuDing/32933-project-match/internal/clients/llm"
	"github.com/ShixuDing/32933-project-match/internal/helper"
	"github.com/ShixuDing/32933-project-match/internal/helper/utils"
	"github.com/ShixuDing/32933-project-match/internal/interfaces"
	"github.com/ShixuDing/32933-project-match/internal/metrics"
	"github.com/ShixuDing/32933-project-match/internal/services"
	"github.com/ShixuDing/32933-project-match/pkg/cloudinary"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/im7mortal/kmutex"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var logger = loggo.GetLogger("projmatch.api")

const shutdownTimeout = 10 * time.Second

// Deps is everything the HTTP layer needs. The services are built by
// StartServer, or by tests over sqlite.
type Deps struct {
	Auth       helper.Auth
	Users      services.UserService
	Assignment services.AssignmentService
	Projects   services.ProjectService
	Matching   services.MatchingService
	Registry   *prometheus.Registry

	AllowOrigins string
	// AIRequestsPerMinute limits the public AI routes per client IP. Zero disables it.
	AIRequestsPerMinute int
}

// NewApp assembles the fiber app and its routes.
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "projmatch",
		ErrorHandler: errorHandler,
		BodyLimit:    6 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	// ---------- CORS ----------
	origins := d.AllowOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: origins != "*",
	}))

	// ---------- Health / Metrics ----------
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if d.Registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(d.Registry)))
	}

	authMW := middleware.AuthMiddleware(d.Auth)

	var aiLimit fiber.Handler
	if d.AIRequestsPerMinute > 0 {
		aiLimit = limiter.New(limiter.Config{
			Max:        d.AIRequestsPerMinute,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				return utils.ResponseError(c, fiber.StatusTooManyRequests, "too many requests")
			},
		})
	}

	// ---------- Handlers ----------
	handlers.NewUserHandler(d.Users, d.Auth).SetupRoutes(app, authMW)
	handlers.NewUploadHandler(d.Users, d.Auth).SetupRoutes(app, authMW)
	handlers.NewGroupHandler(d.Assignment, d.Auth).SetupRoutes(app, authMW)
	handlers.NewProjectHandler(d.Projects, d.Assignment, d.Auth).SetupRoutes(app, authMW)
	handlers.NewMatchingHandler(d.Matching, d.Auth).SetupRoutes(app, authMW, aiLimit)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return utils.ResponseError(c, fe.Code, fe.Message)
	}
	return utils.ResponseFromError(c, err)
}

// StartServer wires the production dependencies and serves until ctx is
// cancelled.
func StartServer(ctx context.Context, cfg config.Config) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	// ---------- DB ----------
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DatabaseDSN,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return errors.Annotate(err, "database connection")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Trace(err)
	}
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	logger.Infof("database connected")

	if err := Migrate(ctx, db); err != nil {
		return err
	}

	// ---------- Infra ----------
	collector := metrics.NewCollector()
	registry := metrics.NewRegistry(collector)

	var producer interfaces.ProducerHandler
	if p := queue.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic, cfg.KafkaUsername, cfg.KafkaPassword); p != nil {
		defer p.Close()
		producer = p
	}

	var uploader interfaces.Uploader
	if cld, err := cloudinary.New(cfg.CloudinaryUrl); err != nil {
		logger.Warningf("avatar uploads disabled: %v", err)
	} else {
		uploader = cloudinary.NewCloudinaryUploader(cld)
	}

	completer := llm.New(llm.Config{
		APIKey:            cfg.AIAPIKey,
		BaseURL:           cfg.AIAPIBase,
		Model:             cfg.AIModel,
		Timeout:           cfg.AITimeout,
		RequestsPerMinute: cfg.AIRequestsPerMinute,
	})

	authHelper := helper.SetupAuth(cfg.AccessSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// ---------- Service ----------
	// one lock table for every service that touches supervisor quota
	locks := kmutex.New()
	projectSvc := services.NewProjectService(db)
	app := NewApp(Deps{
		Auth: authHelper,
		Users: services.NewUserService(db, authHelper, uploader, locks, services.UserServiceConfig{
			OrgDomain:    cfg.OrgEmailDomain,
			DefaultQuota: cfg.DefaultSupervisorQuota,
		}),
		Assignment:          services.NewAssignmentService(db, locks, producer, collector),
		Projects:            projectSvc,
		Matching:            services.NewMatchingService(db, completer, projectSvc, collector),
		Registry:            registry,
		AllowOrigins:        cfg.BaseURL,
		AIRequestsPerMinute: cfg.AIRequestsPerMinute,
	})

	// ---------- Listen ----------
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("listening on %s", cfg.ServerPort)
		return app.Listen(cfg.ServerPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	return g.Wait()
}
