package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	_ "github.com/noah-isme/smart-classroom-api/api/swagger"
	"github.com/noah-isme/smart-classroom-api/internal/handler"
	"github.com/noah-isme/smart-classroom-api/internal/repository"
	"github.com/noah-isme/smart-classroom-api/internal/service"
	"github.com/noah-isme/smart-classroom-api/migrations"
	"github.com/noah-isme/smart-classroom-api/pkg/cache"
	"github.com/noah-isme/smart-classroom-api/pkg/config"
	"github.com/noah-isme/smart-classroom-api/pkg/database"
	"github.com/noah-isme/smart-classroom-api/pkg/llm"
	"github.com/noah-isme/smart-classroom-api/pkg/logger"
	"github.com/noah-isme/smart-classroom-api/pkg/mailer"
	"github.com/noah-isme/smart-classroom-api/pkg/middleware/cors"
	"github.com/noah-isme/smart-classroom-api/pkg/qrcode"
	"github.com/noah-isme/smart-classroom-api/pkg/realtime"
	"github.com/noah-isme/smart-classroom-api/pkg/storage"
)

// @title Smart Classroom API
// @version 1.0.0
// @description Classes, QR attendance, assignments, forum, realtime updates and an AI study assistant.
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, migrations.FS, logr); err != nil {
			return err
		}
	}

	mongoClient, mongoDB, err := database.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	app, err := build(ctx, cfg, logr, db, mongoDB, cacheRepo)
	if err != nil {
		return err
	}
	app.notifications.Start(ctx)
	defer app.notifications.Stop()

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"mongo": func(ctx context.Context) error {
			return mongoClient.Ping(ctx, readpref.Primary())
		},
	}
	if redisClient != nil {
		checks["redis"] = redisPing(redisClient)
	}

	router := newRouter(cfg, logr, app, checks)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	app.hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func redisPing(client *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// application holds every wired service and handler.
type application struct {
	metrics       *service.MetricsService
	notifications *service.NotificationService
	hub           *realtime.Hub
	auth          *service.AuthService
	audit         *repository.UserRepository
	signer        *storage.SignedURLSigner
	files         *storage.LocalStorage

	authHandler       *handler.AuthHandler
	userHandler       *handler.UserHandler
	invitationHandler *handler.InvitationHandler
	classHandler      *handler.ClassHandler
	attendanceHandler *handler.AttendanceHandler
	assignmentHandler *handler.AssignmentHandler
	forumHandler      *handler.ForumHandler
	chatHandler       *handler.ChatHandler
	parentHandler     *handler.ParentHandler
	dashboardHandler  *handler.DashboardHandler
}

func build(ctx context.Context, cfg *config.Config, logr *zap.Logger, db *sqlx.DB, mongoDB *mongo.Database, cacheRepo service.CacheRepository) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	classRepo := repository.NewClassRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	forumRepo := repository.NewForumRepository(db)
	parentRepo := repository.NewParentRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	chatRepo := repository.NewChatRepository(mongoDB)
	if err := chatRepo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure chat indexes: %w", err)
	}

	files, err := storage.NewLocalStorage(cfg.Storage.UploadDir)
	if err != nil {
		return nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	notifications := service.NewNotificationService(mailer.New(cfg.Mail, logr), cfg.Mail, logr)

	invitationSvc := service.NewInvitationService(invitationRepo, userRepo, notifications, validate, logr)
	authSvc := service.NewAuthService(userRepo, invitationSvc, notifications, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenExpiry:   cfg.JWT.ResetExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, userRepo, userRepo, cacheSvc, validate, logr)

	hub := realtime.NewHub(classSvc, logr)
	metrics.TrackConnections(hub.Connections)

	attendanceSvc := service.NewAttendanceService(
		attendanceRepo, classSvc, parentRepo, cacheSvc, hub, metrics,
		qrcode.NewEncoder(cfg.Attendance.QRSize), validate, logr,
		service.AttendanceTokenConfig{Secret: cfg.Attendance.TokenSecret, Issuer: cfg.JWT.Issuer, TTL: cfg.Attendance.TokenTTL},
	)
	assignmentSvc := service.NewAssignmentService(
		assignmentRepo, classSvc, files, signer, userRepo, cacheSvc, hub, validate, logr,
		service.AssignmentConfig{MaxFileSize: cfg.Storage.MaxFileSizeBytes, DownloadPath: cfg.APIPrefix + "/files"},
	)
	forumSvc := service.NewForumService(forumRepo, classSvc, hub, validate, logr)
	chatSvc := service.NewChatService(chatRepo, llm.NewGeminiClient(cfg.LLM, nil), metrics, validate, logr, service.ChatConfig{
		SystemPrompt:  cfg.LLM.SystemPrompt,
		HistoryWindow: cfg.LLM.HistoryWindow,
	})
	parentSvc := service.NewParentService(parentRepo, userRepo, classRepo, attendanceSvc, assignmentSvc, cacheSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardDeps{
		Repo:        analyticsRepo,
		Users:       userRepo,
		Invitations: invitationRepo,
		Classes:     classRepo,
		Attendance:  attendanceSvc,
		Assignments: assignmentSvc,
		Children:    parentRepo,
	}, cacheSvc, metrics, logr)

	return &application{
		metrics:       metrics,
		notifications: notifications,
		hub:           hub,
		auth:          authSvc,
		audit:         userRepo,
		signer:        signer,
		files:         files,

		authHandler:       handler.NewAuthHandler(authSvc),
		userHandler:       handler.NewUserHandler(userSvc),
		invitationHandler: handler.NewInvitationHandler(invitationSvc),
		classHandler:      handler.NewClassHandler(classSvc),
		attendanceHandler: handler.NewAttendanceHandler(attendanceSvc),
		assignmentHandler: handler.NewAssignmentHandler(assignmentSvc),
		forumHandler:      handler.NewForumHandler(forumSvc),
		chatHandler:       handler.NewChatHandler(chatSvc),
		parentHandler:     handler.NewParentHandler(parentSvc),
		dashboardHandler:  handler.NewDashboardHandler(dashboardSvc),
	}, nil
}

func newOriginPolicy(cfg *config.Config) *cors.Policy {
	origins := cfg.Realtime.AllowedOrigins
	if len(origins) == 0 {
		origins = cfg.CORS.AllowedOrigins
	}
	return cors.NewPolicy(origins)
}
