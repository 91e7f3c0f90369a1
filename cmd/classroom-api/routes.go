package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-classroom-api/internal/handler"
	"github.com/noah-isme/smart-classroom-api/internal/middleware"
	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/pkg/config"
	"github.com/noah-isme/smart-classroom-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/smart-classroom-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/smart-classroom-api/pkg/middleware/requestid"
	"github.com/noah-isme/smart-classroom-api/pkg/realtime"
)

func newRouter(cfg *config.Config, logr *zap.Logger, app *application, checks map[string]handler.ReadinessCheck) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(app.metrics, "/metrics", "/health", "/ready"))

	metricsHandler := handler.NewMetricsHandler(app.metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	registerRoutes(api, cfg, logr, app)
	return r
}

func registerRoutes(api *gin.RouterGroup, cfg *config.Config, logr *zap.Logger, app *application) {
	jwt := middleware.JWT(app.auth)
	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	student := middleware.RequireRoles(models.RoleStudent)
	ids := middleware.UUIDParams("id", "classId", "studentId")

	auth := api.Group("/auth")
	auth.POST("/register", app.authHandler.Register)
	auth.POST("/login", app.authHandler.Login)
	auth.POST("/refresh", app.authHandler.Refresh)
	auth.POST("/forgot-password", app.authHandler.ForgotPassword)
	auth.POST("/reset-password", app.authHandler.ResetPassword)
	auth.POST("/logout", jwt, app.authHandler.Logout)
	auth.POST("/change-password", jwt, app.authHandler.ChangePassword)
	auth.GET("/me", jwt, app.authHandler.Me)

	fileHandler := handler.NewFileHandler(app.signer, app.files)
	api.GET("/files", fileHandler.Download)

	realtimeHandler := handler.NewRealtimeHandler(app.hub, app.auth, newOriginPolicy(cfg), realtime.Options{
		WriteTimeout: cfg.Realtime.WriteTimeout,
		PingInterval: cfg.Realtime.PingInterval,
		SendBuffer:   cfg.Realtime.SendBuffer,
	}, logr)
	api.GET("/ws", realtimeHandler.Connect)

	secured := api.Group("")
	secured.Use(jwt)

	users := secured.Group("/users", ids)
	users.GET("", admin, app.userHandler.List)
	users.POST("", admin, app.userHandler.Create)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.Self), app.userHandler.Get)
	users.PUT("/:id", admin, app.userHandler.Update)
	users.DELETE("/:id", admin, app.userHandler.Delete)

	invitations := secured.Group("/invitations", admin, ids)
	invitations.POST("", app.invitationHandler.Create)
	invitations.GET("", app.invitationHandler.List)
	invitations.DELETE("/:id", app.invitationHandler.Revoke)

	classes := secured.Group("/classes", ids)
	classes.GET("", app.classHandler.List)
	classes.POST("", staff, app.classHandler.Create)
	classes.POST("/join", student, app.classHandler.Join)
	classes.GET("/:id", app.classHandler.Get)
	classes.PUT("/:id", staff, app.classHandler.Update)
	classes.DELETE("/:id", staff, app.classHandler.Delete)
	classes.GET("/:id/students", app.classHandler.ListStudents)
	classes.POST("/:id/students", staff, app.classHandler.AddStudents)
	classes.DELETE("/:id/students/:studentId", staff, app.classHandler.RemoveStudent)
	classes.POST("/:id/join-code", staff, app.classHandler.RegenerateJoinCode)

	attendance := secured.Group("/attendance", ids)
	attendance.POST("/token", staff, app.attendanceHandler.IssueToken)
	attendance.GET("/sessions/:id/qr.png", staff, app.attendanceHandler.SessionQR)
	attendance.POST("/check-in", student, app.attendanceHandler.CheckIn)
	attendance.POST("/mark", staff, app.attendanceHandler.Mark)
	attendance.GET("/classes/:classId", staff, app.attendanceHandler.ClassRecords)
	attendance.GET("/classes/:classId/export", staff,
		middleware.Audit(app.audit, logr, models.AuditActionAttendanceExport, "attendance", "classId"),
		app.attendanceHandler.Export)
	attendance.GET("/students/:studentId", app.attendanceHandler.StudentHistory)
	attendance.GET("/me", student, app.attendanceHandler.MyHistory)

	assignments := secured.Group("/assignments", ids, middleware.UUIDQuery("class_id"))
	assignments.GET("", app.assignmentHandler.List)
	assignments.POST("", staff, app.assignmentHandler.Create)
	assignments.GET("/:id", app.assignmentHandler.Get)
	assignments.PUT("/:id", staff, app.assignmentHandler.Update)
	assignments.DELETE("/:id", staff, app.assignmentHandler.Delete)
	assignments.POST("/:id/submissions", student, app.assignmentHandler.Submit)
	assignments.GET("/:id/submissions", staff, app.assignmentHandler.ListSubmissions)

	submissions := secured.Group("/submissions", ids)
	submissions.GET("/me", student, app.assignmentHandler.MySubmissions)
	submissions.POST("/:id/grade", staff, app.assignmentHandler.Grade)
	submissions.GET("/:id/download", app.assignmentHandler.DownloadURL)

	forum := secured.Group("/forum", ids, middleware.UUIDQuery("class_id", "author_id"))
	forum.GET("/posts", app.forumHandler.ListPosts)
	forum.POST("/posts", app.forumHandler.CreatePost)
	forum.GET("/posts/:id", app.forumHandler.GetPost)
	forum.PUT("/posts/:id", app.forumHandler.UpdatePost)
	forum.DELETE("/posts/:id", app.forumHandler.DeletePost)
	forum.POST("/posts/:id/comments", app.forumHandler.AddComment)
	forum.DELETE("/comments/:id", app.forumHandler.DeleteComment)

	chat := secured.Group("/chat")
	chat.POST("", app.chatHandler.Send)
	chat.GET("/sessions", app.chatHandler.ListSessions)
	chat.GET("/sessions/:id", app.chatHandler.GetSession)
	chat.DELETE("/sessions/:id", app.chatHandler.DeleteSession)

	parents := secured.Group("/parents", middleware.RequireRoles(models.RoleParent, models.RoleAdmin), ids, middleware.UUIDQuery("parent_id"))
	parents.POST("/children", app.parentHandler.LinkChild)
	parents.GET("/children", app.parentHandler.ListChildren)
	parents.DELETE("/children/:studentId", app.parentHandler.UnlinkChild)
	parents.GET("/children/:studentId/overview", app.parentHandler.ChildOverview)

	secured.GET("/dashboard", app.dashboardHandler.Get)
	secured.GET("/admin/metrics", admin, app.dashboardHandler.SystemMetrics)
}
