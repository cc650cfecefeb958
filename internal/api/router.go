package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/voltwatch/backend/internal/api/controllers"
	_ "github.com/voltwatch/backend/internal/api/docs"
	"github.com/voltwatch/backend/internal/api/middleware"
	"github.com/voltwatch/backend/internal/config"
	"github.com/voltwatch/backend/internal/db"
	"github.com/voltwatch/backend/internal/services"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// Router manages the API routes and controllers
type Router struct {
	engine          *gin.Engine
	logger          *utils.Logger
	config          *config.Config
	authMiddleware  *middleware.AuthMiddleware
	serviceProvider *services.ServiceProvider
	db              *db.Database
	apiV1           *gin.RouterGroup
}

// NewRouter creates a new Router instance
func NewRouter(
	config *config.Config,
	logger *utils.Logger,
	db *db.Database,
	serviceProvider *services.ServiceProvider,
) *Router {
	// Set Gin mode based on environment
	if config.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Use the logger and recovery middleware
	engine.Use(gin.Recovery())
	engine.Use(middleware.LoggingMiddleware(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Authorization", "Content-Type", "Origin", controllers.DeviceKeyHeader, middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	engine.Use(cors.New(corsConfig))

	return &Router{
		engine:          engine,
		logger:          logger.Named("router"),
		config:          config,
		authMiddleware:  middleware.NewAuthMiddleware(&config.JWT),
		serviceProvider: serviceProvider,
		db:              db,
	}
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes() {
	r.engine.GET("/health", r.health)

	// API version group - all main API routes are under /api/v1
	r.apiV1 = r.engine.Group("/api/v1")

	sp := r.serviceProvider
	authController := controllers.NewAuthController(sp.GetUserService(), &r.config.JWT, r.logger)
	userController := controllers.NewUserController(sp.GetUserService(), r.logger)
	deviceController := controllers.NewDeviceController(sp.GetDeviceService(), r.logger)
	telemetryController := controllers.NewTelemetryController(
		sp.GetTelemetryService(),
		sp.GetTimeFrameService(),
		sp.GetDeviceService(),
		r.logger,
	)
	jobsController := controllers.NewJobsController(sp.GetScheduler(), r.logger)
	wsController := controllers.NewWebSocketController(sp.GetNotificationService(), r.logger)

	// Register auth routes (no auth required)
	authController.RegisterRoutes(r.engine.Group("/api"))

	// Device facing routes authenticate with the device key
	deviceRoutes := r.apiV1.Group("")
	deviceController.RegisterDeviceRoutes(deviceRoutes)
	telemetryController.RegisterDeviceRoutes(deviceRoutes)

	// Routes that require authentication
	authorizedRoutes := r.apiV1.Group("")
	authorizedRoutes.Use(r.authMiddleware.RequireAuth())

	userController.RegisterRoutes(authorizedRoutes)
	deviceController.RegisterRoutes(authorizedRoutes)
	telemetryController.RegisterRoutes(authorizedRoutes)
	wsController.RegisterRoutes(authorizedRoutes)

	// Admin-only routes
	adminRoutes := authorizedRoutes.Group("/admin")
	adminRoutes.Use(r.authMiddleware.RequireAdmin())
	telemetryController.RegisterAdminRoutes(adminRoutes)
	jobsController.RegisterRoutes(adminRoutes)

	// Add Swagger documentation if not in production
	if !r.config.Server.IsProduction() {
		r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.logger.Info("API routes setup completed")
}

func (r *Router) health(c *gin.Context) {
	status := gin.H{"status": "healthy", "database": "up"}
	code := http.StatusOK

	if r.db != nil {
		if err := r.db.Ping(c.Request.Context()); err != nil {
			r.logger.Warn("Health check failed", zap.Error(err))
			status["status"] = "degraded"
			status["database"] = "down"
			code = http.StatusServiceUnavailable
		}
	}

	if km := r.serviceProvider.GetKafkaManager(); km != nil {
		status["kafka"] = km.IsRunning()
	}

	c.JSON(code, status)
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
