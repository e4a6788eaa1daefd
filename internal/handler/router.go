package handler

import (
	"net/http"

	"workflowbridge/internal/metrics"
	"workflowbridge/internal/middleware"
	"workflowbridge/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins []string
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Verifier       middleware.TokenVerifier
	// Hub is optional; /ws is only mounted when set.
	Hub *websocket.Hub
}

type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Departments   *DepartmentHandler
	Templates     *TemplateHandler
	Requests      *RequestHandler
	Notifications *NotificationHandler
	Dashboard     *DashboardHandler
	Audit         *AuditHandler
}

// NewRouter builds the gin engine. Everything under /api except login and
// logout requires a valid token.
func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(cfg.Logger), middleware.RequestLogger(cfg.Logger), cfg.Metrics.Middleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", cfg.Metrics.Handler())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	if cfg.Hub != nil {
		router.GET("/ws", func(c *gin.Context) {
			websocket.ServeWs(cfg.Hub, cfg.Verifier, c)
		})
	}

	public := router.Group("/api")
	protected := router.Group("/api", middleware.Authenticate(cfg.Verifier))

	h.Auth.RegisterRoutes(public, protected)
	h.Users.RegisterRoutes(protected)
	h.Departments.RegisterRoutes(protected)
	h.Templates.RegisterRoutes(protected)
	h.Requests.RegisterRoutes(protected)
	h.Notifications.RegisterRoutes(protected)
	h.Dashboard.RegisterRoutes(protected)
	h.Audit.RegisterRoutes(protected)

	return router
}
