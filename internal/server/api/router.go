package api

import (
	"strconv"

	"codepad/internal/metrics"
	"codepad/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, socket *WorkspaceSocket, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders: []string{"ETag", "Content-Disposition"},
	}))
	e.Use(RequestLogger())
	e.Use(Metrics())
	e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.MaxBodyBytes, 10)))

	// Rate limiter on write endpoints only
	writeLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware()

	// Health, stats & metrics
	e.GET("/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	e.GET("/api/templates", handler.HandleTemplates)

	// Projects
	projects := e.Group("/api/projects")
	projects.GET("", handler.HandleListProjects)
	projects.POST("", handler.HandleCreateProject, writeLimiter)
	projects.GET("/:id", handler.HandleGetProject)
	projects.PATCH("/:id", handler.HandleUpdateProject, writeLimiter)
	projects.DELETE("/:id", handler.HandleDeleteProject, writeLimiter)

	// Files
	projects.GET("/:id/files", handler.HandleGetFiles)
	projects.PUT("/:id/files", handler.HandlePutFiles, writeLimiter)
	projects.GET("/:id/preview", handler.HandlePreview)
	projects.GET("/:id/assets/*", handler.HandleAsset)
	projects.GET("/:id/download", handler.HandleDownload)

	// Workspace
	projects.GET("/:id/workspace", handler.HandleGetWorkspace)
	projects.POST("/:id/workspace/intents", handler.HandleIntent, writeLimiter)
	projects.GET("/:id/workspace/ws", socket.Handle)

	return e
}
