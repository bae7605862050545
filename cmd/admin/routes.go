package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mechanicbano/admin/internal/auth"
	"github.com/mechanicbano/admin/internal/config"
	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/internal/middleware"
	"github.com/mechanicbano/admin/pkg/models"
)

func setupRouter(api *API, authHandler *auth.Handler, authCfg config.AuthConfig, limiter *middleware.RateLimiter, logger *logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(auth.SessionMiddleware(authCfg))

	// Health check
	router.GET("/health", api.healthCheck)

	// Sign-in
	router.POST("/auth/login", authHandler.Login)
	router.POST("/auth/logout", authHandler.Logout)

	v1 := router.Group("/api/v1")
	v1.Use(auth.RequireAdmin(), middleware.RateLimit(limiter))
	{
		// Navigation
		v1.GET("/nav", api.navigation)
		v1.POST("/nav/refresh", api.refreshNavigation)

		// Videos
		videos := v1.Group("/videos", api.requirePage("videos"))
		videos.GET("", listHandler[models.Video](api, api.videos))
		videos.POST("/:id/menu", menuHandler(api, api.videos))
		videos.POST("", createHandler[models.Video](api, api.videos))
		videos.PUT("/:id", updateHandler[models.Video](api, api.videos))
		videos.DELETE("/:id", deleteHandler[models.Video](api, api.videos))

		// PDFs
		pdfs := v1.Group("/pdfs", api.requirePage("pdfs"))
		pdfs.GET("", listHandler[models.PDF](api, api.pdfs))
		pdfs.POST("/:id/menu", menuHandler(api, api.pdfs))
		pdfs.POST("", createHandler[models.PDF](api, api.pdfs))
		pdfs.POST("/upload", api.uploadPDF)
		pdfs.PUT("/:id", updateHandler[models.PDF](api, api.pdfs))
		pdfs.DELETE("/:id", deleteHandler[models.PDF](api, api.pdfs))

		// Subscription plans
		plans := v1.Group("/plans", api.requirePage("plans"))
		plans.GET("", listHandler[models.Plan](api, api.plans))
		plans.POST("/:id/menu", menuHandler(api, api.plans))
		plans.POST("", createHandler[models.Plan](api, api.plans))
		plans.PUT("/:id", updateHandler[models.Plan](api, api.plans))
		plans.DELETE("/:id", deleteHandler[models.Plan](api, api.plans))

		// Users
		users := v1.Group("/users", api.requirePage("users"))
		users.GET("", listHandler[models.User](api, api.users))
		users.POST("/:id/menu", menuHandler(api, api.users))
		users.POST("/:id/expire", actionHandler[models.User](api, api.users, "expire"))

		// Pending subscriptions
		pending := v1.Group("/pending", api.requirePage("pending"))
		pending.GET("", listHandler[models.PendingSubscription](api, api.pending))
		pending.POST("/:id/menu", menuHandler(api, api.pending))
		pending.POST("/:id/approve", actionHandler[models.PendingSubscription](api, api.pending, "approve"))
		pending.POST("/:id/reject", actionHandler[models.PendingSubscription](api, api.pending, "reject"))
		pending.DELETE("/:id", actionHandler[models.PendingSubscription](api, api.pending, "delete"))

		// UPI
		upi := v1.Group("/upi", api.requirePage("upi"))
		upi.GET("", getSettingHandler[models.UPIConfig](api, api.upi))
		upi.PUT("", saveSettingHandler[models.UPIConfig](api, api.upi))
		upi.POST("/qr", api.uploadQR)

		// Site name
		site := v1.Group("/sitename", api.requirePage("sitename"))
		site.GET("", getSettingHandler[models.SiteConfig](api, api.site))
		site.PUT("", saveSettingHandler[models.SiteConfig](api, api.site))
		site.POST("/logo", api.uploadLogo)

		// Welcome note
		welcome := v1.Group("/welcome", api.requirePage("welcome"))
		welcome.GET("", getSettingHandler[models.WelcomeNote](api, api.welcome))
		welcome.PUT("", saveSettingHandler[models.WelcomeNote](api, api.welcome))
		welcome.POST("/preview", api.previewWelcome)

		// Page control is always reachable
		pages := v1.Group("/pagecontrol")
		pages.GET("", listHandler[models.PageVisibility](api, api.pages))
		pages.POST("/:id/menu", menuHandler(api, api.pages))
		pages.POST("", createHandler[models.PageVisibility](api, api.pages))
		pages.PUT("/:id", updateHandler[models.PageVisibility](api, api.pages))
		pages.POST("/:id/toggle", api.togglePage)
		pages.DELETE("/:id", deleteHandler[models.PageVisibility](api, api.pages))

		// PDF viewers
		viewers := v1.Group("/viewers")
		viewers.POST("", api.openViewer)
		viewers.GET("/:id", api.getViewer)
		viewers.POST("/:id/page", api.viewerPage)
		viewers.POST("/:id/zoom", api.viewerZoom)
		viewers.POST("/:id/key", api.viewerKey)
		viewers.POST("/:id/focus", api.viewerFocus)
		viewers.POST("/:id/fullscreen", api.viewerFullscreen)
		viewers.GET("/:id/page.png", api.viewerImage)
		viewers.DELETE("/:id", api.closeViewer)

		// Audit trail
		v1.GET("/audit", api.listAudit)
	}

	return router
}
