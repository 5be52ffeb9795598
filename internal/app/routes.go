package app

import (
	"context"
	"net/http"

	"github.com/garyellow/line-carousel-composer/internal/assets"
	"github.com/garyellow/line-carousel-composer/internal/config"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// assetsPath is where the local asset backend is served from.
const assetsPath = "/assets"

// routes builds the gin engine and wraps it with response compression.
func (a *Application) routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.GET("/metrics",
		basicAuthMiddleware("metrics", a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	if local, ok := a.publisher.Backend().(*assets.LocalBackend); ok {
		router.Static(assetsPath, local.Dir())
	}

	api := router.Group("/api/v1")
	api.POST("/sessions", a.createSession)
	api.GET("/resources/:handle", a.serveResource)
	api.POST("/audience/estimate", a.estimateAudience)
	api.GET("/audience/tags", a.searchTags)
	api.POST("/audience/members",
		basicAuthMiddleware("admin", a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		a.importMembers)

	s := api.Group("/sessions/:id", sessionContextMiddleware(), a.loadSession())
	s.GET("", a.getSession)
	s.DELETE("", a.closeSession)
	s.POST("/cards", a.addCard)
	s.POST("/cards/copy", a.copyCard)
	s.DELETE("/cards/:cardID", a.deleteCard)
	s.PUT("/active", a.setActive)
	s.PATCH("/cards/active", a.updateCard)
	s.POST("/cards/active/buttons", a.addButton)
	s.DELETE("/cards/active/buttons/:index", a.removeButton)
	s.PATCH("/cards/active/buttons/:index", a.updateButton)
	s.PUT("/cards/:cardID/image", a.uploadImage)
	s.DELETE("/cards/:cardID/image", a.clearImage)
	s.PUT("/cards/:cardID/buttons/:index/trigger-image", a.uploadTriggerImage)
	s.GET("/flex", a.getFlex)
	s.POST("/validate", a.validate)
	s.POST("/publish", a.publish)

	return gzhttp.GzipHandler(router)
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"backend":  a.publisher.Backend().Name(),
		"sessions": a.sessions.Len(),
		"features": gin.H{
			"line_quota": a.cfg.LineChannelToken != "",
		},
	})
}
