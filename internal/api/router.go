package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"video-share-service/internal/api/handlers"
	"video-share-service/internal/api/middleware"
	"video-share-service/internal/auth"
	"video-share-service/internal/logger"
)

// Pinger reports database health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators of the HTTP surface. Nil Metrics or DB leave
// the corresponding endpoint out.
type Deps struct {
	Mode    string
	JWT     *auth.JWTService
	Videos  handlers.VideoAPI
	Shares  handlers.ShareAPI
	Sync    handlers.SyncAPI
	DB      Pinger
	Metrics http.Handler
	Log     logger.Logger
}

// NewRouter wires the user API under /api/v1 and the peer sync surface under
// /api/v1/sync.
func NewRouter(d Deps) http.Handler {
	if d.Mode != "" {
		gin.SetMode(d.Mode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.RequestLogger(d.Log))
	router.Use(middleware.CORS())

	router.GET("/health", func(c *gin.Context) {
		if d.DB != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.DB.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics))
	}

	// Peer organizations authenticate by network placement, not by user token.
	if d.Sync != nil {
		syncHandler := handlers.NewSyncHandler(d.Sync)
		peers := router.Group("/api/v1/sync")
		{
			peers.POST("/share-sync", syncHandler.ShareSync)
			peers.POST("/share-sync/revoke", syncHandler.Revoke)
			peers.POST("/video-sync", syncHandler.VideoSync)
			peers.POST("/upload-file", syncHandler.UploadFile)
		}
	}

	protected := router.Group("/api/v1")
	protected.Use(middleware.AuthMiddleware(d.JWT))
	{
		if d.Videos != nil {
			videosHandler := handlers.NewVideosHandler(d.Videos)
			protected.POST("/videos/upload", videosHandler.Upload)
			protected.GET("/videos/:id", videosHandler.Get)
			protected.GET("/videos/:id/url", videosHandler.URL)
		}
		if d.Shares != nil {
			sharesHandler := handlers.NewSharesHandler(d.Shares)
			protected.POST("/videos/:id/shares", sharesHandler.Create)
			protected.GET("/videos/:id/shares", sharesHandler.ListForVideo)
			protected.DELETE("/shares/:id", sharesHandler.Revoke)
			protected.GET("/shares/received", sharesHandler.Received)
		}
	}

	return router
}
