// Package router assembles the HTTP surface.
package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/controller"
	"github.com/makehub/llm-gateway/middleware"
)

// SetRouter registers every route on the server.
func SetRouter(server *gin.Engine) {
	server.Use(middleware.RequestId())
	server.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type", "X-API-Key"},
	}))

	// Operational surface, unauthenticated.
	server.GET("/health", controller.Health)
	server.GET("/stats", controller.Stats)
	server.GET("/version", controller.Version)
	if config.EnablePrometheusMetrics {
		server.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := server.Group("/v1")
	v1.Use(middleware.RelayPanicRecover(), middleware.TrackRequest(), middleware.Auth())
	{
		chat := v1.Group("/chat")
		// Streaming completions must bypass gzip: compressed SSE defeats
		// incremental delivery.
		chat.POST("/completions", controller.CountRequest, controller.RelayChatCompletions)

		compressed := chat.Group("", gzip.Gzip(gzip.DefaultCompression))
		compressed.GET("/models", controller.ListModels)
		compressed.POST("/estimate", controller.EstimateCost)
		compressed.GET("/health", controller.RelayHealth)
	}

	server.NoRoute(controller.RelayNotFound)
}
