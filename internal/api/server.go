// Package api serves the resolution service over HTTP as JSON.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pders01/feedscout/internal/debuglog"
)

// NewServer creates the router. When apiKey is empty the /api group is
// open; otherwise it requires the key in X-API-Key or a bearer token.
func NewServer(handler *Handler, apiKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger(debuglog.Component("api")))
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiKey)
	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiKey string) {
	r.GET("/health", handler.Health)

	api := r.Group("/api")
	if apiKey != "" {
		api.Use(authMiddleware(apiKey))
	}
	{
		api.POST("/validate", handler.Validate)
		api.POST("/discover", handler.Discover)

		api.POST("/duplicates/check", handler.CheckDuplicate)
		api.POST("/duplicates/groups", handler.DuplicateGroups)
		api.POST("/duplicates/remove", handler.RemoveDuplicates)

		api.GET("/stats/cache", handler.CacheStats)
		api.DELETE("/cache", handler.ClearCache)
		api.GET("/stats/relays", handler.RelayStats)
		api.GET("/stats/relays/:name", handler.RelayStatsByName)
		api.POST("/stats/reset", handler.ResetStats)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "feedscout",
			"version":     handler.version,
			"description": "Feed validation, discovery and duplicate detection",
			"auth": gin.H{
				"required": apiKey != "",
				"header":   "X-API-Key",
			},
		})
	})
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
			"client":   c.ClientIP(),
		}).Info("Request handled")
	}
}

func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			return
		}
		if providedKey != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			return
		}

		c.Next()
	}
}
