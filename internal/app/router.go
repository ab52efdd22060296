package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quizbank/quizbank/handlers"
	"github.com/quizbank/quizbank/internal/question/handler"
	"github.com/quizbank/quizbank/pkg/middleware"
)

// NewRouter mounts every HTTP route on a fresh gin engine.
func NewRouter(a *App) *gin.Engine {
	r := gin.New()

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, X-Ingestion-Run")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		ready, deps := a.Ready(c.Request.Context())
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": a.Uptime().String()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	// auth runs before the limiter so authenticated callers are keyed by subject
	var guard []gin.HandlerFunc
	if a.Verifier != nil {
		guard = append(guard, middleware.AuthMiddleware(a.Verifier))
	}
	if rl := a.Cfg.RateLimit; rl.Enabled {
		if rl.UseRedis && a.Redis != nil {
			guard = append(guard, middleware.RedisRateLimitMiddleware(a.Redis, rl.RPS, rl.Burst, secondsOr1(rl.WindowSeconds)))
		} else {
			guard = append(guard, middleware.RateLimitMiddleware(rl.RPS, rl.Burst))
		}
	}

	var links handler.Presigner
	if a.Archive != nil {
		links = a.Archive
	}
	handler.RegisterQuestionRoutes(r, a.Service, links, guard...)
	return r
}
