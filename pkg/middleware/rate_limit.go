package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/quizbank/quizbank/pkg/metrics"
)

// RateLimitMiddleware returns a Gin middleware enforcing a token bucket per
// key (subject when authenticated, client IP otherwise). Buckets live in
// process and are not shared between replicas.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	var buckets sync.Map // key -> *rate.Limiter
	limiterFor := func(key string) *rate.Limiter {
		if v, ok := buckets.Load(key); ok {
			return v.(*rate.Limiter)
		}
		v, _ := buckets.LoadOrStore(key, rate.NewLimiter(rate.Limit(rps), burst))
		return v.(*rate.Limiter)
	}

	return func(c *gin.Context) {
		if !limiterFor(rateKey(c)).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
