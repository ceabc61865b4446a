package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"

	"codeberg.org/algopatterns/collab/internal/errors"
	"codeberg.org/algopatterns/collab/internal/logger"
	"codeberg.org/algopatterns/collab/internal/metrics"
)

// allows the configured origins, or any origin when none are configured
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}

	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}

	return cors.New(cfg)
}

// rejects websocket handshakes from a client IP beyond the configured rate
func ConnectRateLimit(l *limiter.Limiter, m *metrics.Metrics) gin.HandlerFunc {
	return mgin.NewMiddleware(l,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			m.ConnectRejected("rate_limited")
			logger.Warn("websocket handshake rate limited", "ip", c.ClientIP())
			errors.TooManyRequests(c, "too many connection attempts, slow down")
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			logger.ErrorErr(err, "connect rate limiter failed", "ip", c.ClientIP())
			errors.Unavailable(c, "rate limiter unavailable")
		}),
	)
}
