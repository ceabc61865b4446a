package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"codeberg.org/algopatterns/collab/internal/auth"
	"codeberg.org/algopatterns/collab/internal/buffer"
	"codeberg.org/algopatterns/collab/internal/config"
	"codeberg.org/algopatterns/collab/internal/logger"
	"codeberg.org/algopatterns/collab/internal/metrics"
	ws "codeberg.org/algopatterns/collab/internal/websocket"
)

const connectLimiterPrefix = "collab:connect"

// creates and configures a new server instance with all dependencies
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	store, err := buffer.OpenStore(ctx, cfg.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay store: %w", err)
	}

	connectLimiter, err := newConnectLimiter(cfg.ConnectRate, store)
	if err != nil {
		store.Close() //nolint:errcheck,gosec // best-effort cleanup on init failure
		return nil, err
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	hub := ws.NewHub(ws.Options{
		Store:             store,
		Metrics:           m,
		IdleThreshold:     cfg.IdleThreshold,
		StoreTimeout:      cfg.StoreTimeout,
		MaxMessageSize:    cfg.MaxMessageSize,
		SendBufferSize:    cfg.SendBufferSize,
		MessagesPerSecond: cfg.MessagesPerSecond,
		MessageBurst:      cfg.MessageBurst,
	})

	resolver := auth.NewResolver(cfg.JWTSecret)
	if !resolver.Enabled() {
		logger.Warn("JWT_SECRET not set, identities are taken from the handshake as given")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:         cfg,
		store:          store,
		metrics:        m,
		resolver:       resolver,
		hub:            hub,
		router:         gin.Default(),
		connectLimiter: connectLimiter,
	}

	RegisterRoutes(server.router, server)

	return server, nil
}

// builds the handshake limiter, sharing counters through redis when the
// replay store already runs there
func newConnectLimiter(formatted string, store buffer.Store) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_CONNECT_RATE %q: %w", formatted, err)
	}

	if rs, ok := store.(*buffer.RedisStore); ok {
		limiterStore, err := sredis.NewStoreWithOptions(rs.Client(), limiter.StoreOptions{
			Prefix:   connectLimiterPrefix,
			MaxRetry: 3,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
		}

		return limiter.New(limiterStore, rate), nil
	}

	return limiter.New(memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          connectLimiterPrefix,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	}), rate), nil
}
