package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort                = "8080"
	DefaultStoreURL            = "memory://"
	DefaultIdleThreshold       = 30 * time.Minute
	DefaultStoreTimeout        = 5 * time.Second
	DefaultMaxMessageSize      = 512 * 1024 // 512 KB
	DefaultSendBufferSize      = 256
	DefaultMessagesPerSecond   = 60
	DefaultMessageBurst        = 120
	DefaultConnectRate         = "60-M"
	DefaultShutdownGracePeriod = 10 * time.Second
)

// loads configuration from environment variables
func LoadEnvironmentVariables() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // not an error - production environments may not have .env file
	}

	cfg := &Config{
		Port:        getString("PORT", DefaultPort),
		Environment: getString("ENVIRONMENT", "development"),
		StoreURL:    getString("ROOM_STORE_URL", DefaultStoreURL),
		ConnectRate: getString("WS_CONNECT_RATE", DefaultConnectRate),
		JWTSecret:   os.Getenv("JWT_SECRET"),
	}

	var err error

	if cfg.IdleThreshold, err = getDuration("ROOM_IDLE_THRESHOLD", DefaultIdleThreshold); err != nil {
		return nil, err
	}

	if cfg.StoreTimeout, err = getDuration("ROOM_STORE_TIMEOUT", DefaultStoreTimeout); err != nil {
		return nil, err
	}

	if cfg.ShutdownGracePeriod, err = getDuration("SHUTDOWN_GRACE_PERIOD", DefaultShutdownGracePeriod); err != nil {
		return nil, err
	}

	maxSize, err := getInt("WS_MAX_MESSAGE_SIZE", DefaultMaxMessageSize)
	if err != nil {
		return nil, err
	}
	cfg.MaxMessageSize = int64(maxSize)

	if cfg.SendBufferSize, err = getInt("WS_SEND_BUFFER", DefaultSendBufferSize); err != nil {
		return nil, err
	}

	if cfg.MessageBurst, err = getInt("WS_MESSAGE_BURST", DefaultMessageBurst); err != nil {
		return nil, err
	}

	if cfg.MessagesPerSecond, err = getFloat("WS_MESSAGES_PER_SECOND", DefaultMessagesPerSecond); err != nil {
		return nil, err
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// checks that the loaded values are usable
func (c *Config) Validate() error {
	if c.IdleThreshold <= 0 {
		return fmt.Errorf("ROOM_IDLE_THRESHOLD must be positive, got %s", c.IdleThreshold)
	}

	if c.StoreTimeout <= 0 {
		return fmt.Errorf("ROOM_STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}

	if c.SendBufferSize < 4 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 4, got %d", c.SendBufferSize)
	}

	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be positive, got %d", c.MaxMessageSize)
	}

	if c.MessagesPerSecond < 0 || c.MessageBurst < 0 {
		return fmt.Errorf("WS_MESSAGES_PER_SECOND and WS_MESSAGE_BURST must not be negative")
	}

	if c.Environment == "production" && len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS environment variable is required in production")
	}

	return nil
}

// reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}

	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return f, nil
}
