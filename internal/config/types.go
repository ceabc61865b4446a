package config

import "time"

type Config struct {
	Port        string
	Environment string

	// DSN selecting the replay store backend (memory://, redis://, postgres://, sqlite://)
	StoreURL string

	// how long a room stays idle with no sessions before its state is purged
	IdleThreshold time.Duration

	// per-write timeout for replay store operations
	StoreTimeout time.Duration

	MaxMessageSize      int64
	SendBufferSize      int
	// zero disables inbound frame limiting
	MessagesPerSecond   float64
	MessageBurst        int
	ConnectRate         string
	JWTSecret           string
	AllowedOrigins      []string
	ShutdownGracePeriod time.Duration
}

type WatchFlags struct {
	Endpoint    string
	DocumentID  string
	UserID      string
	DisplayName string
	Token       string
}

type TokenFlags struct {
	UserID      string
	DisplayName string
	TTL         time.Duration
}
