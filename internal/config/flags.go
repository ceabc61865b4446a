package config

import (
	"flag"
	"os"
	"time"
)

// parses CLI flags for the roomwatch client
func ParseWatchFlags() WatchFlags {
	fs := flag.NewFlagSet("roomwatch", flag.ExitOnError)
	endpoint := fs.String("endpoint", defaultEndpoint(), "websocket endpoint of the collab server")
	documentID := fs.String("doc", "", "document ID to join")
	userID := fs.String("user", os.Getenv("USER"), "user ID to join as")
	displayName := fs.String("name", "", "display name shown to other participants")
	token := fs.String("token", os.Getenv("COLLAB_TOKEN"), "optional JWT issued by tokengen")
	fs.Parse(os.Args[1:]) //nolint:errcheck,gosec // G104: ExitOnError flag set handles errors

	return WatchFlags{
		Endpoint:    *endpoint,
		DocumentID:  *documentID,
		UserID:      *userID,
		DisplayName: *displayName,
		Token:       *token,
	}
}

// parses CLI flags for the tokengen tool
func ParseTokenFlags() TokenFlags {
	fs := flag.NewFlagSet("tokengen", flag.ExitOnError)
	userID := fs.String("user", "", "user ID to embed in the token")
	displayName := fs.String("name", "", "display name to embed in the token")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	fs.Parse(os.Args[1:]) //nolint:errcheck,gosec // G104: ExitOnError flag set handles errors

	return TokenFlags{UserID: *userID, DisplayName: *displayName, TTL: *ttl}
}

func defaultEndpoint() string {
	if endpoint := os.Getenv("COLLAB_WS_ENDPOINT"); endpoint != "" {
		return endpoint
	}

	return "ws://localhost:8080/api/v1/ws"
}
