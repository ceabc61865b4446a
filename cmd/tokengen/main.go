package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"codeberg.org/algopatterns/collab/internal/auth"
	"codeberg.org/algopatterns/collab/internal/config"
)

// issues a signed handshake token for local testing
func main() {
	if err := godotenv.Load(); err != nil {
		_ = err // .env is optional
	}

	flags := config.ParseTokenFlags()

	if flags.UserID == "" {
		fmt.Fprintln(os.Stderr, "usage: tokengen -user <id> [-name display] [-ttl 24h]")
		os.Exit(2)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, auth.ErrMissingSecret)
		os.Exit(1)
	}

	token, err := auth.GenerateJWT(secret, flags.UserID, flags.DisplayName, flags.TTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
