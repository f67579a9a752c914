package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/config"
)

// token signs an access token for a user id with the configured secret.
// Used to bootstrap the first admin and for local testing.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Token error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := os.Args[1:]
	if len(args) < 1 {
		return fmt.Errorf("usage: token <user-id> [username]")
	}

	userID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || userID == 0 {
		return fmt.Errorf("invalid user id %q", args[0])
	}
	username := ""
	if len(args) > 1 {
		username = args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	token, err := auth.NewJWTValidator(&cfg.Auth).IssueToken(uint(userID), username)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
