// Command issue-token mints a bearer token for a tool-host client.
//
//	issue-token --client discord-bot [--expiry 720h]
package main

import (
	"fmt"
	"os"
	"time"

	"social-custody-gateway/config"
	"social-custody-gateway/internal/service"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	clientID := pflag.StringP("client", "c", "", "client id embedded in the token subject")
	expiry := pflag.Duration("expiry", 0, "token lifetime (defaults to jwt.expiry)")
	configPath := pflag.String("config", os.Getenv("SCG_CONFIG"), "config file path")
	pflag.Parse()

	if err := run(*configPath, *clientID, *expiry); err != nil {
		fmt.Fprintf(os.Stderr, "issue-token: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, clientID string, expiry time.Duration) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if expiry <= 0 {
		expiry = cfg.JWT.Expiry
	}

	token, expiresAt, err := service.NewJWTTokenService(cfg.JWT.Secret, expiry, cfg.JWT.Issuer).Generate(clientID)
	if err != nil {
		return err
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "client %s, expires %s\n", clientID, expiresAt.UTC().Format(time.RFC3339))
	return nil
}
