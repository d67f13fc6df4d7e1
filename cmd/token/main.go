// Command token mints API bearer tokens signed with auth.jwt_secret, and encrypts
// secrets for the config file.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Rrens/text-to-dashboard/internal/config"
	"github.com/Rrens/text-to-dashboard/internal/security"
	"github.com/joho/godotenv"
)

func main() {
	subject := flag.String("sub", "", "token subject (required unless -encrypt or -genkey is used)")
	email := flag.String("email", "", "optional email claim")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	encrypt := flag.String("encrypt", "", "encrypt this value with security.secrets_key and print it")
	genKey := flag.Bool("genkey", false, "print a new base64 secrets key")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	if *genKey {
		key, err := security.GenerateKey()
		exitOn(err, "failed to generate key")
		fmt.Println(base64.StdEncoding.EncodeToString(key))
		return
	}

	cfg, err := config.Load()
	exitOn(err, "failed to load config")

	if *encrypt != "" {
		encryptor, err := security.NewEncryptorFromBase64(cfg.Security.SecretsKey)
		exitOn(err, "failed to create encryptor")
		secret, err := encryptor.EncryptSecret(*encrypt)
		exitOn(err, "failed to encrypt")
		fmt.Println(secret)
		return
	}

	if cfg.Auth.JWTSecret == "" {
		exitOn(fmt.Errorf("auth.jwt_secret is empty"), "cannot sign tokens")
	}
	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}

	token, err := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, *ttl).GenerateAccessToken(*subject, *email)
	exitOn(err, "failed to sign token")
	fmt.Println(token)
}

func exitOn(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}
