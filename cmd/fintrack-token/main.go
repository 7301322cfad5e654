// Command fintrack-token issues a bearer token for local development.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/session"
)

func main() {
	userID := flag.String("user", "", "user id to embed in the token (required)")
	email := flag.String("email", "", "email claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	if *userID == "" {
		log.Fatal("-user is required")
	}
	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 16 {
		log.Fatal("JWT_SECRET must be set and at least 16 characters")
	}

	token, err := session.NewManager(secret, *ttl).Issue(*userID, *email)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}
