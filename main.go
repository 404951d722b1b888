package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"platebook/pkg/analyzer"
	"platebook/pkg/googleauth"
	"platebook/pkg/token"
)

// Process-wide collaborators, constructed once in main from the environment.
var (
	issuer         *token.Issuer
	googleVerifier idTokenVerifier
	recipeAnalyzer *analyzer.Client
)

func main() {
	// Auto-load ./.env if present (no external dependency) before reading vars
	loadDotEnv()

	cfg := token.Config{
		AccessSecret:  []byte(os.Getenv("ACCESS_TOKEN_SECRET")),
		RefreshSecret: []byte(os.Getenv("REFRESH_TOKEN_SECRET")),
		AccessTTL:     envDuration("ACCESS_TOKEN_TTL"),
		RefreshTTL:    envDuration("REFRESH_TOKEN_TTL"),
	}
	var err error
	issuer, err = token.NewIssuer(cfg)
	if err != nil {
		log.Fatal("token issuer: ", err)
	}

	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	if clientID != "" {
		googleVerifier, err = googleauth.New(context.Background(), clientID)
		if err != nil {
			log.Fatal("google verifier: ", err)
		}
	} else {
		log.Println("GOOGLE_CLIENT_ID not set; /auth/google is disabled")
	}

	recipeAnalyzer = analyzer.NewClient(os.Getenv("GEMINI_API_KEY"))

	initDB()

	r := gin.Default()

	setupRoutes(r)

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	r.Run(addr)
}

// envDuration parses a Go duration from env; zero means "use the default".
func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("%s: invalid duration %q", key, v)
	}
	return d
}

// loadDotEnv loads key=value pairs from a local .env file into the environment
// without overwriting variables that are already set. Lines starting with # are ignored.
func loadDotEnv() {
	path := ".env"
	if _, err := os.Stat(path); err != nil {
		return // no .env file
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// split on first '='
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			val := strings.TrimSpace(line[eq+1:])
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}
