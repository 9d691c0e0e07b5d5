package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"storefront/internal/backend"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/importer"
	"storefront/internal/logging"
)

func main() {
	var (
		filePath string
		email    string
		password string
	)
	flag.StringVar(&filePath, "file", "", "Path to product CSV sheet")
	flag.StringVar(&email, "email", os.Getenv("ADMIN_EMAIL"), "Admin account email")
	flag.StringVar(&password, "password", os.Getenv("ADMIN_PASSWORD"), "Admin account password")
	flag.Parse()

	if filePath == "" || email == "" || password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	ctx := context.Background()
	api := backend.New(cfg.BackendURL, &http.Client{Timeout: cfg.BackendTimeout}, logging.New(cfg.LogLevel))

	user, err := api.Login(ctx, domain.LoginRequest{Email: email, Password: password})
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	if err := api.VerifyAdmin(ctx, user.Token); err != nil {
		log.Fatalf("account %s is not an administrator: %v", email, err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatalf("open file: %v", err)
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, api, user.Token, filepath.Dir(filePath))

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		log.Fatalf("import failed after %d products: %v", count, err)
	}

	fmt.Printf("Imported %d products into %s in %s\n", count, cfg.BackendURL, time.Since(start).Truncate(time.Millisecond))
}
