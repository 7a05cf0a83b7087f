package main

import (
	"context"
	"flag"
	"fmt"

	accountsdb "qr-entry/internal/accounts/db"
	accounts "qr-entry/internal/accounts/service"
	"qr-entry/internal/config"
	"qr-entry/internal/database"
	"qr-entry/internal/logger"

	"github.com/joho/godotenv"
)

// provision creates the staff account once. An existing account with the same
// username is left as it is.
func main() {
	log := logger.NewLogger("qr-entry-provision")
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	username := flag.String("username", cfg.Admin.Username, "admin username")
	email := flag.String("email", cfg.Admin.Email, "admin email")
	password := flag.String("password", cfg.Admin.Password, "admin password")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("CONFIG", "admin username and password are required")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer db.Close()

	service := accounts.NewAccountService(&accountsdb.DB{Bun: db}, nil, nil, log)
	created, err := service.ProvisionAdmin(ctx, *username, *email, *password)
	if err != nil {
		log.Fatal("ADMIN", err.Error())
	}
	if created {
		log.Info("ADMIN", fmt.Sprintf("✅ Created admin account %q", *username))
		return
	}
	log.Info("ADMIN", fmt.Sprintf("Admin account %q already exists", *username))
}
