package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	accountsdb "qr-entry/internal/accounts/db"
	accounts "qr-entry/internal/accounts/service"
	"qr-entry/internal/config"
	"qr-entry/internal/database"
	"qr-entry/internal/database/migrations"
	eventsdb "qr-entry/internal/events/db"
	events "qr-entry/internal/events/service"
	"qr-entry/internal/logger"
	"qr-entry/internal/models"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

const usage = `usage: migrate [flags] <command>

commands:
  up        apply every pending migration
  down      roll back every migration
  to        migrate up or down to -version
  force     clear a dirty flag by pinning -version
  version   print the applied schema version
  seed      insert a demo organiser and events (needs -password)
`

func main() {
	version := flag.Int("version", -1, "target version for 'to' and 'force'")
	dir := flag.String("dir", "", "migrations directory (defaults to MIGRATIONS_DIR)")
	password := flag.String("password", "", "password for the seeded demo organiser")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log := logger.NewLogger("qr-entry-migrate")
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	if cfg.Database.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}
	if *dir != "" {
		cfg.Database.MigrationsDir = *dir
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer db.Close()

	if err := run(ctx, flag.Arg(0), db, cfg, *version, *password, log); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", "✅ Done.")
}

func run(ctx context.Context, command string, db *bun.DB, cfg *config.Config, version int, password string, log *logger.Logger) error {
	if command == "seed" {
		return seedData(ctx, db, password, log)
	}

	runner := migrations.NewRunner(db, migrations.MigrateOptions{MigrationsDir: cfg.Database.MigrationsDir}, log)
	defer runner.Close()

	switch command {
	case "up":
		return runner.MigrateUp()
	case "down":
		return runner.MigrateDown()
	case "to":
		if version < 0 {
			return errors.New("'to' needs -version")
		}
		return runner.MigrateTo(uint(version))
	case "force":
		if version < 0 {
			return errors.New("'force' needs -version")
		}
		return runner.Force(version)
	case "version":
		v, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		fmt.Printf("%d (dirty=%v)\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// seedData creates a demo organiser with two upcoming events. Running it twice
// fails on the organiser's unique username and leaves the data untouched.
func seedData(ctx context.Context, db *bun.DB, password string, log *logger.Logger) error {
	if password == "" {
		return errors.New("seed needs -password")
	}
	accountService := accounts.NewAccountService(&accountsdb.DB{Bun: db}, nil, nil, log)
	organiser, err := accountService.Signup(ctx, models.SignupRequest{
		Username:        "demo-organiser",
		Email:           "organiser@qrentry.local",
		Password:        password,
		ConfirmPassword: password,
		Role:            models.RoleOrganiser,
	})
	if err != nil {
		return fmt.Errorf("seed organiser: %w", err)
	}

	eventService := events.NewEventService(&eventsdb.DB{Bun: db}, log)
	owner := models.Principal{AccountID: organiser.ID, Username: organiser.Username, Role: models.RoleOrganiser}
	demo := []models.EventInput{
		{
			Name:        "Summer Fest",
			Date:        time.Now().AddDate(0, 1, 0).Truncate(time.Hour),
			Location:    "City Park",
			Description: "Annual summer music festival.",
			Capacity:    500,
			Price:       499,
			UPIID:       "summerfest@upi",
		},
		{
			Name:     "Go Meetup",
			Date:     time.Now().AddDate(0, 0, 14).Truncate(time.Hour),
			Location: "Hall 2",
			Capacity: 80,
		},
	}
	for _, in := range demo {
		event, err := eventService.CreateEvent(ctx, owner, in)
		if err != nil {
			return fmt.Errorf("seed event %q: %w", in.Name, err)
		}
		log.Info("SEED", fmt.Sprintf("event %d %q", event.ID, event.Name))
	}
	return nil
}
