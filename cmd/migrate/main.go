package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"

	"github.com/aimerfeng/SkillStage/internal/database"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	_ = godotenv.Load()

	var (
		command       string
		steps         int
		migrationsDir string
		databaseURL   string
	)

	flag.StringVar(&command, "command", "up", "Migration command: up, down, force, version, drop, embedded")
	flag.IntVar(&steps, "steps", 0, "Number of migrations to run (0 = all)")
	flag.StringVar(&migrationsDir, "dir", "internal/database/migrations", "Path to migrations directory")
	flag.StringVar(&databaseURL, "database", "", "Database URL (overrides DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable or -database flag is required")
	}

	// Migrations compiled into the binary need no directory
	if command == "embedded" {
		if err := database.RunMigrations(databaseURL); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
		return
	}

	absPath, err := filepath.Abs(migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get absolute path for migrations directory")
	}

	log.Info().
		Str("dir", absPath).
		Str("command", command).
		Int("steps", steps).
		Msg("Starting migration")

	switch command {
	case "up":
		if steps == 0 {
			err = database.RunMigrationsFromPath(databaseURL, absPath)
			break
		}
		err = withMigrate(databaseURL, absPath, func(m *migrate.Migrate) error {
			return m.Steps(steps)
		})
	case "down":
		if steps > 0 {
			err = database.RollbackMigration(databaseURL, absPath, steps)
			break
		}
		err = withMigrate(databaseURL, absPath, (*migrate.Migrate).Down)
	case "force":
		if steps == 0 {
			log.Fatal().Msg("Force command requires -steps flag with version number")
		}
		err = withMigrate(databaseURL, absPath, func(m *migrate.Migrate) error {
			return m.Force(steps)
		})
	case "version":
		version, dirty, verr := database.GetMigrationVersion(databaseURL, absPath)
		if verr != nil {
			log.Fatal().Err(verr).Msg("Failed to get version")
		}
		log.Info().
			Uint("version", version).
			Bool("dirty", dirty).
			Msg("Current migration version")
		return
	case "drop":
		err = withMigrate(databaseURL, absPath, (*migrate.Migrate).Drop)
	default:
		log.Fatal().Str("command", command).Msg("Unknown command")
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("No migrations to apply")
			return
		}
		log.Fatal().Err(err).Msg("Migration failed")
	}

	log.Info().Msg("Migration completed successfully")
}

func withMigrate(databaseURL, dir string, fn func(m *migrate.Migrate) error) error {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
