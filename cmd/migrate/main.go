package main

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/NutriFox/internal/pkg/database"
	"github.com/ManuelReschke/NutriFox/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	driver := database.Driver()

	log.Printf("Connecting to %s database %s@%s/%s",
		driver,
		env.GetEnv("DB_USER", "nutrifox"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_NAME", "nutrifox_db"),
	)

	m, err := migrate.New(sourceURL(driver), migrationURL(driver))
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("Failed to close migration resources: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		// run all pending migrations
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Migration failed: %v", err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Println("No change: database is up to date")
		} else {
			log.Println("Migrations applied")
		}

	case "down":
		// roll back the last migration
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		} else {
			log.Println("Last migration rolled back")
		}

	case "goto":
		if len(os.Args) < 3 {
			log.Fatalf("Please pass a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("Invalid version number: %v", err)
		}

		if err := m.Migrate(uint(version)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Migrating to version %d failed: %v", version, err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Printf("No change: database is already at version %d", version)
		} else {
			log.Printf("Migrated to version %d", version)
		}

	case "status":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("No migrations applied yet")
			} else {
				log.Fatalf("Reading migration version failed: %v", err)
			}
		} else {
			dirtyStatus := ""
			if dirty {
				dirtyStatus = " (dirty)"
			}
			log.Printf("Current migration version: %d%s", version, dirtyStatus)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

// sourceURL points at the SQL files of one engine.
func sourceURL(driver string) string {
	return "file://" + env.GetEnv("MIGRATIONS_PATH", "migrations") + "/" + driver
}

// migrationURL builds the golang-migrate database URL from DB_* variables.
func migrationURL(driver string) string {
	user := url.UserPassword(env.GetEnv("DB_USER", "nutrifox"), env.GetEnv("DB_PASSWORD", "nutrifox"))
	host := env.GetEnv("DB_HOST", "db")
	name := env.GetEnv("DB_NAME", "nutrifox_db")

	if driver == database.DriverPostgres {
		u := url.URL{
			Scheme:   "postgres",
			User:     user,
			Host:     host + ":" + env.GetEnv("DB_PORT", "5432"),
			Path:     "/" + name,
			RawQuery: "sslmode=" + env.GetEnv("DB_SSLMODE", "disable"),
		}
		return u.String()
	}
	return fmt.Sprintf("mysql://%s@tcp(%s:%s)/%s?multiStatements=true",
		user.String(), host, env.GetEnv("DB_PORT", "3306"), name)
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - show the current migration version")
	fmt.Println("DB_DRIVER selects mysql (default) or postgres.")
}
