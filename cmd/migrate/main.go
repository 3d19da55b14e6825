package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/PayFox/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		log.Fatal(err)
	}
}

// databaseURL builds the golang-migrate URL for the configured MySQL database.
func databaseURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		env.GetEnv("DB_USER", "payfox"),
		env.GetEnv("DB_PASSWORD", "payfox"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "payfox_db"),
	)
}

func parseVersion(args []string) (uint, error) {
	if len(args) < 1 {
		return 0, errors.New("please provide a version number")
	}
	version, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version number: %w", err)
	}
	return uint(version), nil
}

func run(command string, args []string) error {
	switch command {
	case "up", "down", "goto", "force", "status":
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}

	log.Infof("Connecting to database: %s@%s:%s/%s",
		env.GetEnv("DB_USER", "payfox"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "payfox_db"),
	)

	m, err := migrate.New(
		"file://"+env.GetEnv("MIGRATIONS_PATH", "migrations"),
		databaseURL(),
	)
	if err != nil {
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warnf("Closing migration resources: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		// Apply all pending migrations
		if err := m.Up(); errors.Is(err, migrate.ErrNoChange) {
			log.Info("No change: database is already up to date")
		} else if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		} else {
			log.Info("Migrations applied")
		}

	case "down":
		// Roll back the last migration
		if err := m.Steps(-1); err != nil {
			return fmt.Errorf("roll back last migration: %w", err)
		}
		log.Info("Last migration rolled back")

	case "goto":
		version, err := parseVersion(args)
		if err != nil {
			return err
		}
		if err := m.Migrate(version); errors.Is(err, migrate.ErrNoChange) {
			log.Infof("No change: database is already at version %d", version)
		} else if err != nil {
			return fmt.Errorf("migrate to version %d: %w", version, err)
		} else {
			log.Infof("Migrated to version %d", version)
		}

	case "force":
		// Clear a dirty flag after fixing a failed migration by hand
		version, err := parseVersion(args)
		if err != nil {
			return err
		}
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
		log.Infof("Forced version %d", version)

	case "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("No migrations have been applied yet")
			return nil
		} else if err != nil {
			return fmt.Errorf("read migration version: %w", err)
		}
		dirtyStatus := ""
		if dirty {
			dirtyStatus = " (dirty)"
		}
		log.Infof("Current migration version: %d%s", version, dirtyStatus)
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Available commands:")
	fmt.Println("  up      - Apply all pending migrations")
	fmt.Println("  down    - Roll back the last migration")
	fmt.Println("  goto N  - Migrate to version N")
	fmt.Println("  force N - Set version N and clear the dirty flag")
	fmt.Println("  status  - Show the current migration version")
}
