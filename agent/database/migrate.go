package database

import (
	"database/sql"
	"embed"
	"errors"
	"log"
	"os"
	"strings"

	"call-tracker/agent/internal/models"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrateDatabase brings the schema up to date. Versioned SQL migrations run
// first; GORM AutoMigrate follows as a fallback so model additions that have
// not gotten a migration file yet still land in dev environments.
func MigrateDatabase(db *gorm.DB, dsn string) {
	env := os.Getenv("APP_ENV")
	log.Printf("Running migrations for environment: %s", env)

	if err := runVersionedMigrations(dsn); err != nil {
		log.Printf("WARN: Versioned migrations failed (%v), falling back to raw SQL.", err)
		executeSQLFallback(dsn)
	}

	log.Println("Running GORM migrations...")
	err := db.AutoMigrate(
		&models.TokenRecord{},
		&models.TokenCacheEntry{},
		&models.TelegramUser{},
		&models.AuditEvent{},
	)
	if err != nil {
		log.Fatalf("Failed to perform GORM migrations: %v", err)
	}
	log.Println("GORM migrations executed successfully.")
}

func runVersionedMigrations(dsn string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		sqlDB.Close()
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		sqlDB.Close()
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	log.Println("Versioned SQL migrations executed successfully.")
	return nil
}

// executeSQLFallback applies the embedded up migrations directly. Used when
// the migrate tooling cannot take ownership of the schema (e.g. a dirty
// version table from an earlier deployment).
func executeSQLFallback(dsn string) {
	dbSQL, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to the database with SQL: %v", err)
	}
	defer dbSQL.Close()

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		log.Fatalf("Failed to read embedded migrations: %v", err)
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		raw, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			log.Fatalf("Failed to read migration %s: %v", entry.Name(), err)
		}
		if _, err := dbSQL.Exec(string(raw)); err != nil {
			log.Fatalf("Failed to execute migration %s: %v", entry.Name(), err)
		}
	}
	log.Println("Raw SQL migrations executed successfully.")
}
