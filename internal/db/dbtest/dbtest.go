// Package dbtest opens the integration test database. Tests using it are
// skipped unless DB_HOST_TEST is set.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/config"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db"
)

var migrateOnce sync.Once

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// Open connects to the test database, applies migrations once per process
// and truncates the given tables before and after the test.
func Open(t *testing.T, tables ...string) *db.Postgres {
	t.Helper()

	host := os.Getenv("DB_HOST_TEST")
	if host == "" {
		t.Skip("DB_HOST_TEST not set, skipping integration test")
	}

	cfg := config.PostgresConfig{
		Host:            host,
		Port:            getEnv("DB_PORT_TEST", "5432"),
		User:            getEnv("DB_USER_TEST", "postgres"),
		Password:        getEnv("DB_PASSWORD_TEST", "123456"),
		DBName:          getEnv("DB_NAME_TEST", "shop_test"),
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MigrationsPath:  migrationsPath(),
	}

	var migrateErr error
	migrateOnce.Do(func() {
		migrateErr = db.ApplyMigrations(cfg)
	})
	if migrateErr != nil {
		t.Fatalf("Failed to apply migrations: %v", migrateErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := db.New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	truncate := func() {
		for _, table := range tables {
			if _, err := pg.Pool.Exec(context.Background(), "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
				t.Fatalf("Failed to truncate %s: %v", table, err)
			}
		}
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		pg.Close()
	})

	return pg
}
