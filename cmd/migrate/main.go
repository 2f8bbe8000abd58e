package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/openpayments/genesis-payment-service/internal/config"
)

func main() {
	var (
		dir     = flag.String("dir", "migrations", "directory with migration files")
		down    = flag.Bool("down", false, "roll back one migration instead of migrating up")
		version = flag.Bool("version", false, "print the current schema version")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.User, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port,
		cfg.Database.Database, cfg.Database.SSLMode,
	)

	m, err := migrate.New("file://"+*dir, dsn)
	if err != nil {
		log.Fatalf("create migrate instance: %v", err)
	}
	defer m.Close()

	switch {
	case *version:
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("read schema version: %v", err)
		}
		log.Printf("schema version %d (dirty=%v)", v, dirty)
	case *down:
		if err := m.Steps(-1); err != nil {
			log.Fatalf("roll back migration: %v", err)
		}
		log.Println("rolled back one migration")
	default:
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("apply migrations: %v", err)
		}
		log.Println("migrations applied")
	}
}
