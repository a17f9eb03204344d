package database_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wonny/regimerisk/pkg/config"
	"github.com/wonny/regimerisk/pkg/database"
)

// Example demonstrates how to use the database package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.NeedsDatabase() {
		return
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := database.EnsureSchema(ctx, db.Pool); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	fmt.Printf("Pool: %+v\n", db.Stats())
}
