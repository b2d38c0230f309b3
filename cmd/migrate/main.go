package main

import (
	"bank_backoffice/internal/config" // Custom import path (Config)
	"bank_backoffice/internal/db"     // Custom import path (Database)
	"flag"                            // Command line flags

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration
func main() {
	seed := flag.Bool("seed", false, "insert demo data when the users table is empty")
	flag.Parse()

	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	cfg.ConfigureLogging()

	database, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		logrus.Fatalf("%v", err)
	}
	if *seed || cfg.SeedData {
		if err := db.Seed(database); err != nil {
			logrus.Fatalf("failed to seed DB: %v", err)
		}
	}
}
