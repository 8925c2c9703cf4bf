package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Rrens/chatpdf/internal/config"
	"github.com/Rrens/chatpdf/internal/logging"
	"github.com/Rrens/chatpdf/internal/repository/postgres"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	source := flag.String("source", "", "migration source URL (defaults to database.migrations)")
	down := flag.Bool("down", false, "roll back the last migration")
	version := flag.Bool("version", false, "print the applied schema version")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Msg("Connecting to database")

	mg, err := postgres.NewMigrator(cfg.Database, *source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open migrations")
	}
	defer mg.Close()

	switch {
	case *version:
		v, dirty, err := mg.Version()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read schema version")
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
	case *down:
		err = mg.Down()
	default:
		err = mg.Up()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
