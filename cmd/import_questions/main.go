package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mroshb/trivia_arena/internal/catalog"
	"github.com/mroshb/trivia_arena/internal/config"
	"github.com/mroshb/trivia_arena/internal/database"
	"github.com/mroshb/trivia_arena/internal/repositories"
	"github.com/mroshb/trivia_arena/pkg/logger"
)

func main() {
	file := flag.String("file", "", "path to the .xlsx question bank")
	dryRun := flag.Bool("dry-run", false, "validate the workbook without writing to the database")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}
	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var importer *catalog.Importer
	if *dryRun {
		importer = catalog.NewImporter(nil, nil, catalog.DryRun())
	} else {
		cfg, err := config.LoadConfig()
		if err != nil {
			logger.Fatal("Failed to load config", err)
		}
		db, err := database.Connect(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to database", err)
		}
		if err := database.AutoMigrate(db); err != nil {
			logger.Fatal("Failed to run migrations", err)
		}
		importer = catalog.NewImporter(repositories.NewCategoryRepository(db), repositories.NewQuestionRepository(db))
	}

	report, err := importer.ImportFile(ctx, *file)
	if err != nil {
		logger.Fatal("Import failed", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatal("Failed to print report", err)
	}
}
