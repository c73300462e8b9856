package main

import (
	"context"
	"flag"
	"log"
	"os"

	"assessment-system/internal/config"
	"assessment-system/internal/seed"
	"assessment-system/pkg/database"
)

func main() {
	file := flag.String("file", "questions.yaml", "YAML question bank to import")
	dryRun := flag.Bool("dry-run", false, "validate the bank without writing it")
	flag.Parse()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Failed to open question bank: %v", err)
	}
	defer f.Close()

	bank, err := seed.Parse(f)
	if err != nil {
		log.Fatalf("Invalid question bank %s: %v", *file, err)
	}
	if *dryRun {
		log.Printf("Question bank %s is valid: %d quizzes, %d mock tests", *file, len(bank.Quizzes), len(bank.MockTests))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewPostgresDB(&cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	sum, err := seed.Apply(context.Background(), db, bank)
	if err != nil {
		log.Fatalf("Failed to import question bank: %v", err)
	}
	log.Printf("Imported %d quizzes and %d mock tests (%d questions)", sum.Quizzes, sum.MockTests, sum.Questions)
}
