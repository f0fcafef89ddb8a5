package main

import (
	"log"

	"docchat-be/internal/config"
	"docchat-be/internal/model"
	"docchat-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if cfg.Storage.DBConnection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(cfg.Storage.DBConnection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	// 3. Extensions + AutoMigrate
	tables := model.Tables()
	log.Printf("Running AutoMigrate for %d tables...", len(tables))
	if err := database.Migrate(db, tables...); err != nil {
		log.Fatal("Error: Migration failed:", err)
	}

	log.Println("Migration completed successfully.")
}
