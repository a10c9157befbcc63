package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"tozahudud-backend/internal/database"
)

func main() {
	seed := flag.Bool("seed", false, "seed demo fleet and pilot bin after migrating")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}
	if *seed {
		if err := database.Seed(db); err != nil {
			log.Fatal(err)
		}
	}
	log.Println("done")
}
