// cmd/migrate applies the embedded schema migrations to DATABASE_URL.
package main

import (
	"os"

	"github.com/jason-s-yu/wordclue/internal/database"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		logrus.Fatal("DATABASE_URL is required")
	}
	if err := database.Migrate(url); err != nil {
		logrus.Fatalf("migrate: %v", err)
	}
	logrus.Info("schema is up to date")
}
