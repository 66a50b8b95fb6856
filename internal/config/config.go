package config

import (
	"log"
	"os"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type ProviderConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
}

type Config struct {
	DatabaseDSN string
	ListenAddr  string
	CORSOrigin  string
	Provider    ProviderConfig
}

// Load reads configuration from the environment. godotenv is loaded by main
// before this runs.
func Load() Config {
	return Config{
		DatabaseDSN: getenv("DATABASE_DSN",
			"host=localhost user=postgres password=postgres dbname=edu_payments port=5432 sslmode=disable"),
		ListenAddr: getenv("LISTEN_ADDR", ":8080"),
		CORSOrigin: getenv("CORS_ORIGIN", "http://localhost:3000"),
		Provider: ProviderConfig{
			BaseURL:           getenv("PROVIDER_BASE_URL", ""),
			APIKey:            getenv("PROVIDER_API_KEY", ""),
			RequestsPerSecond: getenvFloat("PROVIDER_RATE_LIMIT", 5),
		},
	}
}

func InitDB(cfg Config) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	return db
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
