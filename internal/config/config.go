package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	MongoURI       string
	DBName         string
	JWTSecret      string
	SepayAPIKey    string
	ReportTZOffset string
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		MongoURI:       getEnvOrDefault("MONGO_URI", ""),
		DBName:         getEnvOrDefault("DB_NAME", "storefront"),
		JWTSecret:      getEnvOrDefault("JWT_SECRET", ""),
		SepayAPIKey:    getEnvOrDefault("SEPAY_API_KEY", ""),
		ReportTZOffset: getEnvOrDefault("REPORT_TZ_OFFSET", "+07:00"),
	}
	if AppEnv.SepayAPIKey == "" {
		log.Println("[CONFIG] [WARN] SEPAY_API_KEY is not set, payment webhook will reject every delivery")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
