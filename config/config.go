package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port          string
	StoreBackend  string // "memory" or "db"
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	MongoURI      string
	MongoDatabase string
	SessionSecret string

	ReplayCacheSize int
	ReplayCacheTTL  time.Duration

	ActionRatePerSecond float64
	ActionRateBurst     int
}

func LoadConfig() *Config {
	return &Config{
		Port:          getEnv("PORT", "8000"),
		StoreBackend:  getEnv("STORE_BACKEND", "memory"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "starkmole"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "starkmole"),
		SessionSecret: getEnv("SESSION_SECRET", "secret"),

		ReplayCacheSize: getEnvInt("REPLAY_CACHE_SIZE", 100000),
		ReplayCacheTTL:  time.Duration(getEnvInt("REPLAY_CACHE_TTL_HOURS", 24)) * time.Hour,

		ActionRatePerSecond: float64(getEnvInt("ACTION_RATE_PER_SECOND", 20)),
		ActionRateBurst:     getEnvInt("ACTION_RATE_BURST", 40),
	}
}

// getEnv reads an environment variable and returns its value or a default value
func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = defaultValue
		log.Printf("Environment variable %s not set, using default value: %s", key, defaultValue)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Environment variable %s is not an integer, using default value: %d", key, defaultValue)
		return defaultValue
	}
	return value
}
