package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/stark-secure/starkmole-integrity/config"
	"github.com/stark-secure/starkmole-integrity/handlers"
	"github.com/stark-secure/starkmole-integrity/integrity"
	"github.com/stark-secure/starkmole-integrity/middleware"
	"github.com/stark-secure/starkmole-integrity/repository"
	"github.com/stark-secure/starkmole-integrity/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded:", err)
	}
	cfg := config.LoadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	store := buildStore(cfg)
	secret := []byte(cfg.SessionSecret)

	signer := integrity.NewSigner(secret)
	cache := integrity.NewLRUReplayCache(cfg.ReplayCacheSize, cfg.ReplayCacheTTL)
	validator := integrity.NewValidator(signer, cache, logger)
	manager := session.NewManager(store, validator, signer, secret, logger)

	hub := handlers.NewHub()
	handler := handlers.NewHandler(manager, hub, secret, logger)
	limiter := middleware.NewRateLimiter(cfg.ActionRatePerSecond, cfg.ActionRateBurst)
	router := handlers.NewRouter(handler, limiter)

	log.Printf("Server running on http://localhost:%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal(err)
	}
}

// buildStore selects the persistence backend: mutex-guarded in-memory maps
// by default, Postgres sessions + Mongo anomaly log when STORE_BACKEND=db.
func buildStore(cfg *config.Config) repository.Store {
	if cfg.StoreBackend != "db" {
		return repository.Store{
			Sessions:  repository.NewMemorySessionStore(),
			Anomalies: repository.NewMemoryAnomalyStore(),
		}
	}

	db, err := repository.ConnectPostgreSQL(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Fatalln("PostgreSQL connection failed:", err)
	}
	log.Println("Successfully connected to PostgreSQL")

	client, err := repository.ConnectMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalln("MongoDB connection failed:", err)
	}
	log.Println("Successfully connected to MongoDB")

	return repository.Store{
		Sessions:  repository.NewPostgresSessionStore(db),
		Anomalies: repository.NewMongoAnomalyStore(client, cfg.MongoDatabase),
	}
}
