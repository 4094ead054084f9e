package main

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/trailpoint/muletrace-engine/internal/api"
	"github.com/trailpoint/muletrace-engine/internal/db"
	"github.com/trailpoint/muletrace-engine/internal/engine"
)

func main() {
	// Local development reads a .env file; production injects the
	// environment directly, so a missing file is not an error.
	_ = godotenv.Load()

	log.Println("Starting MuleTrace Transaction-Graph Risk Engine...")

	// ─── Optional Subsystems ────────────────────────────────────────────
	// The scoring core is stateless and self-contained. Persistence and
	// alert webhooks are conveniences: the service runs without either.
	// ────────────────────────────────────────────────────────────────────

	var dbConn *db.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		conn, err := db.Connect(dbURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without assessment history. Error: %v", err)
		} else {
			dbConn = conn
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set, assessment history disabled")
	}

	// Setup WebSocket hub for the live analyst feed
	wsHub := api.NewHub()
	go wsHub.Run()

	alerts := engine.NewAlertManager(api.BroadcastRiskAlert(wsHub))
	if webhookURL := os.Getenv("ALERT_WEBHOOK_URL"); webhookURL != "" {
		name := getEnvOrDefault("ALERT_WEBHOOK_NAME", "default")
		minLevel := getEnvOrDefault("ALERT_WEBHOOK_MIN_LEVEL", "HIGH")
		alerts.RegisterWebhook(name, webhookURL, minLevel, nil)
	}

	cfg := loadEngineConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	maxBatchSize := getEnvInt("MAX_BATCH_SIZE", 10000)

	r := api.SetupRouter(dbConn, wsHub, alerts, cfg, maxBatchSize)

	port := getEnvOrDefault("PORT", "5341")

	log.Printf("Engine running on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// loadEngineConfig starts from the documented defaults and applies any
// environment overrides. The result is validated once at startup; bad
// values abort the boot instead of surfacing on the first request.
func loadEngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.SimilarityTolerance = getEnvFloat("SIMILARITY_TOLERANCE", cfg.SimilarityTolerance)
	cfg.MinClusterSize = getEnvInt("MIN_CLUSTER_SIZE", cfg.MinClusterSize)
	cfg.FanInThreshold = getEnvInt("FAN_IN_THRESHOLD", cfg.FanInThreshold)
	cfg.FanOutThreshold = getEnvInt("FAN_OUT_THRESHOLD", cfg.FanOutThreshold)
	cfg.MaxCycleLength = getEnvInt("MAX_CYCLE_LENGTH", cfg.MaxCycleLength)
	return cfg
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("FATAL: %s must be an integer, got %q", key, val)
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Fatalf("FATAL: %s must be a number, got %q", key, val)
	}
	return parsed
}
