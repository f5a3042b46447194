package main

import (
	"os"

	"github.com/buildledger/buildledger/internal/app"
	log "github.com/sirupsen/logrus"
)

func init() {
	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(level)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	application, err := app.NewApplication(envOr("BUILDLEDGER_CONFIG_PATH", app.ConfigPath))
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	if err := application.Run(); err != nil {
		log.Fatal(err)
	}
}
