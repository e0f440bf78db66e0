package main

import (
	"context"
	"log"

	"github.com/neogan74/droppy-api/internal/app"
	"github.com/neogan74/droppy-api/internal/config"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	application, err := app.NewBuilder(cfg, version).Build(ctx)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
