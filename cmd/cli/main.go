package main

import (
	"context"
	"log"

	"github.com/shimishnaByAndy/clinicalvault/internal/cli"
	"github.com/shimishnaByAndy/clinicalvault/internal/config"
)

var (
	buildVersion = "N/A"
	buildDate    = "N/A"
)

func main() {
	log.Printf("clinicalvault %s (built %s)", buildVersion, buildDate)

	ctx := context.Background()

	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
