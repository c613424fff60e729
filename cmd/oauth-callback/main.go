package main

import (
	"context"
	"log"
	"os"

	"github.com/agentllm/agentllm/internal/oauthserver"
	"github.com/agentllm/agentllm/internal/oauthserver/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := oauthserver.NewApp(ctx, cfg, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		os.Exit(1)
	}
}
