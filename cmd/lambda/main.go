package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"purpuria-agent/handler"
	"purpuria-agent/internal/app"
	"purpuria-agent/internal/config"
)

func main() {
	ctx := context.Background()

	// Lambda reads configuration from the environment only.
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	app.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	svc, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize service")
	}

	h, err := handler.NewHandler(svc.Chat)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create handler")
	}

	lambda.Start(h.Handle)
}
