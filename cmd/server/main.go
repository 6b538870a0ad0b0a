package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"purpuria-agent/internal/api"
	"purpuria-agent/internal/app"
	"purpuria-agent/internal/config"
)

func main() {
	cliApp := &cli.App{
		Name:  "purpuria",
		Usage: "PurPurIA customer support agent",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "path to a TOML configuration file",
						EnvVars: []string{"PURPURIA_CONFIG"},
					},
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "override the listening port",
					},
				},
				Action: serve,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("purpuria exited with error")
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	app.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("closing resources")
		}
	}()

	server, err := api.NewServer(svc.Chat, svc.Knowledge, api.Options{
		Port:      cfg.Port,
		RateLimit: cfg.RateLimit,
	})
	if err != nil {
		return err
	}
	return server.Start(ctx, cfg.ShutdownTimeout)
}
