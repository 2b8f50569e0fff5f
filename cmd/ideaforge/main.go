package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/ideaforge/forge/config"
	"github.com/ZanzyTHEbar/ideaforge/forge/db"
	"github.com/ZanzyTHEbar/ideaforge/forge/orchestrate"
	"github.com/ZanzyTHEbar/ideaforge/forge/server"
	"github.com/ZanzyTHEbar/ideaforge/forge/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	if cfg.OpenAI.APIKey == "" {
		logger.Fatal().Msg("OPENAI_API_KEY is not configured")
	}

	conn, err := db.Connect(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer conn.Close()

	svc := orchestrate.NewFactory(cfg, conn, logger).CreateService()

	srv := server.New(
		cfg.Server,
		svc,
		store.NewProjectStore(conn),
		store.NewChatHistoryStore(conn),
		conn,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}
