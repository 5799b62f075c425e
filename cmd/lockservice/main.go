package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreasstamos/chordify/internal/lockservice"
	"github.com/andreasstamos/chordify/pkg/config"
	"github.com/andreasstamos/chordify/pkg/logger"
	"github.com/andreasstamos/chordify/pkg/server"
)

type Config struct {
	Server server.Config
	Logger logger.Config
}

func main() {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg := logger.Init(cfg.Logger)
	srv := server.New(cfg.Server, logg)

	svc := lockservice.New(logg)
	svc.Register(srv.Echo())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil {
			logg.Error("server failed", "err", err)
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("graceful shutdown failed", "err", err)
	}
}
