package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreasstamos/chordify/internal/dht"
	"github.com/andreasstamos/chordify/internal/lockclient"
	"github.com/andreasstamos/chordify/internal/transport"
	"github.com/andreasstamos/chordify/pkg/config"
	"github.com/andreasstamos/chordify/pkg/httpclient"
	"github.com/andreasstamos/chordify/pkg/logger"
	"github.com/andreasstamos/chordify/pkg/server"
)

// Config is the startup configuration of one ring member (spec §6.4):
// NODE_URL and LOCKING_SRV_URL are required; IS_BOOTSTRAP defaults to
// false, and BOOTSTRAP_URL is only read by a joining node (it is not
// validated as present); CONSISTENCY_MODEL and REPLICATION_FACTOR only
// matter for the node that bootstraps the ring.
type Config struct {
	Server     server.Config
	Logger     logger.Config
	PeerClient transport.ClientConfig

	NodeURL       string `env:"NODE_URL" validate:"required"`
	BootstrapURL  string `env:"BOOTSTRAP_URL"`
	LockingSrvURL string `env:"LOCKING_SRV_URL" validate:"required"`
	IsBootstrap   bool   `env:"IS_BOOTSTRAP" env-default:"false"`

	ConsistencyModel  string `env:"CONSISTENCY_MODEL" env-default:"LINEARIZABLE"`
	ReplicationFactor int    `env:"REPLICATION_FACTOR" env-default:"1"`
}

func main() {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg := logger.Init(cfg.Logger)
	srv := server.New(cfg.Server, logg)

	peer := transport.NewClient(cfg.PeerClient)
	lock := lockclient.New(cfg.LockingSrvURL, httpclient.New().Client, logg)

	nodeCfg := dht.Config{
		URL:                  cfg.NodeURL,
		MaxReplicationFactor: cfg.ReplicationFactor,
		ConsistencyModel:     dht.ConsistencyMode(cfg.ConsistencyModel),
		IsBootstrap:          cfg.IsBootstrap,
	}

	var node *dht.Node
	if cfg.IsBootstrap {
		node = dht.NewBootstrap(nodeCfg, peer, lock, logg)
		logg.Info("started as bootstrap", "url", cfg.NodeURL, "replication_factor", cfg.ReplicationFactor, "consistency", cfg.ConsistencyModel)
	} else {
		node = dht.NewJoining(nodeCfg, peer, lock, logg)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := node.Join(ctx, cfg.BootstrapURL); err != nil {
			cancel()
			logg.Error("failed to join ring", "bootstrap", cfg.BootstrapURL, "err", err)
			return
		}
		cancel()
		logg.Info("joined ring", "url", cfg.NodeURL, "bootstrap", cfg.BootstrapURL)
	}

	handler := transport.NewHandler(node, logg)
	handler.Register(srv.Echo())

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
