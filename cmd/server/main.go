package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags override env
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Listen address")
	root := flag.String("root", cfg.Extensions.Root, "Data root (extensions, storage, inbox)")
	contentURL := flag.String("content-url", cfg.Content.BaseURL, "Fetch entry sources from this base URL instead of disk")
	confirm := flag.String("confirm", cfg.Install.Confirm, "Install confirmation: prompt, auto or deny")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode")
	noWatch := flag.Bool("no-watch", false, "Do not watch the inbox for dropped packages")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Extensions.Root = *root
	cfg.Content.BaseURL = *contentURL
	cfg.Install.Confirm = *confirm
	cfg.Logging.Development = *dev
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var opts []server.Option
	if *noWatch {
		opts = append(opts, server.WithoutWatcher())
	}
	srv, err := server.New(cfg, logger, opts...)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	if cfg.Development {
		lc = logging.DevelopmentConfig()
	}
	if cfg.Level != "" && !cfg.Development {
		lc.Level = cfg.Level
	}
	return logging.New(lc)
}
