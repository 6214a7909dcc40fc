package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/preorder/gateway"
	"github.com/example/preorder/pkg/discovery"
	"github.com/example/preorder/pkg/logger"
	"github.com/example/preorder/pkg/orders"
	"github.com/example/preorder/pkg/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the web service",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts)
		},
	}
}

func runServe(opts *RootOptions) error {
	// Load config
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Setup logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting preorder service",
		zap.String("name", cfg.Server.Name),
		zap.String("address", cfg.Server.Addr()),
		zap.String("store", cfg.Store.Path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := repository.NewFileStore(cfg.Store.Path, log.Named("store"))
	var svcOpts []orders.Option

	if cfg.Redis.Enabled() {
		redisRepo := repository.NewRedisRepository(&cfg.Redis)
		defer redisRepo.Close()
		if err := redisRepo.Ping(ctx); err != nil {
			log.Warn("Redis connection failed", zap.Error(err))
		} else {
			log.Info("Redis connected successfully")
		}
		svcOpts = append(svcOpts, orders.WithCache(redisRepo))
	}

	if cfg.MongoDB.Enabled() {
		mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
		if err != nil {
			log.Warn("MongoDB unavailable, audit log disabled", zap.Error(err))
		} else {
			defer mongoRepo.Close(context.Background())
			svcOpts = append(svcOpts, orders.WithAudit(mongoRepo))
		}
	}

	svc := orders.NewService(cfg, store, log.Named("orders"), svcOpts...)
	defer svc.Close()

	gw := gateway.NewGateway(cfg, log.Named("gateway"), svc)
	gw.SetupRoutes()

	// Start gateway in goroutine
	gwErr := make(chan error, 1)
	go func() {
		gwErr <- gw.Start()
	}()

	var registry *discovery.Registry
	var instance *discovery.ServiceInstance
	if cfg.Etcd.Enabled() {
		host, ok := discovery.AdvertiseHost(cfg.Server.Host, cfg.Etcd.AdvertiseHost)
		if !ok {
			log.Warn("Skipping service registration, listen host is not reachable by peers; set etcd.advertise_host",
				zap.String("host", cfg.Server.Host))
		} else {
			instance = &discovery.ServiceInstance{
				Name: cfg.Server.Name,
				Host: host,
				Port: cfg.Server.Port,
			}
			registry, err = discovery.NewRegistry(&cfg.Etcd, log.Named("discovery"))
			if err != nil {
				log.Warn("Failed to connect to etcd, continuing without service registration", zap.Error(err))
				registry = nil
			} else if err := registry.Register(ctx, instance); err != nil {
				log.Warn("Failed to register service", zap.Error(err))
			} else {
				log.Info("Service registered in etcd", zap.String("key", discovery.Key(cfg.Etcd.Prefix, instance)))
			}
		}
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-gwErr:
		if err != nil {
			log.Error("Gateway error", zap.Error(err))
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Error("Gateway shutdown failed", zap.Error(err))
	}

	if registry != nil {
		if err := registry.Deregister(shutdownCtx, instance); err != nil {
			log.Error("Failed to deregister service", zap.Error(err))
		}
		registry.Close()
	}

	log.Info("Service stopped")
	return nil
}
