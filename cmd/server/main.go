package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/OrtheSnowJames/capture-flag-io/internal/config"
	"github.com/OrtheSnowJames/capture-flag-io/internal/httpapi"
	"github.com/OrtheSnowJames/capture-flag-io/internal/hub"
	"github.com/OrtheSnowJames/capture-flag-io/internal/maps"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	catalog, err := maps.Load(cfg.MapsPath)
	if err != nil {
		logger.Fatal("map catalog failed to load",
			zap.String("path", cfg.MapsPath), zap.Error(err))
	}
	logger.Info("map catalog loaded", zap.Strings("maps", catalog.Names()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, hub.Options{
		PublicLobbies: cfg.PublicLobbies,
		Capacity:      cfg.LobbyCapacity,
		RoundSeconds:  cfg.RoundSeconds,
		VoteSeconds:   cfg.VoteSeconds,
		Operators:     cfg.Operators,
		Catalog:       catalog,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.Routes(h, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("server stopped")
}
