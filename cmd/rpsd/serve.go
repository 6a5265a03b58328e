package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"okinoko-rps/internal/config"
	"okinoko-rps/internal/httpapi"
	"okinoko-rps/internal/registry"
	"okinoko-rps/internal/repo"
	"okinoko-rps/internal/repo/boltrepo"
	"okinoko-rps/internal/service"
	"okinoko-rps/internal/stats"
)

const shutdownGrace = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the match server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	log, err := zap.NewProduction()
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer log.Sync()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	var store repo.Store
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return errors.Wrap(err, "create data dir")
		}
		bs, err := boltrepo.Open(filepath.Join(cfg.DataDir, "rps.db"), cfg.RatingSeed)
		if err != nil {
			return err
		}
		defer bs.Close()
		store = bs
		log.Info("using embedded store", zap.String("dataDir", cfg.DataDir))
	} else {
		store = repo.NewMemory(cfg.RatingSeed)
		log.Warn("no dataDir configured, state is in-memory only")
	}

	reg := registry.New(registry.Config{
		MoveTimeout: cfg.MoveTimeout(),
		CacheTTL:    cfg.CompletedMatchCacheTTL(),
		Rating:      stats.RatingParams{K: cfg.RatingK, Floor: cfg.RatingMin},
	}, clock.New(), store, log)
	svc := service.New(service.Config{MaxBestOf: cfg.MatchMaxBestOf}, store, reg, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.New(svc, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		// Let queued stats flushes settle before the store closes.
		reg.WaitFlushes()
		return nil
	})
	return g.Wait()
}
