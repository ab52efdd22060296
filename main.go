package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/quizbank/quizbank/internal/app"
	"github.com/quizbank/quizbank/internal/config"
	"github.com/quizbank/quizbank/pkg/logger"
	"github.com/quizbank/quizbank/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())
	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{})
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.NewRouter(a),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	logger.Infof("config summary: store=%s redis=%v archive=%v auth=%v rate_limit=%v",
		cfg.Store.Backend, a.Redis != nil, a.Archive != nil, a.Verifier != nil, cfg.RateLimit.Enabled)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("quizbank listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Errorf("server stopped: %v", err)
		a.Close()
		os.Exit(1)
	}
}
