package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/retailsight/internal/app"
	"github.com/bryanwahyu/retailsight/internal/config"
	"github.com/bryanwahyu/retailsight/internal/infra/httpserver"
	"github.com/bryanwahyu/retailsight/internal/logger"
	"github.com/bryanwahyu/retailsight/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("init failed", zap.Error(err))
	}
	defer a.Close()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer limiter.Close()

	handler := httpserver.NewRouter(httpserver.Deps{
		Views:          a.Views,
		Navigator:      a.Navigator,
		Chat:           a.Chat,
		Creative:       a.Creative,
		Forecaster:     a.Analysis,
		Catalog:        a.Catalog,
		Encoder:        a.Encoder,
		Objects:        frameSource(a),
		Metrics:        a.Metrics,
		Limiter:        limiter,
		Health:         a.Health(),
		ModelName:      a.Model.Name(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            zl,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		zl.Info("server listening", zap.String("addr", addr), zap.String("model", a.Model.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	zl.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		zl.Error("shutdown error", zap.Error(err))
	}
}

// frameSource avoids handing the router a typed nil.
func frameSource(a *app.App) httpserver.FrameSource {
	if a.Objects == nil {
		return nil
	}
	return a.Objects
}
