package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	aicarousel "github.com/aicarousel/aicarousel"
	"github.com/aicarousel/aicarousel/internal/logging"
	"github.com/aicarousel/aicarousel/internal/modelcfg"
	"github.com/aicarousel/aicarousel/internal/store"
	"github.com/aicarousel/aicarousel/internal/version"
	"github.com/aicarousel/aicarousel/providers"

	// Register gateway metrics before /metrics is mounted.
	_ "github.com/aicarousel/aicarousel/internal/metrics"
)

func main() {
	if err := aicarousel.LoadEnvFile(".env"); err != nil {
		logging.Logger.Error("reading .env file", "error", err.Error())
		os.Exit(1)
	}

	cfg, err := aicarousel.LoadConfig(os.Getenv("AICAROUSEL_CONFIG"))
	if err != nil {
		logging.Logger.Error("loading config", "error", err.Error())
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log := logging.Logger

	var st *store.Store
	if cfg.DatabaseURL != "" {
		st, err = store.OpenPostgres(cfg.DatabaseURL)
	} else {
		st, err = store.Open(cfg.DBPath)
	}
	if err != nil {
		log.Error("opening store", "error", err.Error())
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	models := modelcfg.NewStore(cfg.ModelsPath)
	if _, err := models.Read(); err != nil {
		log.Error("loading models config", "path", cfg.ModelsPath, "error", err.Error())
		os.Exit(1)
	}

	registry := aicarousel.NewRegistry(st, models)
	dispatcher := aicarousel.NewDispatcher(registry, providers.Build)

	actives, err := registry.ListActive()
	if err != nil {
		log.Error("listing providers", "error", err.Error())
		os.Exit(1)
	}
	for _, p := range actives {
		log.Info("provider active", "provider", p.Key, "models", len(p.Models), "default", p.DefaultModel)
	}
	if len(actives) == 0 {
		log.Warn("no active providers; set a provider API key (e.g. GROQ_API_KEY) and add models")
	}

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      newRouter(dispatcher, st),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "error", err.Error())
		}
	}()

	log.Info("aicarousel listening", "version", version.Short(), "addr", srv.Addr, "providers", len(actives))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		log.Error("server", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}
