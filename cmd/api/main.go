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

	"github.com/gorilla/mux"

	"ride-pricing-console/internal/api"
	"ride-pricing-console/internal/config"
	"ride-pricing-console/internal/logger"
	"ride-pricing-console/internal/pricing"
	"ride-pricing-console/internal/session"
)

func main() {
	cfg := config.Load() // loads .env

	log := logger.NewWith(cfg.Environment, cfg.LogLevel)
	log.WithField("service", "ride-pricing-console").WithField("api_base", cfg.APIBase).Info("starting service")

	client := pricing.NewFromConfig(cfg, log)
	if cfg.EngineWait > 0 {
		log.WithField("max_wait", cfg.EngineWait.String()).Info("waiting for pricing engine")
		if _, err := client.WaitHealthy(context.Background(), cfg.EngineWait); err != nil {
			log.WithField("error", pricing.Message(err)).Warn("pricing engine not healthy, starting anyway")
		}
	}

	ctrl := session.New(client, log)
	// initial health probe; failures only land in the session state
	_, _ = ctrl.RefreshHealth(context.Background())

	r := mux.NewRouter()
	api.NewHandler(ctrl, log).RegisterRoutes(r)

	srv := newServer(cfg, r)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
	}()

	log.WithField("addr", srv.Addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server terminated")
	}
}

// newServer sizes the timeouts for uploads: a client gets the batch timeout
// to send a file body, and the response may wait on the engine for as long
// again.
func newServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       cfg.BatchTimeout,
		WriteTimeout:      2*cfg.BatchTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
