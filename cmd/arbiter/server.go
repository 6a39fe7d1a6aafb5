package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/pkg/config"
	"github.com/peter-kozarec/arbiter/pkg/middleware"
	"github.com/peter-kozarec/arbiter/pkg/stream"
)

type servers struct {
	logger    *zap.Logger
	telemetry *middleware.Telemetry
	hub       *stream.Hub
	running   []*http.Server
}

func startServers(logger *zap.Logger, cfg *config.Config) (*servers, error) {
	s := &servers{logger: logger}

	if cfg.Telemetry.Listen != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		s.telemetry = middleware.NewTelemetry(registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		s.serve(cfg.Telemetry.Listen, mux)
	}

	if cfg.Stream.Listen != "" {
		s.hub = stream.NewHub(logger, 256)

		mux := http.NewServeMux()
		mux.Handle("/stream", s.hub)
		s.serve(cfg.Stream.Listen, mux)
	}

	return s, nil
}

func (s *servers) serve(addr string, handler http.Handler) {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.running = append(s.running, server)

	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
}

func (s *servers) shutdown() {
	if s.hub != nil {
		s.hub.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, server := range s.running {
		if err := server.Shutdown(ctx); err != nil {
			s.logger.Warn("server shutdown failed", zap.String("addr", server.Addr), zap.Error(err))
		}
	}
}
