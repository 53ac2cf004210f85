// Acquire Server — станция сбора данных без терминала.
//
// Server:
//   - Собирает станцию по acquire.yaml (хранилище, библиотека планов, движок)
//   - Принимает submissions через HTTP API и RabbitMQ
//   - Ставит планы по расписаниям
//   - Отдаёт уведомления как SSE, метрики как Prometheus
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Acquire/internal/api"
	"github.com/shaiso/Acquire/internal/config"
	"github.com/shaiso/Acquire/internal/station"
	"github.com/shaiso/Acquire/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting acquire-server")

	cfg, err := config.Load("")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.SetupTracing(telemetry.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "acquire-server",
		PrettyPrint: cfg.Tracing.PrettyPrint,
	})
	if err != nil {
		logger.Error("failed to setup tracing", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := station.New(ctx, cfg, station.Options{}, logger)
	if err != nil {
		logger.Error("failed to build station", "error", err)
		os.Exit(1)
	}

	if err := st.Start(ctx); err != nil {
		logger.Error("failed to start station", "error", err)
		st.Close()
		os.Exit(1)
	}

	handler := api.NewHandler(api.Config{
		Coordinator: st.Coordinator,
		Plans:       st.Library,
		Store:       st.Store,
		Schedules:   st.Scheduler,
		Metrics:     st.Metrics.Handler(),
		Logger:      logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	// Потоки SSE завершаются вместе с ctx
	server := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}

	st.Close()

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown error", "error", err)
	}

	logger.Info("acquire-server stopped")
}
