// Acquire Console — интерактивная станция в терминале.
//
// Консоль собирает ту же станцию, что и acquire-server, но диалоги
// параметров и форма метаданных открываются в терминале оператора.
// Лог пишется в stderr (или в файл --log-file).
//
// Использование:
//
//	acquire-console [--config acquire.yaml] [--api] [--log-file PATH]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Acquire/internal/api"
	"github.com/shaiso/Acquire/internal/config"
	"github.com/shaiso/Acquire/internal/console"
	"github.com/shaiso/Acquire/internal/events"
	"github.com/shaiso/Acquire/internal/station"
	"github.com/shaiso/Acquire/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var configPath string
	var serveAPI bool
	var logFile string
	var accessible bool

	rootCmd := &cobra.Command{
		Use:           "acquire-console",
		Short:         "Interactive beamline acquisition station",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var logOut io.Writer = os.Stderr
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}
			logger := telemetry.SetupLoggerTo(logOut, telemetry.LogLevel(), "text")

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			loop := events.NewLoop()
			st, err := station.New(ctx, cfg, station.Options{
				Invoker:  loop,
				Form:     console.NewHuhForm().Accessible(accessible),
				Prompter: console.NewSurveyPrompter(),
			}, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Start(ctx); err != nil {
				return err
			}

			if serveAPI {
				server := serve(cfg, st, logger)
				defer server.Shutdown(context.Background())
			}

			return console.New(console.Config{
				Coordinator: st.Coordinator,
				Plans:       st.Library,
				Loop:        loop,
				Logger:      logger,
			}).Run(ctx)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "Config file (default: $ACQUIRE_CONFIG or ./acquire.yaml)")
	rootCmd.Flags().BoolVar(&serveAPI, "api", false, "Also serve the HTTP API")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to a file instead of stderr")
	rootCmd.Flags().BoolVar(&accessible, "accessible", false, "Plain line-based metadata form")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// serve запускает HTTP API рядом с консолью. Submissions через API
// обходят форму: метаданные берутся из тела запроса.
func serve(cfg *config.Config, st *station.Station, logger *slog.Logger) *http.Server {
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

	server := &http.Server{Addr: cfg.Server.Addr(), Handler: mux}
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()
	return server
}
