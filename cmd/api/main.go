package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tattty/internal/http/handlers"
	httpapi "tattty/internal/http/httpapi"
	"tattty/internal/infra"
	"tattty/internal/providers/workflow"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api", cfg.LogLevel)

	client := workflow.NewClient(workflow.Options{
		Endpoint: cfg.WorkflowEndpoint,
		APIKey:   cfg.WorkflowAPIKey,
		Timeout:  cfg.WorkflowTimeout,
		Logger:   &logger,
	})
	if !client.HasCredentials() {
		logger.Warn().Msg("DIFY_API_KEY not set; workflow calls are unauthenticated")
	}

	app := handlers.NewApp(cfg, logger, client)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("endpoint", client.Endpoint()).Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPWriteTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
