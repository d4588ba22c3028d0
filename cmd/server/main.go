package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	server "github.com/abisalde/creator-dashboard/cmd"
	"github.com/abisalde/creator-dashboard/internal/utils"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	appCfgLoader, appCfg, logger, err := server.InitConfig(os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisCache, err := server.SetupRedis(ctx, appCfgLoader, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("❌ Failed to connect to redis")
	}
	if redisCache != nil {
		defer redisCache.Close()
	}

	handler, stopWorkers, err := server.SetupCreatorHandler(appCfgLoader, redisCache, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("❌ Failed to set up creator routes")
	}
	defer stopWorkers()

	app := server.SetupFiberApp(appCfgLoader, handler, logger)
	portHost := utils.GetListenAddress(appCfg.HTTPPort, appCfg.AppEnv)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	logger.Info().
		Str("env", appCfg.AppEnv).
		Str("backend", appCfgLoader.Backend.BaseURL).
		Msgf("🚀 Creator Dashboard listening on %s", portHost)

	if err := app.Listen(portHost); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
