package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradebot/internal/api"
	"tradebot/internal/auth"
	"tradebot/internal/binance"
	"tradebot/internal/config"
	"tradebot/internal/metrics"
	"tradebot/internal/trading"
)

func main() {
	godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	configPath := os.Getenv("TRADEBOT_CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().
		Int("port", cfg.Server.Port).
		Str("base_url", cfg.Binance.BaseURL).
		Bool("testnet", cfg.Binance.Testnet).
		Strs("symbols", cfg.Trading.Symbols).
		Msg("Starting trading API server")

	signer, err := auth.NewSignerWithRecvWindow(cfg.Binance.APIKey, cfg.Binance.SecretKey, cfg.Binance.RecvWindow)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid exchange credentials")
	}

	client, err := binance.NewClient(cfg.Binance.BaseURL, signer,
		binance.WithTimeout(cfg.Binance.Timeout),
		binance.WithMaxRetries(cfg.Binance.MaxRetries),
		binance.WithRateLimit(cfg.Binance.RateLimit, cfg.Binance.RateBurst),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exchange client")
	}

	maxSize, err := cfg.MaxPositionSize()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid max position size")
	}

	validator := trading.NewValidator(trading.Rules{
		Symbols:         cfg.Trading.Symbols,
		MaxPositionSize: maxSize,
	})

	engine := trading.NewEngine(client, validator, log.Logger)
	collector := metrics.NewCollector()

	server, err := api.NewServer(cfg.Server, engine, collector, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Server error")
		}
	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}

	log.Info().Msg("Server stopped")
}
