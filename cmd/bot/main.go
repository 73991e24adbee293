package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"

	"tradebot/internal/auth"
	"tradebot/internal/binance"
	"tradebot/internal/config"
	"tradebot/internal/trading"
)

const version = "1.0.0"

func main() {
	// .env values become process environment before the config loads
	godotenv.Load()

	app := cli.NewApp()
	app.Name = "tradebot"
	app.Usage = "Binance USD-M futures trading bot"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: ".",
			Usage: "directory containing config.yaml",
		},
	}
	app.Commands = commands()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runtimeEnv bundles everything a command needs
type runtimeEnv struct {
	cfg    *config.Config
	engine *trading.Engine
	logger zerolog.Logger
}

func setup(c *cli.Context) (*runtimeEnv, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Logging)

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &runtimeEnv{cfg: cfg, engine: engine, logger: logger}, nil
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger()
}

func buildEngine(cfg *config.Config, logger zerolog.Logger) (*trading.Engine, error) {
	signer, err := auth.NewSignerWithRecvWindow(cfg.Binance.APIKey, cfg.Binance.SecretKey, cfg.Binance.RecvWindow)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	client, err := binance.NewClient(cfg.Binance.BaseURL, signer,
		binance.WithTimeout(cfg.Binance.Timeout),
		binance.WithMaxRetries(cfg.Binance.MaxRetries),
		binance.WithRateLimit(cfg.Binance.RateLimit, cfg.Binance.RateBurst),
	)
	if err != nil {
		return nil, err
	}

	maxSize, err := cfg.MaxPositionSize()
	if err != nil {
		return nil, err
	}

	validator := trading.NewValidator(trading.Rules{
		Symbols:         cfg.Trading.Symbols,
		MaxPositionSize: maxSize,
	})

	return trading.NewEngine(client, validator, logger), nil
}
