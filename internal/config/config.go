package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the trading bot. The core packages
// receive the relevant sections as plain structs and never read the
// environment themselves.
type Config struct {
	Binance BinanceConfig `mapstructure:"binance"`
	Trading TradingConfig `mapstructure:"trading"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// BinanceConfig holds futures API connection settings
type BinanceConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	BaseURL    string        `mapstructure:"base_url"`
	WSBaseURL  string        `mapstructure:"ws_base_url"`
	Testnet    bool          `mapstructure:"testnet"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RecvWindow int64         `mapstructure:"recv_window"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	RateBurst  int           `mapstructure:"rate_burst"`
}

// TradingConfig holds the domain rules injected into the validator
type TradingConfig struct {
	Symbols         []string `mapstructure:"symbols"`
	MaxPositionSize string   `mapstructure:"max_position_size"`
	DefaultLeverage int      `mapstructure:"default_leverage"`
	DefaultSymbol   string   `mapstructure:"default_symbol"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	APIKey       string        `mapstructure:"api_key"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    int           `mapstructure:"rate_limit"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from config.yaml in the given path, with
// environment variables (e.g. TRADEBOT_BINANCE_API_KEY) overriding file
// values
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	v.SetEnvPrefix("TRADEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: env and defaults still apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Binance.Testnet {
		cfg.Binance.BaseURL = "https://testnet.binancefuture.com"
		cfg.Binance.WSBaseURL = "wss://stream.binancefuture.com"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so AutomaticEnv can fill them
	v.SetDefault("binance.api_key", "")
	v.SetDefault("binance.secret_key", "")
	v.SetDefault("binance.testnet", false)
	v.SetDefault("server.api_key", "")

	v.SetDefault("binance.base_url", "https://fapi.binance.com")
	v.SetDefault("binance.ws_base_url", "wss://fstream.binance.com")
	v.SetDefault("binance.timeout", "5s")
	v.SetDefault("binance.max_retries", 3)
	v.SetDefault("binance.recv_window", 5000)
	v.SetDefault("binance.rate_limit", 10.0)
	v.SetDefault("binance.rate_burst", 5)

	v.SetDefault("trading.symbols", []string{
		"BTCUSDT", "ETHUSDT", "BNBUSDT", "ADAUSDT", "DOGEUSDT", "SOLUSDT",
	})
	v.SetDefault("trading.max_position_size", "100")
	v.SetDefault("trading.default_leverage", 10)
	v.SetDefault("trading.default_symbol", "BTCUSDT")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.rate_limit", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("trading.symbols must not be empty")
	}

	maxSize, err := c.MaxPositionSize()
	if err != nil {
		return err
	}
	if maxSize.IsNegative() {
		return fmt.Errorf("trading.max_position_size must not be negative")
	}

	if c.Trading.DefaultLeverage < 1 || c.Trading.DefaultLeverage > 125 {
		return fmt.Errorf("trading.default_leverage must be between 1 and 125, got %d", c.Trading.DefaultLeverage)
	}

	found := false
	for _, symbol := range c.Trading.Symbols {
		if symbol == c.Trading.DefaultSymbol {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("trading.default_symbol %q is not in trading.symbols", c.Trading.DefaultSymbol)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// MaxPositionSize parses the configured maximum position size
func (c *Config) MaxPositionSize() (decimal.Decimal, error) {
	size, err := decimal.NewFromString(c.Trading.MaxPositionSize)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid trading.max_position_size %q: %w", c.Trading.MaxPositionSize, err)
	}
	return size, nil
}
