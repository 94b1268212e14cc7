package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Binance  Binance  `mapstructure:"binance"`
	Backtest Backtest `mapstructure:"backtest"`
	Logger   Logger   `mapstructure:"logger"`
	Database Database `mapstructure:"database"`
	Output   Output   `mapstructure:"output"`
}

// Binance holds the configuration for the Binance API.
type Binance struct {
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Backtest holds the instrument, range and cost profile of one backtest run.
type Backtest struct {
	Symbol         string  `mapstructure:"symbol"`
	Interval       string  `mapstructure:"interval"`
	MarketType     string  `mapstructure:"market_type"`
	Start          string  `mapstructure:"start"`
	End            string  `mapstructure:"end"`
	Limit          int     `mapstructure:"limit"`
	Commission     float64 `mapstructure:"trade_commission"`
	Slippage       float64 `mapstructure:"slippage_estimate"`
	PeriodsPerYear float64 `mapstructure:"trading_periods_per_year"`
	Strategy       string  `mapstructure:"strategy"`
	DataDir        string  `mapstructure:"data_dir"`
	UseCache       bool    `mapstructure:"use_cache"`
}

// Database holds the configuration for the run store.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Output holds the configuration for report artifacts.
type Output struct {
	PlotPath string `mapstructure:"plot_path"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("binance.rate_limit", 20)      // requests per second
	viper.SetDefault("binance.rate_limit_burst", 5) // burst size
	viper.SetDefault("backtest.symbol", "BTCUSDT")
	viper.SetDefault("backtest.interval", "1h")
	viper.SetDefault("backtest.market_type", "spot")
	viper.SetDefault("backtest.limit", 1000)
	viper.SetDefault("backtest.trade_commission", 0.001)
	viper.SetDefault("backtest.slippage_estimate", 0.0001)
	viper.SetDefault("backtest.trading_periods_per_year", 365.25)
	viper.SetDefault("backtest.strategy", "pricevolume")
	viper.SetDefault("backtest.data_dir", "data")
	viper.SetDefault("backtest.use_cache", true)
	viper.SetDefault("database.dsn", "backtests.db")
	viper.SetDefault("output.plot_path", "backtest.html")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
