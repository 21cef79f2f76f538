// Package config provides configuration management for the Prop Edge application.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Feed     FeedConfig     `mapstructure:"feed" validate:"required"`
	Oracle   OracleConfig   `mapstructure:"oracle" validate:"required"`
	Backtest BacktestConfig `mapstructure:"backtest" validate:"required"`
	Sizing   SizingConfig   `mapstructure:"sizing" validate:"required"`
	Risk     RiskConfig     `mapstructure:"risk" validate:"required"`
	Metrics  MetricsConfig  `mapstructure:"metrics" validate:"required"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// FeedConfig represents historical data provider configuration
type FeedConfig struct {
	BaseURL               string  `mapstructure:"base_url" validate:"required,url"`
	APIKey                string  `mapstructure:"api_key" validate:"required"`
	TimeoutSeconds        int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RetryAttempts         int     `mapstructure:"retry_attempts" validate:"required,gte=0"`
	RequestsPerSecond     float64 `mapstructure:"requests_per_second" validate:"required,gt=0"`
	CircuitBreakerEnabled bool    `mapstructure:"circuit_breaker_enabled"`
}

// OracleModelConfig represents a single prediction model endpoint
type OracleModelConfig struct {
	Name    string  `mapstructure:"name" validate:"required"`
	BaseURL string  `mapstructure:"base_url" validate:"required,url"`
	APIKey  string  `mapstructure:"api_key"`
	Weight  float64 `mapstructure:"weight" validate:"gt=0,lte=1"`
	Enabled bool    `mapstructure:"enabled"`
}

// OracleConfig represents prediction oracle configuration
type OracleConfig struct {
	Models          []OracleModelConfig `mapstructure:"models" validate:"required,min=1,dive"`
	TimeoutSeconds  int                 `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	CacheTTLSeconds int                 `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
	CacheMaxSize    int                 `mapstructure:"cache_max_size" validate:"required,gt=0"`
}

// BacktestConfig represents backtesting configuration
type BacktestConfig struct {
	StartDate            string   `mapstructure:"start_date" validate:"required,dateonly"`
	EndDate              string   `mapstructure:"end_date" validate:"required,dateonly"`
	InitialBankroll      float64  `mapstructure:"initial_bankroll" validate:"required,gt=0"`
	PropTypes            []string `mapstructure:"prop_types" validate:"required,min=1"`
	MinLegs              int      `mapstructure:"min_legs" validate:"required,gte=1"`
	MaxLegs              int      `mapstructure:"max_legs" validate:"required,gte=1"`
	MaxSameTeam          int      `mapstructure:"max_same_team" validate:"required,gte=1"`
	MinConfidence        float64  `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
	MinEdge              float64  `mapstructure:"min_edge" validate:"gte=0"`
	MaxRisk              float64  `mapstructure:"max_risk" validate:"gte=0,lte=1"`
	StakeMode            string   `mapstructure:"stake_mode" validate:"required,stakemode"`
	FixedStake           float64  `mapstructure:"fixed_stake" validate:"gte=0"`
	MaxPositionSize      float64  `mapstructure:"max_position_size" validate:"required,gt=0,lte=1"`
	StopLoss             float64  `mapstructure:"stop_loss" validate:"required,gt=0,lte=1"`
	MaxDrawdownLimit     float64  `mapstructure:"max_drawdown_limit" validate:"required,gt=0,lte=1"`
	RiskFreeRate         float64  `mapstructure:"risk_free_rate" validate:"gte=0,lte=1"`
	Workers              int      `mapstructure:"workers" validate:"required,gte=1"`
	MonteCarloIterations int      `mapstructure:"monte_carlo_iterations" validate:"required,gt=0"`
	OutputPath           string   `mapstructure:"output_path" validate:"required"`
}

// SizingConfig represents stake sizing configuration
type SizingConfig struct {
	Mode                  string  `mapstructure:"mode" validate:"required,oneof=fixed dynamic adaptive"`
	BaseFraction          float64 `mapstructure:"base_fraction" validate:"required,gt=0,lte=1"`
	MinFraction           float64 `mapstructure:"min_fraction" validate:"gte=0"`
	MaxFraction           float64 `mapstructure:"max_fraction" validate:"required,gt=0,lte=1"`
	DrawdownLimit         float64 `mapstructure:"drawdown_limit" validate:"required,gt=0,lt=1"`
	MaxBankrollPercentage float64 `mapstructure:"max_bankroll_percentage" validate:"required,gt=0,lte=1"`
}

// RiskConfig represents risk assessment thresholds
type RiskConfig struct {
	MinConfidence       float64 `mapstructure:"min_confidence" validate:"required,gt=0,lte=1"`
	RiskTolerance       float64 `mapstructure:"risk_tolerance" validate:"required,gt=0,lte=1"`
	VolatilityThreshold float64 `mapstructure:"volatility_threshold" validate:"required,gt=0,lte=1"`
	DrawdownLimit       float64 `mapstructure:"drawdown_limit" validate:"required,gt=0,lt=1"`
	MinWinRate          float64 `mapstructure:"min_win_rate" validate:"required,gt=0,lt=1"`
	MinProfitFactor     float64 `mapstructure:"min_profit_factor" validate:"required,gt=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// ScheduleConfig represents the recurring refresh schedule for the daemon
type ScheduleConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	RefreshCron  string `mapstructure:"refresh_cron"`
	WindowDays   int    `mapstructure:"window_days" validate:"omitempty,gt=0"`
	PersistRuns  bool   `mapstructure:"persist_runs"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// BacktestWindow parses the configured date range. Call Validate first; the
// dateonly rule guarantees both parses succeed.
func (c *Config) BacktestWindow() (start, end time.Time) {
	start, _ = time.Parse("2006-01-02", c.Backtest.StartDate)
	end, _ = time.Parse("2006-01-02", c.Backtest.EndDate)
	return start, end
}
