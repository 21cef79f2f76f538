// Package main provides the entry point for the simulation daemon, which
// refreshes backtest results on a schedule and serves Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/prop-edge/internal/backtest"
	"github.com/yourusername/prop-edge/internal/config"
	"github.com/yourusername/prop-edge/internal/database"
	"github.com/yourusername/prop-edge/internal/feed"
	"github.com/yourusername/prop-edge/internal/lineup"
	"github.com/yourusername/prop-edge/internal/logger"
	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/models"
	"github.com/yourusername/prop-edge/internal/oracle"
	"github.com/yourusername/prop-edge/internal/repository"
	"github.com/yourusername/prop-edge/internal/risk"
	"github.com/yourusername/prop-edge/internal/scheduler"
	"github.com/yourusername/prop-edge/internal/sizing"
)

var (
	configFile string

	appLogger *logrus.Logger
	cfg       *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
}

var rootCmd = &cobra.Command{
	Use:   "simd",
	Short: "Simulation daemon: scheduled backtest refreshes with metrics",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		appLogger = logger.NewLogger(cfg.App.LogLevel)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return nil, fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(ctx, cfg, region, secretName); err != nil {
			return nil, fmt.Errorf("failed to load secrets: %w", err)
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runDaemon(ctx context.Context) error {
	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	var repo repository.RunRepository
	if cfg.Schedule.PersistRuns {
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
		repo = repository.NewPostgresRunRepository(db)
	}

	sched := scheduler.NewScheduler(makeRunFunc(repo), appLogger)
	if err := sched.ScheduleRefresh(cfg.Schedule.RefreshCron, cfg.Schedule.WindowDays); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			appLogger.WithError(err).Error("Scheduler shutdown failed")
		}
	}()

	srv := metricsServer(registry)
	go func() {
		appLogger.WithField("addr", srv.Addr).Info("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Error("Metrics server failed")
		}
	}()

	appLogger.WithField("next_run", sched.GetNextRun()).Info("Daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		appLogger.WithField("signal", sig.String()).Info("Shutting down")
	case <-ctx.Done():
		appLogger.Info("Context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Metrics server shutdown failed")
	}

	return nil
}

func metricsServer(registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// makeRunFunc builds the job executed on each schedule tick: a fresh engine
// over the trailing window, with optional persistence.
func makeRunFunc(repo repository.RunRepository) scheduler.RunFunc {
	return func(ctx context.Context, start, end time.Time) (*models.BacktestResult, error) {
		btCfg := backtest.DefaultConfig()
		btCfg.StartDate = start
		btCfg.EndDate = end
		btCfg.InitialBankroll = cfg.Backtest.InitialBankroll
		btCfg.PropTypes = cfg.Backtest.PropTypes
		btCfg.MinLegs = cfg.Backtest.MinLegs
		btCfg.MaxLegs = cfg.Backtest.MaxLegs
		btCfg.MaxSameTeam = cfg.Backtest.MaxSameTeam
		btCfg.MinConfidence = cfg.Backtest.MinConfidence
		btCfg.MinEdge = cfg.Backtest.MinEdge
		btCfg.MaxRisk = cfg.Backtest.MaxRisk
		btCfg.StakeMode = backtest.StakeMode(cfg.Backtest.StakeMode)
		btCfg.FixedStake = cfg.Backtest.FixedStake
		btCfg.MaxPositionSize = cfg.Backtest.MaxPositionSize
		btCfg.StopLoss = cfg.Backtest.StopLoss
		btCfg.MaxDrawdownLimit = cfg.Backtest.MaxDrawdownLimit
		btCfg.RiskFreeRate = cfg.Backtest.RiskFreeRate
		btCfg.Workers = cfg.Backtest.Workers

		provider := buildProvider()
		predictor, err := buildOracle()
		if err != nil {
			return nil, err
		}

		engine, err := backtest.NewEngine(
			btCfg,
			provider,
			predictor,
			lineup.NewGreedy(),
			sizing.NewSizer(buildSizingConfig(), appLogger),
			risk.NewAssessor(buildRiskConfig(), appLogger),
			appLogger,
		)
		if err != nil {
			return nil, err
		}

		result, err := engine.Run(ctx)
		if err != nil {
			return nil, err
		}

		if repo != nil {
			if err := repo.SaveRun(ctx, result, engine.Ledger().Bets()); err != nil {
				appLogger.WithError(err).Error("Failed to persist scheduled run")
			}
		}
		return result, nil
	}
}

func buildProvider() feed.HistoricalDataProvider {
	clientCfg := feed.DefaultHTTPClientConfig()
	clientCfg.Timeout = time.Duration(cfg.Feed.TimeoutSeconds) * time.Second
	clientCfg.MaxRetries = cfg.Feed.RetryAttempts
	clientCfg.RateLimit = cfg.Feed.RequestsPerSecond
	if !cfg.Feed.CircuitBreakerEnabled {
		clientCfg.CircuitBreakerMax = 0
	}

	return feed.NewHTTPProvider(feed.HTTPProviderConfig{
		BaseURL: cfg.Feed.BaseURL,
		APIKey:  cfg.Feed.APIKey,
		Client:  clientCfg,
	}, appLogger)
}

func buildOracle() (feed.PredictionOracle, error) {
	cache := oracle.NewPredictionCache(
		time.Duration(cfg.Oracle.CacheTTLSeconds)*time.Second,
		cfg.Oracle.CacheMaxSize,
	)

	members := make([]feed.PredictionOracle, 0, len(cfg.Oracle.Models))
	for _, model := range cfg.Oracle.Models {
		if !model.Enabled {
			continue
		}
		clientCfg := feed.DefaultHTTPClientConfig()
		clientCfg.Timeout = time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second

		client := oracle.NewHTTPClient(oracle.ModelConfig{
			Name:    model.Name,
			BaseURL: model.BaseURL,
			APIKey:  model.APIKey,
			Weight:  model.Weight,
			Client:  clientCfg,
		}, appLogger)
		members = append(members, oracle.NewCachedOracle(client, cache))
	}

	return oracle.NewEnsemble(members, appLogger)
}

func buildSizingConfig() sizing.Config {
	return sizing.Config{
		Mode:                  sizing.Mode(cfg.Sizing.Mode),
		BaseFraction:          cfg.Sizing.BaseFraction,
		MinFraction:           cfg.Sizing.MinFraction,
		MaxFraction:           cfg.Sizing.MaxFraction,
		DrawdownLimit:         cfg.Sizing.DrawdownLimit,
		MaxBankrollPercentage: cfg.Sizing.MaxBankrollPercentage,
	}
}

func buildRiskConfig() risk.Config {
	riskCfg := risk.DefaultConfig()
	riskCfg.MinConfidence = cfg.Risk.MinConfidence
	riskCfg.RiskTolerance = cfg.Risk.RiskTolerance
	riskCfg.VolatilityThreshold = cfg.Risk.VolatilityThreshold
	riskCfg.DrawdownLimit = cfg.Risk.DrawdownLimit
	riskCfg.MinWinRate = cfg.Risk.MinWinRate
	riskCfg.MinProfitFactor = cfg.Risk.MinProfitFactor
	return riskCfg
}
