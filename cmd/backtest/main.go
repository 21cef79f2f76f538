// Package main provides the entry point for the backtesting CLI tool.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/prop-edge/internal/analysis"
	"github.com/yourusername/prop-edge/internal/backtest"
	"github.com/yourusername/prop-edge/internal/config"
	"github.com/yourusername/prop-edge/internal/database"
	"github.com/yourusername/prop-edge/internal/feed"
	"github.com/yourusername/prop-edge/internal/lineup"
	"github.com/yourusername/prop-edge/internal/logger"
	"github.com/yourusername/prop-edge/internal/oracle"
	"github.com/yourusername/prop-edge/internal/repository"
	"github.com/yourusername/prop-edge/internal/risk"
	"github.com/yourusername/prop-edge/internal/sizing"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	startOver  string
	endOver    string
	outputOver string
	persist    bool
	monteCarlo bool

	appLogger *logrus.Logger
	cfg       *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVar(&startOver, "start-date", "", "Override start date (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&endOver, "end-date", "", "Override end date (YYYY-MM-DD)")
	rootCmd.Flags().StringVarP(&outputOver, "output", "o", "", "Override output path for the JSON report")
	rootCmd.Flags().BoolVar(&persist, "persist", false, "Persist the run to PostgreSQL")
	rootCmd.Flags().BoolVar(&monteCarlo, "monte-carlo", true, "Run Monte Carlo resampling after the replay")
}

var rootCmd = &cobra.Command{
	Use:     "backtest",
	Short:   "Replay historical prop markets against the prediction oracle",
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real deployments use the environment directly
		_ = godotenv.Load()

		var err error
		cfg, err = loadConfigWithSecrets(cmd.Context(), configFile)
		if err != nil {
			return err
		}
		appLogger = logger.NewLogger(cfg.App.LogLevel)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBacktest(cmd.Context())
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfigWithSecrets(ctx context.Context, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
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

func runBacktest(ctx context.Context) error {
	btCfg, err := buildBacktestConfig()
	if err != nil {
		return err
	}

	provider := buildProvider()
	predictor, err := buildOracle()
	if err != nil {
		return err
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
		return fmt.Errorf("failed to create engine: %w", err)
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	backtest.WriteReport(os.Stdout, result)

	if monteCarlo {
		mc, err := analysis.RunMonteCarlo(ctx, engine.Ledger().Bets(), analysis.MonteCarloConfig{
			Iterations:      cfg.Backtest.MonteCarloIterations,
			InitialBankroll: btCfg.InitialBankroll,
		})
		if err != nil {
			appLogger.WithError(err).Warn("Monte Carlo resampling failed")
		} else {
			appLogger.WithFields(logrus.Fields{
				"mean_return":      mc.MeanReturn,
				"var_95":           mc.VaR95,
				"prob_of_profit":   mc.ProbabilityOfProfit,
				"prob_of_ruin":     mc.ProbabilityOfRuin,
			}).Info("Monte Carlo resampling complete")
		}
	}

	outputPath := cfg.Backtest.OutputPath
	if outputOver != "" {
		outputPath = outputOver
	}
	if outputPath != "" {
		if err := os.MkdirAll(outputPath, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		path := filepath.Join(outputPath, fmt.Sprintf("backtest_%s.json", result.ID))
		if err := backtest.ExportJSON(path, result); err != nil {
			return err
		}
		appLogger.WithField("path", path).Info("Result exported")
	}

	if persist {
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		repo := repository.NewPostgresRunRepository(db)
		if err := repo.SaveRun(ctx, result, engine.Ledger().Bets()); err != nil {
			return fmt.Errorf("failed to persist run: %w", err)
		}
		appLogger.WithField("run_id", result.ID).Info("Run persisted")
	}

	return nil
}

func buildBacktestConfig() (backtest.Config, error) {
	btCfg := backtest.DefaultConfig()
	start, end := cfg.BacktestWindow()
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

	if startOver != "" {
		parsed, err := time.Parse("2006-01-02", startOver)
		if err != nil {
			return btCfg, fmt.Errorf("invalid start date: %w", err)
		}
		btCfg.StartDate = parsed
	}
	if endOver != "" {
		parsed, err := time.Parse("2006-01-02", endOver)
		if err != nil {
			return btCfg, fmt.Errorf("invalid end date: %w", err)
		}
		btCfg.EndDate = parsed
	}

	return btCfg, btCfg.Validate()
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
