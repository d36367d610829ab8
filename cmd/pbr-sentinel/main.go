package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"PBRSentinel/internal/calendar"
	"PBRSentinel/internal/collector"
	"PBRSentinel/internal/config"
	"PBRSentinel/internal/job"
	"PBRSentinel/internal/notifier"
	"PBRSentinel/internal/recorder"
	"PBRSentinel/internal/scheduler"
)

const version = "v1.2.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})

	rootCmd := &cobra.Command{
		Use:   "pbr-sentinel",
		Short: "Send the daily KOSPI PBR report to Telegram",
		Long: `pbr-sentinel fetches the index PBR history, summarizes the trailing window and
posts a status report to Telegram, plus an alert when the PBR crosses the thresholds.

All configuration comes from the environment (TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID,
FORCE_RUN, PBR_LOW, PBR_HIGH, ...). Without a subcommand it runs once.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runOnce,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the report once (default)",
		RunE:  runOnce,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "schedule",
		Short: "Stay running and trigger the report at SCHEDULE_CRONS (KST)",
		RunE:  runSchedule,
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("pbr-sentinel failed")
		os.Exit(1)
	}
}

func runOnce(cmd *cobra.Command, _ []string) error {
	_, runner, err := prepare(os.Getenv)
	if err != nil {
		return err
	}
	_, err = runner.Run(cmd.Context())
	return err
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, runner, err := prepare(os.Getenv)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(ctx, runner, runner.Calendar.Location())
	if err := sched.RegisterAll(cfg.ScheduleCrons); err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.RunOnStart {
		log.Info().Msg("RUN_ON_START enabled, running now")
		sched.RunNow()
	}

	log.Info().Strs("crons", cfg.ScheduleCrons).Msg("pbr-sentinel scheduler running, Ctrl+C to stop")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping")
	return nil
}

// prepare loads and validates config, then wires the runner. Nothing touches
// the network until the returned runner is run.
func prepare(getenv config.Getenv) (*config.Config, *job.Runner, error) {
	cfg, err := loadConfig(getenv)
	if err != nil {
		return nil, nil, err
	}
	runner, err := buildRunner(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, runner, nil
}

func loadConfig(getenv config.Getenv) (*config.Config, error) {
	cfg, err := config.LoadFrom(getenv)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func buildRunner(cfg *config.Config) (*job.Runner, error) {
	cal, err := calendar.New(cfg.ExtraHolidays)
	if err != nil {
		return nil, fmt.Errorf("init calendar: %w", err)
	}

	var fetcher collector.Fetcher
	switch cfg.DataSource.Fetcher {
	case "mock":
		fetcher = &collector.MockFetcher{}
	default:
		fetcher = collector.NewKRXFetcher(cfg.DataSource.BaseURL, cfg.DataSource.ChunkDays, cfg.DataSource.RPS, cfg.Proxy)
	}
	log.Debug().Str("source", fetcher.Name()).Msg("data source selected")

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Pushgateway != "" {
		rec = recorder.NewPushRecorder(cfg.Pushgateway, cfg.Index.Market)
	}

	return &job.Runner{
		Collector:    collector.NewCollector(fetcher, cfg.Index.Market, cfg.Index.Name),
		Sender:       notifier.NewTelegramNotifier(cfg.Telegram.BaseURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy),
		Calendar:     cal,
		Recorder:     rec,
		Thresholds:   cfg.Thresholds,
		HistoryYears: cfg.HistoryYears,
		ForceRun:     cfg.ForceRun,
		IndexLabel:   cfg.Index.Market,
	}, nil
}
