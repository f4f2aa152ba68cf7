package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"speedtest-bot/internal/config"
	"speedtest-bot/internal/location"
	"speedtest-bot/internal/measure"
	"speedtest-bot/internal/metrics"
	"speedtest-bot/internal/pipeline"
	"speedtest-bot/internal/scheduler"
	"speedtest-bot/internal/storage"
	"speedtest-bot/internal/telegram"
)

func main() {
	flags := pflag.NewFlagSet("speedtest-bot", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	envErr := godotenv.Load(*envFile)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg, os.Stderr)
	if envErr != nil {
		logger.Warn().Err(envErr).Str("path", *envFile).Msg(".env file not loaded")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("bot stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exporter := metrics.New()
	store := storage.NewCSVStore(cfg.StoreFilePath, logger)
	adapter := measure.NewAdapter(measure.NewSpeedtestProber(cfg.MeasureCandidates, logger), logger)
	p := pipeline.New(
		location.NewResolver(),
		adapter,
		store,
		exporter,
		pipeline.Paths{
			Export:  cfg.ExportFilePath,
			Parquet: cfg.ExportParquetPath,
			Chart:   cfg.ChartFilePath,
		},
		cfg.MeasureTimeout,
		logger,
	)

	bot, err := telegram.New(cfg.TelegramBotToken, p, logger)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := exporter.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server failed")
			}
		}()
	}

	if cfg.ScheduleCron != "" {
		sched := scheduler.New(ctx, logger)
		err := sched.Start(cfg.ScheduleCron, func(ctx context.Context) error {
			out := p.MeasureAt(ctx, cfg.ScheduleLocation)
			if cfg.ReportChatID != 0 {
				bot.SendText(cfg.ReportChatID, out.Text)
			}
			return out.Err
		})
		if err != nil {
			return fmt.Errorf("invalid SCHEDULE_CRON %q: %w", cfg.ScheduleCron, err)
		}
		defer sched.Stop()
	}

	logger.Info().
		Str("store", cfg.StoreFilePath).
		Dur("measure_timeout", cfg.MeasureTimeout).
		Msg("speedtest bot started")
	bot.Start(ctx)
	logger.Info().Msg("shutting down")
	return nil
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.LogFormat == config.LogFormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
