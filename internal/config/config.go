package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type LogFormat string

const (
	LogFormatConsole LogFormat = "console"
	LogFormatJSON    LogFormat = "json"
)

// DefaultScheduleLocation tags measurements taken by the scheduler.
const DefaultScheduleLocation = "Scheduled"

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required"`

	// Storage
	StoreFilePath     string `env:"STORE_FILE_PATH" envDefault:"data/speedtest_log.csv"`
	ExportFilePath    string `env:"EXPORT_FILE_PATH" envDefault:"data/speedtest_filtered.csv"`
	ExportParquetPath string `env:"EXPORT_PARQUET_PATH" envDefault:"data/speedtest_filtered.parquet"`
	ChartFilePath     string `env:"CHART_FILE_PATH" envDefault:"data/speedtest_chart.png"`

	// Measurement
	MeasureTimeout    time.Duration `env:"MEASURE_TIMEOUT" envDefault:"2m"`
	MeasureCandidates int           `env:"MEASURE_CANDIDATES" envDefault:"5"`

	// Scheduled measurements; empty cron spec disables them
	ScheduleCron     string `env:"SCHEDULE_CRON"`
	ScheduleLocation string `env:"SCHEDULE_LOCATION" envDefault:"Scheduled"`
	ReportChatID     int64  `env:"REPORT_CHAT_ID"`

	// Observability
	MetricsAddr string    `env:"METRICS_ADDR"`
	LogLevel    string    `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   LogFormat `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}
	if cfg.MeasureTimeout <= 0 {
		return nil, fmt.Errorf("MEASURE_TIMEOUT must be positive, got %s", cfg.MeasureTimeout)
	}
	if cfg.MeasureCandidates < 1 {
		return nil, fmt.Errorf("MEASURE_CANDIDATES must be at least 1, got %d", cfg.MeasureCandidates)
	}
	// An explicitly empty variable bypasses envDefault.
	cfg.ScheduleLocation = strings.TrimSpace(cfg.ScheduleLocation)
	if cfg.ScheduleLocation == "" {
		cfg.ScheduleLocation = DefaultScheduleLocation
	}
	switch cfg.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		return nil, fmt.Errorf("unknown LOG_FORMAT %q", cfg.LogFormat)
	}
	return cfg, nil
}
