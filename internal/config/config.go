package config

import (
	"os"
	"strconv"
)

type Config struct {
	// Market-rental statistics credentials (weighted rental cost source).
	MRRAPIKey    string
	MRRAPISecret string

	// Hashrate-exchange credentials (price ticker source).
	ExchangeAPIKey string
	ExchangeAPIID  string

	// Base URLs for the market data sources, overridable for testing.
	MarketBaseURL   string
	ExchangeBaseURL string

	// Storage. MemoryOnly disables snapshot reads and writes entirely.
	DBDriver   string
	DBDSN      string
	MemoryOnly bool

	// Monitor loop cadence: integer seconds or a cron expression.
	MonitorInterval string

	// Profitability inputs.
	RentalDurationHours float64
	ProfitWeight        float64
	TargetBlockTimeSecs float64
	BlockReward         float64

	// HTTP control API. An empty APIToken leaves mutating endpoints open.
	ListenAddr string
	APIToken   string

	// Email notification on executed rentals.
	NotifyTo       string
	NotifyFrom     string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SendgridAPIKey string
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	return Config{
		MRRAPIKey:    os.Getenv("SPARTANBOT_MRR_API_KEY"),
		MRRAPISecret: os.Getenv("SPARTANBOT_MRR_API_SECRET"),

		ExchangeAPIKey: os.Getenv("SPARTANBOT_EXCHANGE_API_KEY"),
		ExchangeAPIID:  os.Getenv("SPARTANBOT_EXCHANGE_API_ID"),

		MarketBaseURL:   envOr("SPARTANBOT_MARKET_BASE_URL", "https://www.miningrigrentals.com/api/v2"),
		ExchangeBaseURL: envOr("SPARTANBOT_EXCHANGE_BASE_URL", "https://api.bittrex.com/v3"),

		DBDriver:   envOr("SPARTANBOT_DB_DRIVER", "sqlite"),
		DBDSN:      envOr("SPARTANBOT_DB_DSN", "spartanbot.db"),
		MemoryOnly: envBool("SPARTANBOT_MEMORY_ONLY"),

		MonitorInterval: envOr("SPARTANBOT_MONITOR_INTERVAL", "40"),

		RentalDurationHours: envFloat("SPARTANBOT_RENTAL_DURATION_HOURS", 3),
		ProfitWeight:        envFloat("SPARTANBOT_PROFIT_WEIGHT", 1.0),
		TargetBlockTimeSecs: envFloat("SPARTANBOT_TARGET_BLOCK_TIME_SECS", 40),
		BlockReward:         envFloat("SPARTANBOT_BLOCK_REWARD", 12.5),

		ListenAddr: ":" + envOr("PORT", "8000"),
		APIToken:   os.Getenv("SPARTANBOT_API_TOKEN"),

		NotifyTo:       os.Getenv("SPARTANBOT_NOTIFY_TO"),
		NotifyFrom:     os.Getenv("SPARTANBOT_NOTIFY_FROM"),
		SMTPHost:       os.Getenv("SPARTANBOT_SMTP_HOST"),
		SMTPPort:       int(envFloat("SPARTANBOT_SMTP_PORT", 587)),
		SMTPUsername:   os.Getenv("SPARTANBOT_SMTP_USERNAME"),
		SMTPPassword:   os.Getenv("SPARTANBOT_SMTP_PASSWORD"),
		SendgridAPIKey: os.Getenv("SPARTANBOT_SENDGRID_API_KEY"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func envFloat(key string, def float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return def
}
