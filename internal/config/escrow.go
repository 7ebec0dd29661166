package config

import "time"

// Escrow — дефолтные платёжные правила. Значения из platform_settings в базе
// перекрывают их без рестарта.
type Escrow struct {
	MinDealAmount     int64         `env:"ESCROW_MIN_DEAL_AMOUNT" envDefault:"1000"`
	MaxDealAmount     int64         `env:"ESCROW_MAX_DEAL_AMOUNT" envDefault:"100000000"`
	FeeRate           float64       `env:"ESCROW_FEE_RATE" envDefault:"0.05"`
	MinFee            int64         `env:"ESCROW_MIN_FEE" envDefault:"100"`
	CancelWindow      time.Duration `env:"ESCROW_CANCEL_WINDOW" envDefault:"1h"`
	AutoReleaseWindow time.Duration `env:"ESCROW_AUTO_RELEASE_WINDOW" envDefault:"48h"`
	// Arbiters — юзернеймы арбитров через запятую.
	Arbiters []string `env:"ESCROW_ARBITERS" envSeparator:","`

	SettingsCacheTTL time.Duration `env:"ESCROW_SETTINGS_CACHE_TTL" envDefault:"30s"`
	// SweepSpec и RetrySpec — cron-расписания фоновых задач.
	SweepSpec string `env:"ESCROW_SWEEP_SPEC" envDefault:"@every 1m"`
	RetrySpec string `env:"ESCROW_RETRY_SPEC" envDefault:"@every 5m"`

	WebhookDedupTTL time.Duration `env:"ESCROW_WEBHOOK_DEDUP_TTL" envDefault:"24h"`
	NotifyBuffer    int           `env:"ESCROW_NOTIFY_BUFFER" envDefault:"256"`
}
