package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App      App
	Server   Server
	Postgres Postgres
	Redis    Redis
	Bot      Bot
	Paystack Paystack
	Escrow   Escrow
}

type App struct {
	Name     string `env:"APP_NAME" envDefault:"trustpay"`
	Version  string `env:"APP_VERSION" envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type Bot struct {
	Token string `env:"BOT_TOKEN,required"`
	// AdminChatID — чат, куда дублируются споры и зависшие выплаты.
	AdminChatID int64 `env:"BOT_ADMIN_CHAT_ID" envDefault:"0"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var config Config

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("env.Parse: %w", err)
	}

	return config, nil
}
