package models

import "time"

type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type FeedConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	PageLimit      int
}

type ListenerConfig struct {
	PollingInterval  time.Duration
	FetchDelay       time.Duration
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	MaxCycleDuration time.Duration
	AssetsFile       string
}

type TelegramConfig struct {
	Token string
}

type Config struct {
	Database DatabaseConfig
	Feed     FeedConfig
	Listener ListenerConfig
	Telegram TelegramConfig
}
