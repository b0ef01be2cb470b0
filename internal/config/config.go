/**
 * Copyright 2024-present SudoPay
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/stanleyjzheng/sudopay/internal/models"
)

func Load() (*models.Config, error) {
	pollingInterval, err := getEnvDuration("LISTENER_POLLING_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	fetchDelay, err := getEnvDuration("LISTENER_FETCH_DELAY", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}

	backoffInitial, err := getEnvDuration("LISTENER_BACKOFF_INITIAL", 1*time.Second)
	if err != nil {
		return nil, err
	}

	backoffMax, err := getEnvDuration("LISTENER_BACKOFF_MAX", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	maxCycleDuration, err := getEnvDuration("LISTENER_MAX_CYCLE_DURATION", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := getEnvDuration("FEED_REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "sudopay.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Feed: models.FeedConfig{
			BaseURL:        getEnvString("FEED_BASE_URL", "https://api.routescan.io/v2/network/testnet/evm/168587773"),
			RequestTimeout: requestTimeout,
			PageLimit:      getEnvInt("FEED_PAGE_LIMIT", 100),
		},
		Listener: models.ListenerConfig{
			PollingInterval:  pollingInterval,
			FetchDelay:       fetchDelay,
			BackoffInitial:   backoffInitial,
			BackoffMax:       backoffMax,
			MaxCycleDuration: maxCycleDuration,
			AssetsFile:       getEnvString("ASSETS_FILE", "assets.yaml"),
		},
		Telegram: models.TelegramConfig{
			Token: os.Getenv("TELOXIDE_TOKEN"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
