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

// Package listener runs the deposit reconciliation engine: it ingests
// explorer transfer feeds, matches transfers to declared deposit intents and
// credits user balances.
package listener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/blastscan"
	"github.com/stanleyjzheng/sudopay/internal/models"
	"github.com/stanleyjzheng/sudopay/internal/notify"
	"github.com/stanleyjzheng/sudopay/internal/store"
)

// FeedClient is the slice of the explorer client the engine consumes.
type FeedClient interface {
	ListNativeTransfers(ctx context.Context, nextToken string) ([]blastscan.NativeTransfer, string, error)
	ListTokenTransfers(ctx context.Context, nextToken string) ([]blastscan.TokenTransfer, string, error)
}

// EngineConfig contains configuration for the reconciliation Engine.
type EngineConfig struct {
	Ledger   store.Ledger
	Feed     FeedClient
	Registry *assets.Registry
	Notifier notify.Notifier
	Listener models.ListenerConfig
}

// Engine polls the transfer feeds and reconciles new deposits.
type Engine struct {
	ledger   store.Ledger
	feed     FeedClient
	registry *assets.Registry
	notifier notify.Notifier

	pollingInterval  time.Duration
	fetchDelay       time.Duration
	backoffInitial   time.Duration
	backoffMax       time.Duration
	maxCycleDuration time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewEngine creates a reconciliation engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Ledger == nil || cfg.Feed == nil || cfg.Registry == nil || cfg.Notifier == nil {
		return nil, fmt.Errorf("ledger, feed, registry and notifier are all required")
	}

	return &Engine{
		ledger:           cfg.Ledger,
		feed:             cfg.Feed,
		registry:         cfg.Registry,
		notifier:         cfg.Notifier,
		pollingInterval:  cfg.Listener.PollingInterval,
		fetchDelay:       cfg.Listener.FetchDelay,
		backoffInitial:   cfg.Listener.BackoffInitial,
		backoffMax:       cfg.Listener.BackoffMax,
		maxCycleDuration: cfg.Listener.MaxCycleDuration,
		stopChan:         make(chan struct{}),
		doneChan:         make(chan struct{}),
	}, nil
}

// Start begins the reconciliation loop.
func (e *Engine) Start(ctx context.Context) {
	zap.L().Info("Starting deposit reconciliation engine",
		zap.Duration("polling_interval", e.pollingInterval),
		zap.Duration("fetch_delay", e.fetchDelay))

	go e.pollLoop(ctx)
}

// Stop gracefully stops the engine, waiting for the in-flight cycle.
func (e *Engine) Stop() {
	zap.L().Info("Stopping deposit reconciliation engine")
	close(e.stopChan)
	<-e.doneChan
	zap.L().Info("Deposit reconciliation engine stopped")
}

func (e *Engine) pollLoop(ctx context.Context) {
	defer close(e.doneChan)

	ticker := time.NewTicker(e.pollingInterval)
	defer ticker.Stop()

	e.runCycleWithRetry(ctx)

	for {
		select {
		case <-ticker.C:
			e.runCycleWithRetry(ctx)
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runCycleWithRetry retries feed outages with exponential backoff, bounded so
// a dead explorer cannot wedge the loop past the next few polling intervals.
// A cycle that keeps failing is abandoned; the next tick starts fresh.
func (e *Engine) runCycleWithRetry(ctx context.Context) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.backoffInitial
	policy.MaxInterval = e.backoffMax
	policy.MaxElapsedTime = e.maxCycleDuration

	operation := func() error {
		err := e.runCycle(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, blastscan.ErrFeedUnavailable) {
			zap.L().Warn("Transfer feed unavailable, retrying", zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		zap.L().Error("Reconciliation cycle failed", zap.Error(err))
	}
}

// waitFetchDelay spaces out consecutive explorer page fetches.
func (e *Engine) waitFetchDelay(ctx context.Context) error {
	if e.fetchDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(e.fetchDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
