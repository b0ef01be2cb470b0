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

package listener

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/models"
	"github.com/stanleyjzheng/sudopay/internal/store"
)

const (
	// A deposit request is only eligible to match transfers confirmed within
	// this many seconds of its creation.
	requestValidity = 180 * time.Second

	// Requests created moments before a transfer confirmed are excluded, so a
	// mempool watcher cannot claim someone else's in-flight deposit.
	matchingDelay = 3 * time.Second
)

// runCycle traverses both transfer feeds, records unseen transfers and
// reconciles each one against open deposit requests.
func (e *Engine) runCycle(ctx context.Context) error {
	transfers, err := e.collectNewTransfers(ctx)
	if err != nil {
		return err
	}
	if len(transfers) == 0 {
		zap.L().Debug("No new transfers this cycle")
		return nil
	}

	// Oldest first so credits land in confirmation order.
	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].CreatedAt.Before(transfers[j].CreatedAt)
	})

	zap.L().Info("Reconciling new transfers", zap.Int("count", len(transfers)))

	for _, transfer := range transfers {
		deposit, err := e.ledger.InsertDepositIfAbsent(ctx, transfer)
		if err != nil {
			zap.L().Error("Failed to record deposit",
				zap.String("transaction_id", transfer.TransactionID),
				zap.Error(err))
			continue
		}
		if deposit.Matched {
			continue
		}
		e.matchDeposit(ctx, deposit)
	}
	return nil
}

// collectNewTransfers pages through both feeds until it reaches transfers it
// has already recorded. Pages arrive newest first, so a page whose every
// transaction id is known means the remainder of the feed is history.
func (e *Engine) collectNewTransfers(ctx context.Context) ([]store.NewDepositParams, error) {
	var transfers []store.NewDepositParams

	nextToken := ""
	for {
		items, token, err := e.feed.ListNativeTransfers(ctx, nextToken)
		if err != nil {
			return nil, err
		}

		ids := make([]string, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ID)
		}
		unknown, err := e.ledger.FilterUnknownTransactionIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to filter native transfers: %w", err)
		}

		unknownSet := toSet(unknown)
		for _, item := range items {
			if _, ok := unknownSet[normalizeID(item.ID)]; !ok {
				continue
			}
			transfers = append(transfers, store.NewDepositParams{
				TransactionID: item.ID,
				FromAddress:   item.From,
				Asset:         assets.Eth,
				Amount:        item.Value.Decimal,
				CreatedAt:     item.CreatedAt,
			})
		}

		if len(unknown) == 0 || token == "" {
			break
		}
		nextToken = token
		if err := e.waitFetchDelay(ctx); err != nil {
			return nil, err
		}
	}

	if err := e.waitFetchDelay(ctx); err != nil {
		return nil, err
	}

	nextToken = ""
	for {
		items, token, err := e.feed.ListTokenTransfers(ctx, nextToken)
		if err != nil {
			return nil, err
		}

		ids := make([]string, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.TxHash)
		}
		unknown, err := e.ledger.FilterUnknownTransactionIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to filter token transfers: %w", err)
		}

		unknownSet := toSet(unknown)
		for _, item := range items {
			if _, ok := unknownSet[normalizeID(item.TxHash)]; !ok {
				continue
			}
			asset, ok := e.registry.AssetForTokenAddress(item.TokenAddress)
			if !ok {
				zap.L().Debug("Skipping transfer of unsupported token",
					zap.String("transaction_id", item.TxHash),
					zap.String("token_address", item.TokenAddress))
				continue
			}
			transfers = append(transfers, store.NewDepositParams{
				TransactionID: item.TxHash,
				FromAddress:   item.From,
				Asset:         asset,
				Amount:        item.Amount.Decimal,
				CreatedAt:     item.CreatedAt,
			})
		}

		if len(unknown) == 0 || token == "" {
			break
		}
		nextToken = token
		if err := e.waitFetchDelay(ctx); err != nil {
			return nil, err
		}
	}

	return transfers, nil
}

// matchDeposit pairs one unmatched deposit with a deposit request and credits
// the depositor. Failure to match is not an error; the deposit stays recorded
// and unmatched. Requests must predate their transfer, so there is no point
// revisiting it later.
func (e *Engine) matchDeposit(ctx context.Context, deposit *models.Deposit) {
	window := store.RequestWindow{
		Start: deposit.CreatedAt.Add(-(requestValidity + matchingDelay)),
		End:   deposit.CreatedAt.Add(-matchingDelay),
	}

	request, ok := e.findCandidate(ctx, deposit, window)
	if !ok {
		return
	}

	if err := e.settle(ctx, deposit, request); err != nil {
		zap.L().Error("Failed to settle matched deposit",
			zap.String("transaction_id", deposit.TransactionID),
			zap.String("request_id", request.ID),
			zap.Error(err))
	}
}

// findCandidate runs the two matching passes. The sender address pass wins
// outright when the sender declared their address up front; otherwise the
// amount pass applies, and only an unambiguous single depositor is accepted.
func (e *Engine) findCandidate(ctx context.Context, deposit *models.Deposit, window store.RequestWindow) (*models.DepositRequest, bool) {
	if !e.registry.IsDenylisted(deposit.FromAddress) {
		byAddress, err := e.ledger.FindRequestsByAddress(ctx, deposit.FromAddress, deposit.Asset, window)
		if err != nil {
			zap.L().Error("Address match query failed",
				zap.String("transaction_id", deposit.TransactionID),
				zap.Error(err))
			return nil, false
		}
		if request, ok := e.selectUnambiguous(deposit, byAddress, "address"); ok {
			return request, true
		}
		if len(openRequests(byAddress)) > 0 {
			// Ambiguous address matches are never rescued by the amount pass.
			return nil, false
		}
	}

	unitAmount := e.registry.UnitAmount(deposit.Asset, deposit.Amount)
	byAmount, err := e.ledger.FindRequestsByAmount(ctx, unitAmount, deposit.Asset, window)
	if err != nil {
		zap.L().Error("Amount match query failed",
			zap.String("transaction_id", deposit.TransactionID),
			zap.Error(err))
		return nil, false
	}
	return e.selectUnambiguous(deposit, byAmount, "amount")
}

// selectUnambiguous accepts candidates only when every open one belongs to a
// single depositor. Two different depositors claiming the same transfer is
// unresolvable, so the deposit is left unmatched and flagged for an operator.
func (e *Engine) selectUnambiguous(deposit *models.Deposit, candidates []models.DepositRequest, pass string) (*models.DepositRequest, bool) {
	open := openRequests(candidates)
	if len(open) == 0 {
		return nil, false
	}

	depositors := make(map[string]struct{}, len(open))
	for _, request := range open {
		depositors[request.DepositorPublicKey] = struct{}{}
	}
	if len(depositors) > 1 {
		zap.L().Warn("Ambiguous deposit left unmatched",
			zap.String("transaction_id", deposit.TransactionID),
			zap.String("pass", pass),
			zap.String("asset", deposit.Asset.String()),
			zap.Int("distinct_depositors", len(depositors)))
		return nil, false
	}

	// Multiple open requests from the same depositor: take the oldest.
	chosen := open[0]
	for _, request := range open[1:] {
		if request.CreatedAt.Before(chosen.CreatedAt) {
			chosen = request
		}
	}
	return &chosen, true
}

// settle applies the matched pair in crash-safe order: flag both rows first,
// then credit, then notify. Every step is idempotent or one-way, so a crash
// between steps is repaired by re-running against the same transfer.
func (e *Engine) settle(ctx context.Context, deposit *models.Deposit, request *models.DepositRequest) error {
	if err := e.ledger.MarkDepositMatched(ctx, deposit.TransactionID); err != nil {
		return fmt.Errorf("failed to mark deposit matched: %w", err)
	}

	if err := e.ledger.SetMatchedTransactionID(ctx, request.ID, deposit.TransactionID); err != nil {
		if errors.Is(err, store.ErrRequestAlreadyMatched) {
			zap.L().Warn("Deposit request claimed by another transfer",
				zap.String("request_id", request.ID),
				zap.String("transaction_id", deposit.TransactionID))
			return nil
		}
		return fmt.Errorf("failed to set matched transaction id: %w", err)
	}

	if _, err := e.ledger.CreateBalance(ctx, request.DepositorPublicKey); err != nil {
		return fmt.Errorf("failed to ensure balance row: %w", err)
	}
	if err := e.ledger.Credit(ctx, request.DepositorPublicKey, deposit.Amount, deposit.Asset); err != nil {
		return fmt.Errorf("failed to credit deposit: %w", err)
	}

	unitAmount := e.registry.UnitAmount(deposit.Asset, deposit.Amount)
	zap.L().Info("Deposit matched and credited",
		zap.String("transaction_id", deposit.TransactionID),
		zap.String("request_id", request.ID),
		zap.String("depositor", request.DepositorPublicKey),
		zap.String("asset", deposit.Asset.String()),
		zap.String("unit_amount", unitAmount.String()))

	e.notifyDepositor(ctx, request.DepositorPublicKey, deposit, unitAmount)
	return nil
}

// notifyDepositor is best effort. The balance is already credited; a failed
// or missing notification never rolls anything back.
func (e *Engine) notifyDepositor(ctx context.Context, depositorKey string, deposit *models.Deposit, unitAmount decimal.Decimal) {
	user, err := e.ledger.GetUserByPublicKey(ctx, depositorKey)
	if err != nil {
		zap.L().Warn("Could not resolve depositor for notification",
			zap.String("depositor", depositorKey),
			zap.Error(err))
		return
	}

	if err := e.notifier.NotifyDeposit(ctx, user.TelegramID, unitAmount, deposit.Asset); err != nil {
		zap.L().Warn("Failed to deliver deposit notification",
			zap.Int64("telegram_id", user.TelegramID),
			zap.String("transaction_id", deposit.TransactionID),
			zap.Error(err))
	}
}

func openRequests(candidates []models.DepositRequest) []models.DepositRequest {
	open := make([]models.DepositRequest, 0, len(candidates))
	for _, request := range candidates {
		if request.MatchedTransactionID == "" {
			open = append(open, request)
		}
	}
	return open
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// normalizeID mirrors the ledger's transaction id normalization so feed ids
// can be compared against the filtered set.
func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
