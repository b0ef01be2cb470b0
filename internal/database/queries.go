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

package database

const (
	// User queries
	queryInsertUser = `
		INSERT OR IGNORE INTO users (telegram_id, seed_phrase, seed_phrase_public_key)
		VALUES (?, ?, ?)`

	queryGetUserByTelegramID = `
		SELECT telegram_id, COALESCE(salted_password, ''), seed_phrase, seed_phrase_public_key
		FROM users
		WHERE telegram_id = ?`

	queryGetUserByPublicKey = `
		SELECT telegram_id, COALESCE(salted_password, ''), seed_phrase, seed_phrase_public_key
		FROM users
		WHERE seed_phrase_public_key = ?`

	querySetUserPassword = `
		UPDATE users SET salted_password = ? WHERE telegram_id = ?`

	// Deposit queries
	queryInsertDeposit = `
		INSERT OR IGNORE INTO deposits (transaction_id, from_address, asset, amount, matched, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`

	queryGetDeposit = `
		SELECT transaction_id, from_address, asset, amount, matched, created_at
		FROM deposits
		WHERE transaction_id = ?`

	queryMarkDepositMatched = `
		UPDATE deposits SET matched = 1 WHERE transaction_id = ?`

	// DepositRequest queries
	queryInsertDepositRequest = `
		INSERT INTO deposit_requests (id, depositor_public_key, asset, unit_amount, from_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryFindRequestsByAddress = `
		SELECT id, depositor_public_key, asset, unit_amount, COALESCE(from_address, ''),
		       COALESCE(matched_transaction_id, ''), created_at, updated_at
		FROM deposit_requests
		WHERE from_address = ? AND asset = ? AND created_at BETWEEN ? AND ?
		ORDER BY created_at`

	queryFindRequestsByAmount = `
		SELECT id, depositor_public_key, asset, unit_amount, COALESCE(from_address, ''),
		       COALESCE(matched_transaction_id, ''), created_at, updated_at
		FROM deposit_requests
		WHERE unit_amount BETWEEN ? AND ? AND asset = ? AND created_at BETWEEN ? AND ?
		ORDER BY created_at`

	querySetMatchedTransactionID = `
		UPDATE deposit_requests
		SET matched_transaction_id = ?, updated_at = ?
		WHERE id = ? AND matched_transaction_id IS NULL`

	// Balance queries
	queryInsertBalance = `
		INSERT OR IGNORE INTO balances (seed_phrase_public_key, usdb_balance, eth_balance, accrued_yield_balance, created_at, updated_at)
		VALUES (?, 0, 0, 0, ?, ?)`

	queryGetBalance = `
		SELECT seed_phrase_public_key, usdb_balance, eth_balance, accrued_yield_balance, created_at, updated_at
		FROM balances
		WHERE seed_phrase_public_key = ?`

	queryUpdateBalance = `
		UPDATE balances
		SET usdb_balance = ?, eth_balance = ?, accrued_yield_balance = ?, updated_at = ?
		WHERE seed_phrase_public_key = ? AND usdb_balance = ? AND eth_balance = ?`
)
