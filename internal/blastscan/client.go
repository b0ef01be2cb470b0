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

// Package blastscan is a read-only client over the routescan explorer API,
// filtered to transfers landing on the custodial address.
package blastscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/models"
)

// ErrFeedUnavailable wraps any non-success explorer response. The caller
// owns the retry policy.
var ErrFeedUnavailable = errors.New("transfer feed unavailable")

// NativeTransfer is one native-currency transaction reported by the feed.
// Value is in wei.
type NativeTransfer struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"createdAt"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Value     FlexDecimal `json:"value"`
	GasUsed   FlexDecimal `json:"gasUsed"`
}

// TokenTransfer is one ERC-20 transfer reported by the feed. Amount is in
// the token's smallest unit.
type TokenTransfer struct {
	TxHash       string      `json:"txHash"`
	CreatedAt    time.Time   `json:"createdAt"`
	From         string      `json:"from"`
	To           string      `json:"to"`
	TokenAddress string      `json:"tokenAddress"`
	Amount       FlexDecimal `json:"amount"`
}

// FlexDecimal decodes explorer amounts, which arrive as JSON numbers,
// decimal strings, or 0x-prefixed hex strings depending on the endpoint.
type FlexDecimal struct {
	decimal.Decimal
}

func (f *FlexDecimal) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return fmt.Errorf("expected string or number, got null")
	}
	s = strings.Trim(s, `"`)

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return fmt.Errorf("invalid hex amount %q", s)
		}
		f.Decimal = decimal.NewFromBigInt(n, 0)
		return nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f.Decimal = d
	return nil
}

type feedLink struct {
	NextToken string `json:"nextToken"`
}

type nativeTransfersResponse struct {
	Items []NativeTransfer `json:"items"`
	Link  feedLink         `json:"link"`
}

type tokenTransfersResponse struct {
	Items []TokenTransfer `json:"items"`
	Link  feedLink        `json:"link"`
}

// Client pulls paginated transfer pages from the explorer.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	custodialAddress string
	pageLimit        int
}

func NewClient(cfg models.FeedConfig, registry *assets.Registry) *Client {
	return &Client{
		httpClient:       &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:          strings.TrimSuffix(cfg.BaseURL, "/"),
		custodialAddress: registry.CustodialAddress(),
		pageLimit:        cfg.PageLimit,
	}
}

// ListNativeTransfers fetches one page of native-currency transactions. Zero
// value entries and transfers not destined for the custodial address are
// dropped (erc20 calls show up in this feed with value 0). An empty returned
// token means end of feed.
func (c *Client) ListNativeTransfers(ctx context.Context, nextToken string) ([]NativeTransfer, string, error) {
	var response nativeTransfersResponse
	if err := c.fetchPage(ctx, "transactions", nextToken, &response); err != nil {
		return nil, "", err
	}

	filtered := make([]NativeTransfer, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Value.IsPositive() && strings.EqualFold(item.To, c.custodialAddress) {
			filtered = append(filtered, item)
		}
	}

	zap.L().Debug("Fetched native transfer page",
		zap.Int("total", len(response.Items)),
		zap.Int("to_custodial", len(filtered)))
	return filtered, response.Link.NextToken, nil
}

// ListTokenTransfers fetches one page of ERC-20 transfers destined for the
// custodial address.
func (c *Client) ListTokenTransfers(ctx context.Context, nextToken string) ([]TokenTransfer, string, error) {
	var response tokenTransfersResponse
	if err := c.fetchPage(ctx, "erc20-transfers", nextToken, &response); err != nil {
		return nil, "", err
	}

	filtered := make([]TokenTransfer, 0, len(response.Items))
	for _, item := range response.Items {
		if strings.EqualFold(item.To, c.custodialAddress) {
			filtered = append(filtered, item)
		}
	}

	zap.L().Debug("Fetched token transfer page",
		zap.Int("total", len(response.Items)),
		zap.Int("to_custodial", len(filtered)))
	return filtered, response.Link.NextToken, nil
}

func (c *Client) fetchPage(ctx context.Context, endpoint, nextToken string, out interface{}) error {
	query := url.Values{}
	query.Set("sort", "desc")
	query.Set("limit", fmt.Sprintf("%d", c.pageLimit))
	if nextToken != "" {
		query.Set("nextToken", nextToken)
	}

	requestURL := fmt.Sprintf("%s/address/%s/%s?%s",
		c.baseURL, c.custodialAddress, endpoint, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close feed response body", zap.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s returned %d: %s", ErrFeedUnavailable, endpoint, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}
